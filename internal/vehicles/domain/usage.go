package vehicles

// ComputeUsage derives the next running totals from the previous
// snapshot and the new reading. A nil previous snapshot or nil totals
// means a first-ever reading for an existing vehicle and uses zero
// baselines.
//
// Negative deltas (device resets, out-of-order delivery, bad data) are
// clamped to zero before accumulation, so totals are monotonically
// non-decreasing. Replaying the same reading twice double-counts a
// positive delta; there is no dedup key.
func ComputeUsage(previous *SensorSnapshot, totals *UsageAnalytics, reading SensorSnapshot) UsageAnalytics {
	var prevOdometer, prevHours float64
	if previous != nil {
		prevOdometer = previous.OdometerReading
		prevHours = previous.EngineHours
	}

	var next UsageAnalytics
	if totals != nil {
		next = *totals
	}

	next.DistanceTraveled += clampDelta(reading.OdometerReading - prevOdometer)
	next.HoursOperated += clampDelta(reading.EngineHours - prevHours)
	return next
}

func clampDelta(delta float64) float64 {
	if delta < 0 {
		return 0
	}
	return delta
}
