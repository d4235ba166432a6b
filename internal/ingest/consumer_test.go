package ingest

import (
	"context"
	"log"
	"os"
	"testing"

	"fleet-telemetry-cloud/internal/live"
	"fleet-telemetry-cloud/internal/vehicles/application"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
	"fleet-telemetry-cloud/internal/vehicles/infrastructure/memory"
)

func newTestConsumer(t *testing.T) (*Consumer, *application.Service, *memory.VehicleRepository, *live.Hub[string, vehicles.SensorSnapshot]) {
	t.Helper()
	repo := memory.NewVehicleRepository()
	service, err := application.NewService(repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	hub := live.NewHub[string, vehicles.SensorSnapshot](nil)
	consumer := &Consumer{
		topic:     "vehicle-sensor-data",
		applier:   service,
		publisher: hub,
		logger:    log.New(os.Stderr, "", log.LstdFlags),
	}
	return consumer, service, repo, hub
}

func registerVehicle(t *testing.T, service *application.Service, deviceID string) *vehicles.Vehicle {
	t.Helper()
	vehicle, err := service.Register(context.Background(), application.RegisterInput{
		Make: "Volvo", Model: "FH16", Year: 2022, DeviceID: deviceID,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return vehicle
}

func TestProcessMessageAppliesAndPublishes(t *testing.T) {
	consumer, service, _, hub := newTestConsumer(t)
	vehicle := registerVehicle(t, service, "device-001")

	var published []vehicles.SensorSnapshot
	hub.Subscribe("device-001", live.NewListener(func(s vehicles.SensorSnapshot) {
		published = append(published, s)
	}))

	payload := []byte(`{"deviceId":"device-001","reading":{"odometerReading":100,"engineHours":5,"fuelLevel":"Full","lastLocation":{"latitude":37.77,"longitude":-122.41}}}`)
	if err := consumer.processMessage(context.Background(), payload); err != nil {
		t.Fatalf("process message: %v", err)
	}

	if len(published) != 1 {
		t.Fatalf("expected one publish, got %d", len(published))
	}
	if published[0].OdometerReading != 100 {
		t.Fatalf("expected merged snapshot published, got %+v", published[0])
	}

	stored, err := service.Get(context.Background(), vehicle.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Analytics == nil || stored.Analytics.DistanceTraveled != 100 || stored.Analytics.HoursOperated != 5 {
		t.Fatalf("expected analytics {100 5}, got %+v", stored.Analytics)
	}
}

func TestProcessMessagePreservesPerDeviceOrder(t *testing.T) {
	consumer, service, _, hub := newTestConsumer(t)
	registerVehicle(t, service, "device-001")

	var odometers []float64
	hub.Subscribe("device-001", live.NewListener(func(s vehicles.SensorSnapshot) {
		odometers = append(odometers, s.OdometerReading)
	}))

	messages := [][]byte{
		[]byte(`{"deviceId":"device-001","reading":{"odometerReading":100,"engineHours":5}}`),
		[]byte(`{"deviceId":"device-001","reading":{"odometerReading":80,"engineHours":6}}`),
		[]byte(`{"deviceId":"device-001","reading":{"odometerReading":120,"engineHours":7}}`),
	}
	for _, msg := range messages {
		if err := consumer.processMessage(context.Background(), msg); err != nil {
			t.Fatalf("process message: %v", err)
		}
	}

	want := []float64{100, 80, 120}
	if len(odometers) != len(want) {
		t.Fatalf("expected %d publishes, got %d", len(want), len(odometers))
	}
	for i := range want {
		if odometers[i] != want[i] {
			t.Fatalf("publish %d out of order: expected %v, got %v", i, want[i], odometers[i])
		}
	}

	// Regressed odometer was clamped, later advance counts from the
	// regressed value.
	stored, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := stored[0].Analytics.DistanceTraveled; got != 140 {
		t.Fatalf("expected distance 140 (100 + 0 + 40), got %v", got)
	}
}

func TestProcessMessageDropsMalformed(t *testing.T) {
	consumer, _, _, hub := newTestConsumer(t)
	delivered := 0
	hub.Subscribe("device-001", live.NewListener(func(vehicles.SensorSnapshot) { delivered++ }))

	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"reading":{"odometerReading":1}}`),
		[]byte(`{"deviceId":"device-001"}`),
	}
	for _, payload := range cases {
		if err := consumer.processMessage(context.Background(), payload); err != nil {
			t.Fatalf("malformed payload must be dropped, got error %v", err)
		}
	}
	if delivered != 0 {
		t.Fatalf("expected no publishes for malformed payloads, got %d", delivered)
	}
}

func TestProcessMessageDropsUnknownDevice(t *testing.T) {
	consumer, service, repo, hub := newTestConsumer(t)
	registerVehicle(t, service, "device-001")

	delivered := 0
	hub.Subscribe("device-999", live.NewListener(func(vehicles.SensorSnapshot) { delivered++ }))

	payload := []byte(`{"deviceId":"device-999","reading":{"odometerReading":100,"engineHours":5}}`)
	if err := consumer.processMessage(context.Background(), payload); err != nil {
		t.Fatalf("unknown device must be dropped, got error %v", err)
	}
	if delivered != 0 {
		t.Fatalf("expected no publish for unknown device, got %d", delivered)
	}

	known, err := repo.GetByDeviceID(context.Background(), "device-001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if known.Sensor != nil {
		t.Fatal("expected no store write for unknown device message")
	}
}

func TestProcessMessageStoreFailureNotCommitted(t *testing.T) {
	consumer, service, repo, hub := newTestConsumer(t)
	registerVehicle(t, service, "device-001")
	repo.FailUpdates = true

	delivered := 0
	hub.Subscribe("device-001", live.NewListener(func(vehicles.SensorSnapshot) { delivered++ }))

	payload := []byte(`{"deviceId":"device-001","reading":{"odometerReading":100,"engineHours":5}}`)
	err := consumer.processMessage(context.Background(), payload)
	if err == nil {
		t.Fatal("expected store failure to surface so the message is not committed")
	}
	if delivered != 0 {
		t.Fatalf("expected no publish on store failure, got %d", delivered)
	}
}
