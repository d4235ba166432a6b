package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

var usageHeader = []string{
	"vehicle_id", "make", "model", "year", "device_id",
	"odometer_reading", "engine_hours", "fuel_level",
	"distance_traveled", "hours_operated", "last_maintenance",
}

type usageRow struct {
	vehicle vehicles.Vehicle
}

func (r usageRow) fields() []string {
	v := r.vehicle
	odometer, engineHours, fuel := "", "", ""
	if v.Sensor != nil {
		odometer = strconv.FormatFloat(v.Sensor.OdometerReading, 'f', -1, 64)
		engineHours = strconv.FormatFloat(v.Sensor.EngineHours, 'f', -1, 64)
		fuel = v.Sensor.FuelLevel
	}
	distance, hours := "0", "0"
	if v.Analytics != nil {
		distance = strconv.FormatFloat(v.Analytics.DistanceTraveled, 'f', -1, 64)
		hours = strconv.FormatFloat(v.Analytics.HoursOperated, 'f', -1, 64)
	}
	lastMaintenance := ""
	if v.LastMaintenance != nil {
		lastMaintenance = v.LastMaintenance.Date.Format("2006-01-02")
	}
	return []string{
		v.ID, v.Make, v.Model, strconv.Itoa(v.Year), v.DeviceID,
		odometer, engineHours, fuel,
		distance, hours, lastMaintenance,
	}
}

// BuildUsageCSV renders one row per vehicle with its latest snapshot
// and running usage totals.
func BuildUsageCSV(list []vehicles.Vehicle) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(usageHeader); err != nil {
		return nil, err
	}
	for _, vehicle := range list {
		if err := writer.Write(usageRow{vehicle}.fields()); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildUsageXLSX renders the usage report as a single-sheet workbook.
func BuildUsageXLSX(list []vehicles.Vehicle) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "usage"
	f.SetSheetName("Sheet1", sheet)

	for col, name := range usageHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, name)
	}
	for i, vehicle := range list {
		for col, value := range (usageRow{vehicle}.fields()) {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildUsagePDF renders a minimal PDF table of the usage report.
func BuildUsagePDF(list []vehicles.Vehicle) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Fleet Usage Report")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	widths := []float64{40, 22, 22, 12, 28, 26, 24, 20, 30, 28, 26}
	pdf.SetFont("Arial", "B", 8)
	for i, name := range usageHeader {
		pdf.CellFormat(widths[i], 6, name, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	for _, vehicle := range list {
		for i, value := range (usageRow{vehicle}.fields()) {
			pdf.CellFormat(widths[i], 6, value, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
