package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

func fleetFixture() []vehicles.Vehicle {
	observed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return []vehicles.Vehicle{
		{
			ID: "v-1", Make: "Volvo", Model: "FH16", Year: 2022, DeviceID: "ECU-1001",
			Sensor: &vehicles.SensorSnapshot{
				OdometerReading: 120.5,
				EngineHours:     8,
				FuelLevel:       "Full",
				ObservedAt:      observed,
			},
			Analytics: &vehicles.UsageAnalytics{DistanceTraveled: 120.5, HoursOperated: 8},
			LastMaintenance: &vehicles.MaintenanceSummary{
				Date:        time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
				Description: "oil change",
				Cost:        150,
			},
		},
		{ID: "v-2", Make: "Scania", Model: "R500", Year: 2021, DeviceID: "ECU-2002"},
	}
}

func TestBuildUsageCSV(t *testing.T) {
	payload, err := BuildUsageCSV(fleetFixture())
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3 (header + 2 vehicles)", len(rows))
	}
	if rows[0][0] != "vehicle_id" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "v-1" || rows[1][5] != "120.5" || rows[1][8] != "120.5" || rows[1][10] != "2026-07-01" {
		t.Fatalf("row 1 = %v", rows[1])
	}
	// Vehicle without sensor data exports empty snapshot columns and
	// zero totals.
	if rows[2][5] != "" || rows[2][8] != "0" || rows[2][10] != "" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

func TestBuildUsageXLSX(t *testing.T) {
	payload, err := BuildUsageXLSX(fleetFixture())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("empty workbook")
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(payload, []byte("PK")) {
		t.Fatalf("payload prefix = %q", payload[:2])
	}
}

func TestBuildUsagePDF(t *testing.T) {
	payload, err := BuildUsagePDF(fleetFixture())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatalf("payload prefix = %q", payload[:4])
	}
}

type stubLister struct {
	list []vehicles.Vehicle
}

func (s *stubLister) List(context.Context) ([]vehicles.Vehicle, error) {
	return s.list, nil
}

func TestHandlerContentTypes(t *testing.T) {
	handler, err := NewHandler(&stubLister{list: fleetFixture()}, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	router := mux.NewRouter()
	handler.Register(router)

	cases := map[string]string{
		"/api/v1/exports/usage.csv":  "text/csv",
		"/api/v1/exports/usage.xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"/api/v1/exports/usage.pdf":  "application/pdf",
	}
	for path, contentType := range cases {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
			continue
		}
		if got := rec.Header().Get("Content-Type"); got != contentType {
			t.Errorf("%s: content type = %q, want %q", path, got, contentType)
		}
		if rec.Body.Len() == 0 {
			t.Errorf("%s: empty body", path)
		}
	}
}
