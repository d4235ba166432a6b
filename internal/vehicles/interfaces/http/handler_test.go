package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	vehicleapp "fleet-telemetry-cloud/internal/vehicles/application"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
	"fleet-telemetry-cloud/internal/vehicles/infrastructure/memory"
)

func newTestRouter(t *testing.T) (*mux.Router, *memory.VehicleRepository) {
	t.Helper()
	repo := memory.NewVehicleRepository()
	service, err := vehicleapp.NewService(repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	router := mux.NewRouter()
	handler.Register(router)
	return router, repo
}

func doRequest(t *testing.T, router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateVehicle(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/vehicles",
		`{"make":"Volvo","model":"FH16","year":2022,"deviceId":"ECU-1001"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var created vehicles.Vehicle
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.DeviceID != "ECU-1001" {
		t.Fatalf("DeviceID = %q", created.DeviceID)
	}
	if created.Sensor != nil || created.Analytics != nil {
		t.Fatal("new vehicle must have no sensor state")
	}
}

func TestCreateVehicleValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := map[string]string{
		"short make":    `{"make":"V","model":"FH16","year":2022,"deviceId":"ECU-1001"}`,
		"bad year":      `{"make":"Volvo","model":"FH16","year":1850,"deviceId":"ECU-1001"}`,
		"short device":  `{"make":"Volvo","model":"FH16","year":2022,"deviceId":"E1"}`,
		"missing model": `{"make":"Volvo","year":2022,"deviceId":"ECU-1001"}`,
	}
	for name, body := range cases {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/vehicles", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", name, rec.Code, http.StatusBadRequest)
		}
		var payload map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Errorf("%s: decode error payload: %v", name, err)
			continue
		}
		if payload["error"] == "" {
			t.Errorf("%s: expected error message", name)
		}
	}
}

func TestCreateVehicleDuplicateDevice(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"make":"Volvo","model":"FH16","year":2022,"deviceId":"ECU-1001"}`
	if rec := doRequest(t, router, http.MethodPost, "/api/v1/vehicles", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d", rec.Code)
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/vehicles", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create: status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreateVehicleInvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/vehicles", `{"make":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetVehicle(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/vehicles",
		`{"make":"Scania","model":"R500","year":2021,"deviceId":"ECU-2002"}`)
	var created vehicles.Vehicle
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/vehicles/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var fetched vehicles.Vehicle
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.ID != created.ID || fetched.Make != "Scania" {
		t.Fatalf("fetched = %+v", fetched)
	}
}

func TestGetVehicleNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/vehicles/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "vehicle not found" {
		t.Fatalf("error = %q", payload["error"])
	}
}

func TestListVehicles(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/vehicles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("empty list body = %q, want []", body)
	}

	doRequest(t, router, http.MethodPost, "/api/v1/vehicles",
		`{"make":"Volvo","model":"FH16","year":2022,"deviceId":"ECU-1001"}`)
	doRequest(t, router, http.MethodPost, "/api/v1/vehicles",
		`{"make":"Scania","model":"R500","year":2021,"deviceId":"ECU-2002"}`)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/vehicles", "")
	var list []vehicles.Vehicle
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
}
