package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"fleet-telemetry-cloud/internal/audit"
	maintenanceapp "fleet-telemetry-cloud/internal/maintenance/application"
	maintenance "fleet-telemetry-cloud/internal/maintenance/domain"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// Handler provides maintenance HTTP endpoints.
type Handler struct {
	service *maintenanceapp.Service
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a handler. The auditor may be nil.
func NewHandler(service *maintenanceapp.Service, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("maintenance handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditor: auditor, logger: logger}, nil
}

// Register mounts the maintenance routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/vehicles/{vehicleId}/maintenance", h.handleAdd).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/vehicles/{vehicleId}/maintenance", h.handleList).Methods(http.MethodGet)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["vehicleId"]

	var input maintenanceapp.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	record, err := h.service.Add(r.Context(), vehicleID, input)
	if err != nil {
		switch {
		case errors.Is(err, vehicles.ErrVehicleNotFound):
			writeError(w, http.StatusNotFound, "vehicle not found")
		case errors.Is(err, maintenance.ErrInvalidRecord):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Printf("maintenance handler: add for vehicle %s: %v", vehicleID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.auditLog(r, "maintenance.create", record.ID, record)
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["vehicleId"]

	records, err := h.service.List(r.Context(), vehicleID)
	if err != nil {
		if errors.Is(err, vehicles.ErrVehicleNotFound) {
			writeError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		h.logger.Printf("maintenance handler: list for vehicle %s: %v", vehicleID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []maintenance.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) auditLog(r *http.Request, action, resourceID string, payload any) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(payload)
	entry := audit.Entry{
		Action:       action,
		ResourceType: "maintenance_record",
		ResourceID:   resourceID,
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(context.WithoutCancel(r.Context()), entry); err != nil {
		h.logger.Printf("maintenance handler: audit %s: %v", action, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
