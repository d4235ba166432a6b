package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"fleet-telemetry-cloud/internal/audit"
	vehicleapp "fleet-telemetry-cloud/internal/vehicles/application"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// Handler provides vehicle HTTP endpoints.
type Handler struct {
	service *vehicleapp.Service
	auditor audit.Logger
	logger  *log.Logger
}

// NewHandler constructs a handler. The auditor may be nil.
func NewHandler(service *vehicleapp.Service, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("vehicles handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, auditor: auditor, logger: logger}, nil
}

// Register mounts the vehicle routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/vehicles", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/vehicles", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/vehicles/{vehicleId}", h.handleGet).Methods(http.MethodGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input vehicleapp.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	vehicle, err := h.service.Register(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, vehicles.ErrInvalidVehicle):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, vehicles.ErrDuplicateDevice):
			writeError(w, http.StatusConflict, "device id already registered")
		default:
			h.logger.Printf("vehicles handler: register: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.auditLog(r, "vehicle.create", vehicle.ID, vehicle)
	writeJSON(w, http.StatusCreated, vehicle)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Printf("vehicles handler: list: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []vehicles.Vehicle{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["vehicleId"]
	vehicle, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, vehicles.ErrVehicleNotFound) {
			writeError(w, http.StatusNotFound, "vehicle not found")
			return
		}
		h.logger.Printf("vehicles handler: get %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (h *Handler) auditLog(r *http.Request, action, resourceID string, payload any) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(payload)
	entry := audit.Entry{
		Action:       action,
		ResourceType: "vehicle",
		ResourceID:   resourceID,
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(context.WithoutCancel(r.Context()), entry); err != nil {
		h.logger.Printf("vehicles handler: audit %s: %v", action, err)
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
