package reports

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// VehicleLister yields the fleet for report generation.
type VehicleLister interface {
	List(ctx context.Context) ([]vehicles.Vehicle, error)
}

// Handler serves fleet usage exports.
type Handler struct {
	lister VehicleLister
	logger *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(lister VehicleLister, logger *log.Logger) (*Handler, error) {
	if lister == nil {
		return nil, errors.New("reports handler: nil lister")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{lister: lister, logger: logger}, nil
}

// Register mounts the export routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/exports/usage.csv", h.handleCSV).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/exports/usage.xlsx", h.handleXLSX).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/exports/usage.pdf", h.handlePDF).Methods(http.MethodGet)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "text/csv", "usage.csv", BuildUsageCSV)
}

func (h *Handler) handleXLSX(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "usage.xlsx", BuildUsageXLSX)
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "application/pdf", "usage.pdf", BuildUsagePDF)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, contentType, filename string, build func([]vehicles.Vehicle) ([]byte, error)) {
	list, err := h.lister.List(r.Context())
	if err != nil {
		h.logger.Printf("reports handler: list vehicles: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payload, err := build(list)
	if err != nil {
		h.logger.Printf("reports handler: build %s: %v", filename, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
