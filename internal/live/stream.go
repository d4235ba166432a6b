package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"fleet-telemetry-cloud/internal/observability/metrics"
	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// Event names on the live status stream.
const (
	eventConnected = "connected"
	eventStatus    = "status"
	eventError     = "error"
)

// forwardBuffer bounds how many pending snapshots a slow client may
// have queued; beyond that, newer publishes win and older ones are
// dropped for that client only.
const forwardBuffer = 64

// VehicleFinder resolves the streaming target by its external id.
type VehicleFinder interface {
	Get(ctx context.Context, id string) (*vehicles.Vehicle, error)
}

// StreamHandler serves the per-vehicle live status stream over SSE.
//
// Per connection: `connected`, then either a terminal `error` event
// (unknown vehicle) or a baseline `status` snapshot followed by one
// `status` event per hub publish for the vehicle's device key. The
// handler returns only when the client disconnects, and always
// unsubscribes the listener it registered.
type StreamHandler struct {
	finder VehicleFinder
	hub    *Hub[string, vehicles.SensorSnapshot]
	logger *log.Logger
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(finder VehicleFinder, hub *Hub[string, vehicles.SensorSnapshot], logger *log.Logger) (*StreamHandler, error) {
	if finder == nil {
		return nil, errors.New("live stream: nil finder")
	}
	if hub == nil {
		return nil, errors.New("live stream: nil hub")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &StreamHandler{finder: finder, hub: hub, logger: logger}, nil
}

// ServeHTTP handles GET /api/v1/vehicles/{vehicleId}/status.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, flusher, eventConnected, struct{}{})

	vehicleID := mux.Vars(r)["vehicleId"]
	vehicle, err := h.finder.Get(r.Context(), vehicleID)
	if err != nil {
		message := "internal error"
		if errors.Is(err, vehicles.ErrVehicleNotFound) {
			message = "vehicle not found"
		} else {
			h.logger.Printf("live stream: resolve vehicle %s: %v", vehicleID, err)
		}
		writeEvent(w, flusher, eventError, map[string]string{"error": message})
		return
	}

	// Baseline so the client is never blank; null until the first
	// reading arrives.
	writeEvent(w, flusher, eventStatus, vehicle.Sensor)

	updates := make(chan vehicles.SensorSnapshot, forwardBuffer)
	listener := NewListener(func(snapshot vehicles.SensorSnapshot) {
		select {
		case updates <- snapshot:
		default:
		}
	})
	h.hub.Subscribe(vehicle.DeviceID, listener)
	defer h.hub.Unsubscribe(vehicle.DeviceID, listener)

	metrics.IncLiveStreams()
	defer metrics.DecLiveStreams()

	done := r.Context().Done()
	for {
		select {
		case snapshot := <-updates:
			writeEvent(w, flusher, eventStatus, snapshot)
		case <-done:
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flusher.Flush()
}
