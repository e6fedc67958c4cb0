package provision

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cyd-home/provisiond/pkg/registry"
)

// provisionRequest is the JSON body of POST /provision.
type provisionRequest struct {
	DeviceID    string `json:"device_id"`
	DeviceType  string `json:"device_type"`
	MACAddress  string `json:"mac_address"`
	RequestType string `json:"request_type"`
}

// provisionResponse is the JSON success payload.
type provisionResponse struct {
	Status       string `json:"status"`
	MQTTBroker   string `json:"mqtt_broker"`
	MQTTPort     uint16 `json:"mqtt_port"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password"`
}

// errorResponse is the JSON error payload.
type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Handler returns the HTTP handler for POST /provision.
func Handler(svc *Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/provision", func(w http.ResponseWriter, r *http.Request) {
		handleProvision(svc, logger, w, r)
	})
	return mux
}

func handleProvision(svc *Service, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if r.Context().Err() != nil {
			// Client went away mid-read; nothing to respond to.
			return
		}
		logger.Warn("invalid JSON in /provision request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	grant, err := svc.Provision(r.Context(), Request{
		DeviceID:    body.DeviceID,
		DeviceType:  body.DeviceType,
		MACAddress:  body.MACAddress,
		RequestType: body.RequestType,
	})
	if err != nil {
		writeProvisionError(w, r, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, provisionResponse{
		Status:       "success",
		MQTTBroker:   grant.BrokerHost,
		MQTTPort:     grant.BrokerPort,
		MQTTUsername: grant.BrokerUsername,
		MQTTPassword: grant.Token,
	})
}

// writeProvisionError maps pipeline errors to HTTP status codes. Internal
// detail stays in the log; the caller gets a category and a short reason.
func writeProvisionError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client cancelled; no response, not an error.
	case errors.Is(err, ErrMissingField):
		writeError(w, http.StatusBadRequest,
			"Missing required fields: device_id, device_type, mac_address, and request_type")
	case errors.Is(err, ErrUnsupportedRequestType):
		writeError(w, http.StatusNotAcceptable, "Unsupported request_type")
	case errors.Is(err, ErrDeviceDenied):
		writeError(w, http.StatusForbidden, "Device validation failed")
	case errors.Is(err, registry.ErrStorage):
		logger.Error("registry failure handling /provision", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		logger.Error("unexpected error handling /provision", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Status: "error", Error: reason})
}
