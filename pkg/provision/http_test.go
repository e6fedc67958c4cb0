package provision

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyd-home/provisiond/pkg/registry"
	"github.com/cyd-home/provisiond/pkg/validator"
)

func postProvision(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/provision", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const validBody = `{
	"device_id": "cyd-kitchen",
	"device_type": "cyd",
	"mac_address": "AA:BB:CC:DD:EE:FF",
	"request_type": "mqtt_config"
}`

func TestHTTPProvisionSuccess(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(t, store, validator.Config{})
	handler := Handler(svc, nil)

	rec := postProvision(t, handler, validBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		Status       string `json:"status"`
		MQTTBroker   string `json:"mqtt_broker"`
		MQTTPort     uint16 `json:"mqtt_port"`
		MQTTUsername string `json:"mqtt_username"`
		MQTTPassword string `json:"mqtt_password"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.MQTTBroker != "broker.local" || resp.MQTTPort != 1883 {
		t.Errorf("broker = %s:%d", resp.MQTTBroker, resp.MQTTPort)
	}
	if resp.MQTTUsername != "cyd" {
		t.Errorf("mqtt_username = %q, want %q", resp.MQTTUsername, "cyd")
	}
	if resp.MQTTPassword == "" {
		t.Error("mqtt_password (token) is empty")
	}

	// The issued token is audited.
	if store.IssuanceCount() != 1 {
		t.Errorf("got %d issuances, want 1", store.IssuanceCount())
	}
}

func TestHTTPProvisionRejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing device_id",
			`{"device_type":"cyd","mac_address":"AA:BB:CC:DD:EE:FF","request_type":"mqtt_config"}`,
			http.StatusBadRequest},
		{"blank device_id",
			`{"device_id":"  ","device_type":"cyd","mac_address":"AA:BB:CC:DD:EE:FF","request_type":"mqtt_config"}`,
			http.StatusBadRequest},
		{"malformed JSON", `{"device_id": `, http.StatusBadRequest},
		{"wrong request_type",
			`{"device_id":"cyd-1","device_type":"cyd","mac_address":"AA:BB:CC:DD:EE:FF","request_type":"ping"}`,
			http.StatusNotAcceptable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := registry.NewMemoryStore()
			svc := newTestService(t, store, validator.Config{})
			handler := Handler(svc, nil)

			rec := postProvision(t, handler, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			var resp struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid error JSON: %v", err)
			}
			if resp.Status != "error" || resp.Error == "" {
				t.Errorf("error payload = %+v", resp)
			}

			// Rejections leave no trace in the registry.
			if store.DeviceCount() != 0 || store.IssuanceCount() != 0 {
				t.Error("rejected request mutated the registry")
			}
		})
	}
}

func TestHTTPProvisionDenied(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(t, store, validator.Config{
		AllowedDeviceTypes: []string{"esp32"},
	})
	handler := Handler(svc, nil)

	rec := postProvision(t, handler, validBody)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestHTTPProvisionStorageFailure(t *testing.T) {
	store := registry.NewMemoryStore()
	store.FailIssuance = registry.ErrStorage
	svc := newTestService(t, store, validator.Config{})
	handler := Handler(svc, nil)

	rec := postProvision(t, handler, validBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "registry") {
		t.Error("internal error detail leaked to the caller")
	}
}

func TestHTTPProvisionMethodNotAllowed(t *testing.T) {
	svc := newTestService(t, registry.NewMemoryStore(), validator.Config{})
	handler := Handler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/provision", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
