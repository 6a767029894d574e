package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBridge(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/entities", func(w http.ResponseWriter, r *http.Request) {
		entities := []Entity{
			{EntityID: "light.living_room", FriendlyName: "Living Room", State: "on", Attributes: map[string]any{"brightness": 127.5}},
			{EntityID: "switch.coffee", FriendlyName: "Coffee Machine", State: "off"},
		}
		if r.URL.Query().Get("domain") == "light" {
			entities = entities[:1]
		}
		json.NewEncoder(w).Encode(entities)
	})
	mux.HandleFunc("GET /v1/entities/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "light.living_room":
			json.NewEncoder(w).Encode(Entity{
				EntityID: "light.living_room", FriendlyName: "Living Room", State: "on",
				Attributes: map[string]any{"brightness": 255.0},
			})
		case "sensor.bedroom_climate":
			json.NewEncoder(w).Encode(Entity{
				EntityID: "sensor.bedroom_climate", FriendlyName: "Bedroom Climate", State: "21.5",
				Attributes: map[string]any{"temperature": 21.5, "humidity": 45.0, "battery": 88.0},
			})
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
	mux.HandleFunc("POST /v1/actions/{action}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			EntityID string `json:"entity_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EntityID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListDevices(t *testing.T) {
	srv := newBridge(t)
	tool := NewListDevices(NewSmartHomeClient(srv.URL))

	out, err := tool.Invoke(context.Background(), map[string]string{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "Living Room (light.living_room): on") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Coffee Machine") {
		t.Errorf("output missing second device: %q", out)
	}

	out, err = tool.Invoke(context.Background(), map[string]string{"domain": "light"})
	if err != nil {
		t.Fatalf("Invoke with domain: %v", err)
	}
	if strings.Contains(out, "Coffee Machine") {
		t.Errorf("domain filter not applied: %q", out)
	}
}

func TestTurnOnOff(t *testing.T) {
	srv := newBridge(t)
	client := NewSmartHomeClient(srv.URL)
	ctx := context.Background()

	out, err := NewTurnOn(client).Invoke(ctx, map[string]string{"entity_id": "light.living_room"})
	if err != nil {
		t.Fatalf("turn_on: %v", err)
	}
	if out != "light.living_room is now on." {
		t.Errorf("turn_on output = %q", out)
	}

	out, err = NewTurnOff(client).Invoke(ctx, map[string]string{"entity_id": "light.living_room"})
	if err != nil {
		t.Fatalf("turn_off: %v", err)
	}
	if out != "light.living_room is now off." {
		t.Errorf("turn_off output = %q", out)
	}
}

func TestGetStatusRendering(t *testing.T) {
	srv := newBridge(t)
	tool := NewGetStatus(NewSmartHomeClient(srv.URL))
	ctx := context.Background()

	out, err := tool.Invoke(ctx, map[string]string{"entity_id": "light.living_room"})
	if err != nil {
		t.Fatalf("get_status light: %v", err)
	}
	if out != "Living Room is on at 100% brightness." {
		t.Errorf("light status = %q", out)
	}

	out, err = tool.Invoke(ctx, map[string]string{"entity_id": "sensor.bedroom_climate"})
	if err != nil {
		t.Fatalf("get_status sensor: %v", err)
	}
	for _, want := range []string{"temperature 21.5", "humidity 45", "battery 88"} {
		if !strings.Contains(out, want) {
			t.Errorf("sensor status missing %q: %q", want, out)
		}
	}
}

func TestGetStatusUnknownEntity(t *testing.T) {
	srv := newBridge(t)
	tool := NewGetStatus(NewSmartHomeClient(srv.URL))

	if _, err := tool.Invoke(context.Background(), map[string]string{"entity_id": "light.missing"}); err == nil {
		t.Error("Invoke for missing entity succeeded, want error")
	}
}
