package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SmartHomeClient talks to the home automation bridge over its REST API.
type SmartHomeClient struct {
	baseURL string
	client  *http.Client
}

func NewSmartHomeClient(baseURL string) *SmartHomeClient {
	return &SmartHomeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Entity is one device as reported by the bridge.
type Entity struct {
	EntityID     string         `json:"entity_id"`
	FriendlyName string         `json:"friendly_name"`
	State        string         `json:"state"`
	Attributes   map[string]any `json:"attributes"`
}

func (c *SmartHomeClient) Entities(ctx context.Context, domain string) ([]Entity, error) {
	url := c.baseURL + "/v1/entities"
	if domain != "" {
		url += "?domain=" + domain
	}
	var entities []Entity
	if err := c.getJSON(ctx, url, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (c *SmartHomeClient) Entity(ctx context.Context, entityID string) (Entity, error) {
	var e Entity
	err := c.getJSON(ctx, c.baseURL+"/v1/entities/"+entityID, &e)
	return e, err
}

func (c *SmartHomeClient) TurnOn(ctx context.Context, entityID string) error {
	return c.postAction(ctx, "turn_on", entityID)
}

func (c *SmartHomeClient) TurnOff(ctx context.Context, entityID string) error {
	return c.postAction(ctx, "turn_off", entityID)
}

func (c *SmartHomeClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("smarthome: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("smarthome: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("smarthome: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *SmartHomeClient) postAction(ctx context.Context, action, entityID string) error {
	body, _ := json.Marshal(map[string]string{"entity_id": entityID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/actions/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("smarthome: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("smarthome: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("smarthome: %s %s: status %d: %s", action, entityID, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}

type listDevicesTool struct {
	client *SmartHomeClient
}

func NewListDevices(client *SmartHomeClient) Tool {
	return &listDevicesTool{client: client}
}

func (t *listDevicesTool) Name() string { return "list_devices" }

func (t *listDevicesTool) Description() string {
	return "List smart home devices, optionally filtered by domain, e.g. list_devices(\"light\")"
}

func (t *listDevicesTool) Params() []Param {
	return []Param{{Name: "domain", Description: "optional domain filter such as light, switch or sensor"}}
}

func (t *listDevicesTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	entities, err := t.client.Entities(ctx, args["domain"])
	if err != nil {
		return "", err
	}
	if len(entities) == 0 {
		return "No devices found.", nil
	}
	var b strings.Builder
	for _, e := range entities {
		fmt.Fprintf(&b, "- %s (%s): %s\n", e.FriendlyName, e.EntityID, e.State)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type turnOnTool struct {
	client *SmartHomeClient
}

func NewTurnOn(client *SmartHomeClient) Tool {
	return &turnOnTool{client: client}
}

func (t *turnOnTool) Name() string { return "turn_on" }

func (t *turnOnTool) Description() string {
	return "Turn a device on by entity id, e.g. turn_on(\"light.living_room\")"
}

func (t *turnOnTool) Params() []Param {
	return []Param{{Name: "entity_id", Description: "entity to turn on"}}
}

func (t *turnOnTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	entityID := args["entity_id"]
	if entityID == "" {
		return "", &Error{Tool: t.Name(), Message: "missing required argument: entity_id"}
	}
	if err := t.client.TurnOn(ctx, entityID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is now on.", entityID), nil
}

type turnOffTool struct {
	client *SmartHomeClient
}

func NewTurnOff(client *SmartHomeClient) Tool {
	return &turnOffTool{client: client}
}

func (t *turnOffTool) Name() string { return "turn_off" }

func (t *turnOffTool) Description() string {
	return "Turn a device off by entity id, e.g. turn_off(\"light.living_room\")"
}

func (t *turnOffTool) Params() []Param {
	return []Param{{Name: "entity_id", Description: "entity to turn off"}}
}

func (t *turnOffTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	entityID := args["entity_id"]
	if entityID == "" {
		return "", &Error{Tool: t.Name(), Message: "missing required argument: entity_id"}
	}
	if err := t.client.TurnOff(ctx, entityID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is now off.", entityID), nil
}

type getStatusTool struct {
	client *SmartHomeClient
}

func NewGetStatus(client *SmartHomeClient) Tool {
	return &getStatusTool{client: client}
}

func (t *getStatusTool) Name() string { return "get_status" }

func (t *getStatusTool) Description() string {
	return "Report the current state of a device, e.g. get_status(\"sensor.bedroom_climate\")"
}

func (t *getStatusTool) Params() []Param {
	return []Param{{Name: "entity_id", Description: "entity to inspect"}}
}

func (t *getStatusTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	entityID := args["entity_id"]
	if entityID == "" {
		return "", &Error{Tool: t.Name(), Message: "missing required argument: entity_id"}
	}
	e, err := t.client.Entity(ctx, entityID)
	if err != nil {
		return "", err
	}
	return renderStatus(e), nil
}

// renderStatus turns a raw entity into a sentence the model can relay.
func renderStatus(e Entity) string {
	name := e.FriendlyName
	if name == "" {
		name = e.EntityID
	}
	domain, _, _ := strings.Cut(e.EntityID, ".")

	switch domain {
	case "light":
		if e.State == "on" {
			if raw, ok := e.Attributes["brightness"]; ok {
				if brightness, ok := raw.(float64); ok {
					return fmt.Sprintf("%s is on at %d%% brightness.", name, int(brightness/255*100))
				}
			}
			return fmt.Sprintf("%s is on.", name)
		}
		return fmt.Sprintf("%s is off.", name)
	case "switch":
		return fmt.Sprintf("%s is %s.", name, e.State)
	case "sensor":
		parts := []string{}
		if v, ok := e.Attributes["temperature"].(float64); ok {
			parts = append(parts, fmt.Sprintf("temperature %.1f°C", v))
		}
		if v, ok := e.Attributes["humidity"].(float64); ok {
			parts = append(parts, fmt.Sprintf("humidity %.0f%%", v))
		}
		if v, ok := e.Attributes["battery"].(float64); ok {
			parts = append(parts, fmt.Sprintf("battery %.0f%%", v))
		}
		if len(parts) > 0 {
			return fmt.Sprintf("%s reports %s.", name, strings.Join(parts, ", "))
		}
		return fmt.Sprintf("%s reads %s.", name, e.State)
	default:
		return fmt.Sprintf("%s is %s.", name, e.State)
	}
}
