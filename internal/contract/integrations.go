package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/maticvigil/vigil-go/internal/signer"
)

// ChannelWeb is the only integration channel the gateway accepts from clients.
const ChannelWeb = "web"

// hookMessage is the fixed text signed for every hook request.
const hookMessage = "dummystring"

var ErrUnsupportedChannel = errors.New("only integrations of type 'web' are supported")

// Integration is a registered webhook as listed by the gateway.
type Integration struct {
	ID     int64           `json:"id"`
	URL    string          `json:"url"`
	Active bool            `json:"active"`
	Events []string        `json:"events,omitempty"`
	Extra  json.RawMessage `json:"-"`
}

type hookResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// hookCall signs and posts a request to one of the /hooks endpoints.
func (c *Contract) hookCall(ctx context.Context, path string, extra map[string]any, headers map[string]string) (*hookResponse, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("a signer is required to manage integrations")
	}
	msg, sig, err := signer.SignedMessage(c.signer, hookMessage)
	if err != nil {
		return nil, fmt.Errorf("error signing hook request: %w", err)
	}
	params := map[string]any{
		"msg":      msg,
		"sig":      sig,
		"key":      c.writeKey,
		"type":     ChannelWeb,
		"contract": c.address,
	}
	for k, v := range extra {
		params[k] = v
	}

	c.lggr.Debugw("Hook request", "path", path)
	var resp hookResponse
	if err := c.rest.Post(ctx, c.internal+path, params, headers, &resp); err != nil {
		return nil, err
	}
	c.lggr.Debugw("Hook response", "path", path, "success", resp.Success)
	return &resp, nil
}

// Integrations lists the webhooks registered for the contract.
func (c *Contract) Integrations(ctx context.Context) ([]Integration, error) {
	resp, err := c.hookCall(ctx, "/hooks/list", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("error listing integrations: %s", resp.Error)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, fmt.Errorf("error decoding integrations: %w", err)
	}
	out := make([]Integration, 0, len(raw))
	for _, r := range raw {
		var in Integration
		if err := json.Unmarshal(r, &in); err != nil {
			return nil, fmt.Errorf("error decoding integration: %w", err)
		}
		in.Extra = r
		out = append(out, in)
	}
	return out, nil
}

func (c *Contract) ActivateIntegration(ctx context.Context, id int64) error {
	return c.toggleIntegration(ctx, "/hooks/activate", id)
}

func (c *Contract) DeactivateIntegration(ctx context.Context, id int64) error {
	return c.toggleIntegration(ctx, "/hooks/deactivate", id)
}

func (c *Contract) toggleIntegration(ctx context.Context, path string, id int64) error {
	resp, err := c.hookCall(ctx, path, map[string]any{"id": id}, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("error updating integration %d: %s", id, resp.Error)
	}
	return nil
}

// AddEventIntegration registers callbackURL and subscribes it to events. A
// "*" anywhere in events subscribes to all of them.
func (c *Contract) AddEventIntegration(ctx context.Context, events []string, callbackURL, channel string) (int64, error) {
	if channel != ChannelWeb {
		c.lggr.Errorw("Unsupported integration channel", "channel", channel)
		return 0, ErrUnsupportedChannel
	}
	if slices.Contains(events, "*") {
		events = []string{"*"}
	}
	id, err := c.registerIntegration(ctx, callbackURL)
	if err != nil {
		return 0, err
	}
	resp, err := c.hookCall(ctx, "/hooks/updateEvents", map[string]any{"id": id, "events": events}, nil)
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("error subscribing integration %d to events: %s", id, resp.Error)
	}
	return id, nil
}

// AddContractMonitoringIntegration registers callbackURL for every
// transaction sent to the contract.
func (c *Contract) AddContractMonitoringIntegration(ctx context.Context, callbackURL, channel string) (int64, error) {
	if channel != ChannelWeb {
		c.lggr.Errorw("Unsupported integration channel", "channel", channel)
		return 0, ErrUnsupportedChannel
	}
	id, err := c.registerIntegration(ctx, callbackURL)
	if err != nil {
		return 0, err
	}
	resp, err := c.hookCall(ctx, "/hooks/transactions", map[string]any{"id": id, "action": "set"}, nil)
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("error enabling monitoring for integration %d: %s", id, resp.Error)
	}
	return id, nil
}

func (c *Contract) registerIntegration(ctx context.Context, callbackURL string) (int64, error) {
	c.lggr.Debugw("Registering webhook", "url", callbackURL)
	resp, err := c.hookCall(ctx, "/hooks/add", map[string]any{"web": callbackURL}, map[string]string{"X-API-KEY": c.writeKey})
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("error registering webhook %s: %s", callbackURL, resp.Error)
	}
	var data struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, fmt.Errorf("error decoding webhook registration: %w", err)
	}
	return data.ID, nil
}
