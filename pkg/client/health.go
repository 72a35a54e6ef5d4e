package client

import (
	"context"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/types/risk"
)

// Liveness is the /healthz body.
type Liveness struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ServerInfo is the /capabilities body.
type ServerInfo struct {
	Version      string             `json:"version"`
	Capabilities *risk.Capabilities `json:"capabilities,omitempty"`
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (*Liveness, error) {
	var out Liveness
	if err := c.get(ctx, "/healthz", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Capabilities describes the server's loaded data and enabled features.
func (c *Client) Capabilities(ctx context.Context) (*ServerInfo, error) {
	var out ServerInfo
	if err := c.get(ctx, "/capabilities", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
