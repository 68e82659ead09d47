package client

import (
	"context"
	"net/http"
)

// Health checks one service. The auth service reports health on its root
// path, every other service on /health.
func (c *Client) Health(ctx context.Context, svc Service) (*Health, error) {
	path := "/health"
	if svc == ServiceAuth {
		path = "/"
	}

	out := &Health{}
	if err := c.doJSON(ctx, http.MethodGet, svc, path, nil, nil, out); err != nil {
		return nil, err
	}
	if out.Service == "" {
		out.Service = string(svc)
	}
	return out, nil
}
