// Package radius provides an optional MAC-authorization (NAC) gate checked
// before a lease is offered to a client.
package radius

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"layeh.com/radius"
	"layeh.com/radius/rfc2865"
)

// Client authorizes a client's hardware address against a single RADIUS
// server using its MAC address as both username and password, the common
// convention for MAC-authentication bypass (MAB) NAC deployments.
type Client struct {
	address string
	secret  []byte
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds a Client for the given RADIUS server address
// (host:port) and shared secret.
func NewClient(address, secret string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{address: address, secret: []byte(secret), timeout: timeout, logger: logger}
}

// Authorize sends an Access-Request for mac and reports whether the server
// accepted it. A transport or protocol error is returned rather than
// treated as a reject, so the caller can decide whether to fail open or
// closed.
func (c *Client) Authorize(ctx context.Context, mac net.HardwareAddr) (bool, error) {
	username := mac.String()

	packet := radius.New(radius.CodeAccessRequest, c.secret)
	if err := rfc2865.UserName_SetString(packet, username); err != nil {
		return false, fmt.Errorf("radius: setting User-Name: %w", err)
	}
	if err := rfc2865.UserPassword_SetString(packet, username); err != nil {
		return false, fmt.Errorf("radius: setting User-Password: %w", err)
	}
	if err := rfc2865.CallingStationID_SetString(packet, username); err != nil {
		return false, fmt.Errorf("radius: setting Calling-Station-Id: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := radius.Exchange(ctx, packet, c.address)
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("RADIUS exchange failed", "server", c.address, "mac", username, "error", err)
		return false, fmt.Errorf("radius: exchange with %s: %w", c.address, err)
	}

	accepted := resp.Code == radius.CodeAccessAccept
	c.logger.Debug("RADIUS authorization result",
		"server", c.address, "mac", username, "accepted", accepted, "latency", latency.String())
	return accepted, nil
}
