// Package health implements the liveness probe collaborator: a check that a
// node's flow service reports itself healthy on its status endpoint.
package health

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// Checker reports whether the managed service on a node is up and healthy.
type Checker interface {
	// CheckRunning returns true when the service's status endpoint answers
	// successfully. A false return with nil error means "definitively not
	// running"; an error means the check itself could not complete.
	CheckRunning(ctx context.Context, address string) (bool, error)
}

// HTTPChecker probes the service's HTTPS status endpoint.
type HTTPChecker struct {
	port   int
	client *http.Client
}

// NewHTTPChecker creates a checker against the given web port. Certificate
// verification is skipped: nodes serve certificates from the cluster's own
// private authority, which the orchestrator does not necessarily trust
// system-wide.
func NewHTTPChecker(port int) *HTTPChecker {
	return &HTTPChecker{
		port: port,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402
			},
		},
	}
}

// CheckRunning implements Checker.
func (c *HTTPChecker) CheckRunning(ctx context.Context, address string) (bool, error) {
	url := fmt.Sprintf("https://%s:%d/status", address, c.port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Connection refused or reset means the service is not up yet;
		// that is a negative result, not a probe failure.
		return false, nil
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
