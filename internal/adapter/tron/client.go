// Package tron talks to the TRON network through TronGrid (read side) and
// through the payout signer relay (write side).
package tron

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient is the subset of *http.Client the clients use.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxResponseBytes caps what is read from either upstream.
const maxResponseBytes = 4 << 20

// statusError is returned for non-2xx responses.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// do sends req and returns the body of a 2xx response.
func do(ctx context.Context, client HTTPClient, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &statusError{Status: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
