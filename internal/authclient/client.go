// Package authclient issues the single outbound HTTP call the relay ever
// makes: exchanging a bearer token for an authenticated peer id, grounded
// on original_source/src/incoming_handler_from_waitings.rs and
// src/incoming_handler_from_udp.rs's reqwest call sites.
package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"presencerelay/internal/models"
)

// Client issues GET {origin}/auth with a bearer token and parses the
// result. It is the only outbound HTTP the relay performs and the only
// place it suspends outside the event selector (spec §4.7).
type Client struct {
	origin     string
	httpClient *http.Client
	validate   *validator.Validate
}

// New constructs a Client against the given auth service origin.
func New(origin string, httpClient *http.Client) *Client {
	return &Client{
		origin:     origin,
		httpClient: httpClient,
		validate:   validator.New(),
	}
}

// TransportError wraps a network or response-parsing failure talking to
// the auth service.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("auth transport error: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// RejectedError reports a non-201 response from the auth service, with
// its body text as the reported cause.
type RejectedError struct {
	Body string
}

func (e *RejectedError) Error() string { return fmt.Sprintf("auth rejected: %s", e.Body) }

// Authenticate exchanges token for the id the auth service assigns it.
// It returns *TransportError for network/parse failures and
// *RejectedError for any non-201 response, per spec §4.7.
func (c *Client) Authenticate(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin+"/auth", nil)
	if err != nil {
		return "", &TransportError{Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", &RejectedError{Body: string(body)}
	}

	var parsed models.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransportError{Cause: err}
	}
	if err := c.validate.Struct(parsed); err != nil {
		return "", &TransportError{Cause: err}
	}

	return parsed.ID, nil
}
