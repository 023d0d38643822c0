// Package client talks to the telehealth action endpoint and drives the
// lifetime of one conference session on the caller's side.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/telehealth-gateway/internal/application"
)

const (
	providerPath = "/api/provider"
	portalPath   = "/api/portal"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// StatusError is returned for any non-success response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("telehealth: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("telehealth: %d %s", e.Code, e.Message)
}

// Forbidden reports whether the server refused the caller.
func (e *StatusError) Forbidden() bool {
	return e.Code == http.StatusForbidden
}

// Client calls one action endpoint as one identity.
type Client struct {
	endpoint   string
	httpClient *http.Client
	identity   string
	csrfToken  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithIdentityToken sets the bearer identity token sent on every call.
func WithIdentityToken(token string) Option {
	return func(c *Client) {
		c.identity = strings.TrimSpace(token)
	}
}

// WithCSRFToken sets the forgery token sent with status changes.
func WithCSRFToken(token string) Option {
	return func(c *Client) {
		c.csrfToken = strings.TrimSpace(token)
	}
}

// WithLogger sets the logger used for background failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client for the provider or portal endpoint under baseURL.
func New(baseURL string, variant application.Variant, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	path := providerPath
	if variant == application.VariantPortal {
		path = portalPath
	}

	c := &Client{
		endpoint:   base.String() + path,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LaunchData requests the room configuration for an appointment.
func (c *Client) LaunchData(ctx context.Context, appointmentID string) (application.LaunchData, error) {
	var data application.LaunchData
	err := c.call(ctx, "launch_data", appointmentParams(appointmentID), &data)
	return data, err
}

// Heartbeat marks the caller present in the appointment's session.
func (c *Client) Heartbeat(ctx context.Context, appointmentID string) error {
	var ack application.HeartbeatAck
	return c.call(ctx, "heartbeat", appointmentParams(appointmentID), &ack)
}

// ProviderReady reports whether the provider has a fresh heartbeat.
func (c *Client) ProviderReady(ctx context.Context, appointmentID string) (bool, error) {
	var readiness application.Readiness
	if err := c.call(ctx, "patient_ready_check", appointmentParams(appointmentID), &readiness); err != nil {
		return false, err
	}
	return readiness.ProviderReady, nil
}

// SetStatus changes the appointment status code.
func (c *Client) SetStatus(ctx context.Context, appointmentID, status string) (application.StatusAck, error) {
	params := appointmentParams(appointmentID)
	params.Set("status", status)

	var ack application.StatusAck
	err := c.call(ctx, "set_status", params, &ack)
	return ack, err
}

// SetEncounter links the appointment to a clinical encounter.
func (c *Client) SetEncounter(ctx context.Context, appointmentID string) (application.EncounterAck, error) {
	var ack application.EncounterAck
	err := c.call(ctx, "set_encounter", appointmentParams(appointmentID), &ack)
	return ack, err
}

// Settings fetches the public feature flags.
func (c *Client) Settings(ctx context.Context) (application.SettingsView, error) {
	var view application.SettingsView
	err := c.call(ctx, "settings", url.Values{}, &view)
	return view, err
}

func appointmentParams(appointmentID string) url.Values {
	return url.Values{"pc_eid": {strings.TrimSpace(appointmentID)}}
}

func (c *Client) call(ctx context.Context, action string, params url.Values, out any) error {
	target := c.endpoint + "?" + url.Values{"action": {action}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.identity != "" {
		req.Header.Set("Authorization", "Bearer "+c.identity)
	}
	if c.csrfToken != "" {
		req.Header.Set("APICSRFTOKEN", c.csrfToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{Code: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return statusErr
	}
	var body application.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		statusErr.Message = body.Error
	}
	return statusErr
}

// IsStatus reports whether err is a StatusError with code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
