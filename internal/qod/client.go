package qod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/metrics"
	"github.com/VIPHakim/netboost/internal/platform/retry"
)

const (
	requestTimeout        = 15 * time.Second
	retryInitialBackoff   = 1 * time.Second
	retryRateLimitBackoff = 30 * time.Second

	breakerFailureThreshold = 5
	breakerOpenDuration     = 30 * time.Second
)

// apiError carries the remote status code and body for classification and
// user-facing warnings.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("qod api status %d: %s", e.StatusCode, e.Body)
}

// Client is the HTTP client for the QoD session endpoints. Outbound calls run
// through a rate limiter and a circuit breaker; deletes retry on transient
// failures.
type Client struct {
	baseURL    string
	tokens     domain.TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

type ClientOptions struct {
	RequestsPerSecond float64
	Burst             int
}

func NewClient(baseURL string, tokens domain.TokenSource, opts ClientOptions) *Client {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}

	settings := gobreaker.Settings{
		Name:    "qod-api",
		Timeout: breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("QoD circuit breaker state change", "from", from.String(), "to", to.String())
			metrics.QodCircuitBreakerState.Set(breakerStateValue(to))
		},
		IsSuccessful: func(err error) bool {
			// Only remote-unavailable failures trip the breaker; 400s and 404s
			// are answers, not outages.
			return err == nil || !apperrors.IsType(err, apperrors.TypeRemote)
		},
	}

	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// --- wire types ---

type sessionRequestBody struct {
	Duration          int           `json:"duration"`
	Device            deviceBody    `json:"device"`
	ApplicationServer appServerBody `json:"applicationServer"`
	DevicePorts       *portsBody    `json:"devicePorts,omitempty"`
	AppServerPorts    *portsBody    `json:"applicationServerPorts,omitempty"`
	QosProfile        string        `json:"qosProfile"`
	Webhook           *webhookBody  `json:"webhook,omitempty"`
}

type deviceBody struct {
	IPv4Address *ipv4Body `json:"ipv4Address,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
}

type ipv4Body struct {
	PublicAddress string `json:"publicAddress"`
}

type appServerBody struct {
	IPv4Address string `json:"ipv4Address"`
}

type portsBody struct {
	Ports []int `json:"ports"`
}

type webhookBody struct {
	NotificationURL string `json:"notificationUrl"`
}

type sessionResponseBody struct {
	SessionID string `json:"sessionId"`
	QosStatus string `json:"qosStatus"`
	Duration  int    `json:"duration"`
}

func (b sessionResponseBody) toRemote() *domain.RemoteSession {
	status := domain.StatusRequested
	if b.QosStatus != "" {
		status = domain.ParseQosStatus(b.QosStatus)
	}
	return &domain.RemoteSession{
		ID:              b.SessionID,
		Status:          status,
		DurationSeconds: b.Duration,
	}
}

// --- operations ---

func (c *Client) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.RemoteSession, error) {
	body := sessionRequestBody{
		Duration:          req.DurationSeconds,
		Device:            deviceBody{PhoneNumber: req.MSISDN},
		ApplicationServer: appServerBody{IPv4Address: req.AppServerIP},
		QosProfile:        req.QosProfile,
	}
	if req.DeviceIP != "" {
		body.Device.IPv4Address = &ipv4Body{PublicAddress: req.DeviceIP}
	}
	if len(req.DevicePorts) > 0 {
		body.DevicePorts = &portsBody{Ports: req.DevicePorts}
	}
	if len(req.AppServerPorts) > 0 {
		body.AppServerPorts = &portsBody{Ports: req.AppServerPorts}
	}
	if req.WebhookURL != "" {
		body.Webhook = &webhookBody{NotificationURL: req.WebhookURL}
	}

	var out sessionResponseBody
	if err := c.call(ctx, "create", http.MethodPost, c.baseURL+"/sessions", body, &out); err != nil {
		return nil, err
	}
	return out.toRemote(), nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.RemoteSession, error) {
	var out sessionResponseBody
	if err := c.call(ctx, "status", http.MethodGet, c.baseURL+"/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	return out.toRemote(), nil
}

func (c *Client) ExtendSession(ctx context.Context, sessionID string, additionalSeconds int) (*domain.RemoteSession, error) {
	body := map[string]int{"requestedAdditionalDuration": additionalSeconds}

	var out sessionResponseBody
	if err := c.call(ctx, "extend", http.MethodPost, c.baseURL+"/sessions/"+sessionID+"/extend", body, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		out.SessionID = sessionID
	}
	return out.toRemote(), nil
}

// DeleteSession removes the remote session. A 404 is idempotent success.
// Transient failures retry with backoff before surfacing.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	p := retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   retryInitialBackoff,
		RateLimitBackoff: retryRateLimitBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("QoD delete failed, retrying", "session_id", sessionID, "attempt", attempt, "backoff_seconds", backoff.Seconds(), "error", err)
		},
	}

	err := retry.DoVoid(ctx, p, classifyQodError, func() error {
		return c.call(ctx, "delete", http.MethodDelete, c.baseURL+"/sessions/"+sessionID, nil, nil)
	})
	if apperrors.IsType(err, apperrors.TypeNotFound) {
		// Already gone on the remote side.
		return nil
	}
	return err
}

func classifyQodError(err error) retry.Action {
	var api *apiError
	if errors.As(err, &api) {
		switch {
		case api.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case api.StatusCode >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	if apperrors.IsType(err, apperrors.TypeRemote) {
		return retry.Retry
	}
	return retry.Stop
}

// call performs one authenticated request through the limiter and breaker,
// decoding a JSON response into out when out is non-nil.
func (c *Client) call(ctx context.Context, operation, method, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.RemoteError("rate limiter interrupted", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, method, url, token, body, out)
	})
	metrics.QodRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = apperrors.RemoteError("QoD circuit breaker open", err)
	}

	status := "ok"
	if err != nil {
		status = string(apperrors.AsStructuredError(err).Type)
	}
	metrics.QodRequestsTotal.WithLabelValues(operation, status).Inc()

	return err
}

func (c *Client) do(ctx context.Context, method, url, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperrors.InternalError("encoding request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return apperrors.InternalError("building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.RemoteError("QoD request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.RemoteError("reading QoD response", err)
	}

	if resp.StatusCode >= 400 {
		api := &apiError{StatusCode: resp.StatusCode, Body: string(raw)}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return apperrors.NotFoundError("session not found on QoD service").
				WithContext("status_code", resp.StatusCode)
		case resp.StatusCode == http.StatusBadRequest:
			return apperrors.ValidationError("QoD rejected request parameters").
				WithContext("status_code", resp.StatusCode).
				WithContext("body", string(raw))
		default:
			return apperrors.RemoteError("QoD request failed", api).
				WithContext("status_code", resp.StatusCode).
				WithContext("body", string(raw))
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperrors.RemoteError("decoding QoD response", err)
		}
	}
	return nil
}
