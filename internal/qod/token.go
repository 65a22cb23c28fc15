// Package qod talks to the remote Quality-on-Demand service: OAuth2
// client-credentials token acquisition and the session endpoints.
package qod

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/VIPHakim/netboost/internal/domain"
	apperrors "github.com/VIPHakim/netboost/internal/errors"
	"github.com/VIPHakim/netboost/internal/metrics"
)

const (
	tokenRequestTimeout = 10 * time.Second

	// tokenExpiryMargin is subtracted from expires_in once at acquisition so a
	// token is refreshed before the remote side considers it dead.
	tokenExpiryMargin = 60 * time.Second
)

// TokenCache acquires and caches a bearer token from the OAuth2
// client-credentials endpoint. Concurrent callers during a cache miss collapse
// onto a single in-flight request.
type TokenCache struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	clock        clockwork.Clock

	group singleflight.Group

	mu     sync.Mutex
	record *domain.TokenRecord
}

func NewTokenCache(clientID, clientSecret, tokenURL string, clock clockwork.Clock) *TokenCache {
	return &TokenCache{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: tokenRequestTimeout},
		clock:        clock,
	}
}

// Token returns a valid access token, fetching a fresh one only when the
// cached record is missing or past its (margin-adjusted) expiry. On fetch
// failure the stale record is left untouched and an auth error is returned.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		metrics.TokenCacheHitsTotal.Inc()
		return token, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		// Re-check under the flight: a concurrent caller may have refreshed.
		if token, ok := c.cached(); ok {
			return token, nil
		}

		record, err := c.fetch(ctx)
		if err != nil {
			metrics.TokenRequestsTotal.WithLabelValues("error").Inc()
			return "", err
		}
		metrics.TokenRequestsTotal.WithLabelValues("ok").Inc()

		c.mu.Lock()
		c.record = record
		c.mu.Unlock()

		slog.Debug("Acquired QoD access token", "expires_at", record.ExpiresAt)
		return record.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached record so the next Token call refetches.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.record = nil
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record != nil && c.clock.Now().Before(c.record.ExpiresAt) {
		return c.record.AccessToken, true
	}
	return "", false
}

func (c *TokenCache) fetch(ctx context.Context) (*domain.TokenRecord, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, apperrors.AuthError("building token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.AuthError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.AuthError("reading token response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.AuthError("token endpoint rejected request", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))).
			WithContext("status_code", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.AuthError("decoding token response", err)
	}
	if result.AccessToken == "" {
		return nil, apperrors.AuthError("token endpoint returned an empty access_token", nil)
	}

	return &domain.TokenRecord{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresAt:   c.clock.Now().Add(time.Duration(result.ExpiresIn)*time.Second - tokenExpiryMargin),
	}, nil
}
