// Package delivery implements the signed, bounded-attempt transmission
// of payloads to the service. The attempt ceiling and the success
// classification live here as explicit policy rather than inside the
// HTTP client's retry hooks, so both are directly testable.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/admin-iq/iq-agent/internal/metrics"
	"github.com/admin-iq/iq-agent/internal/security"
)

// ErrExhausted is returned after every attempt failed. The payload is
// dropped by the caller; exhaustion is never fatal to the process.
var ErrExhausted = errors.New("delivery attempts exhausted")

// Client signs and posts payloads. Safe for shared use; the underlying
// resty client pools connections.
type Client struct {
	http        *resty.Client
	security    *security.Provider
	maxAttempts int
	log         zerolog.Logger
}

// New builds a delivery client. maxAttempts bounds POSTs per payload
// (the source default is 3); timeout applies per attempt.
func New(sec *security.Provider, maxAttempts int, timeout time.Duration, log zerolog.Logger) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	http := resty.New().
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+sec.AccessToken()).
		SetHeader("Client-ID", sec.ClientID())

	return &Client{
		http:        http,
		security:    sec,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "delivery").Logger(),
	}
}

// Deliver signs payload and posts it to url, retrying up to the
// attempt ceiling. Only a 201 counts as acknowledged; any other status
// or transport error consumes an attempt. The signature is computed
// once over the exact bytes sent — payload must not be rewritten.
//
// kind labels the payload in logs and metrics (log, vitals, result).
func (c *Client) Deliver(ctx context.Context, url, kind string, payload []byte) error {
	signature, err := c.security.Sign(payload)
	if err != nil {
		return fmt.Errorf("signing %s payload: %w", kind, err)
	}

	var lastStatus int
	var lastDetail string

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		metrics.DeliveryAttempts.WithLabelValues(kind).Inc()

		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("Signature", signature).
			SetBody(payload).
			Post(url)
		if err != nil {
			lastStatus = 0
			lastDetail = err.Error()
			c.log.Warn().Err(err).
				Str("kind", kind).
				Int("attempt", attempt).
				Msg("delivery attempt failed")
			continue
		}

		if resp.StatusCode() == 201 {
			metrics.EventsDelivered.WithLabelValues(kind).Inc()
			return nil
		}

		lastStatus = resp.StatusCode()
		lastDetail = errorDetail(resp.Body())
		c.log.Warn().
			Str("kind", kind).
			Int("attempt", attempt).
			Int("status", lastStatus).
			Str("detail", lastDetail).
			Msg("service rejected payload")
	}

	metrics.EventsDropped.WithLabelValues(kind).Inc()
	c.log.Error().
		Str("kind", kind).
		Int("status", lastStatus).
		Str("detail", lastDetail).
		Int("attempts", c.maxAttempts).
		Msg("delivery exhausted, dropping payload")

	return fmt.Errorf("%w: %s after %d attempts, last status %d: %s",
		ErrExhausted, kind, c.maxAttempts, lastStatus, lastDetail)
}

// errorDetail pulls the detail field out of a JSON error body. Bodies
// that are not JSON, or JSON without detail, degrade to a raw snippet.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		var s string
		if json.Unmarshal(parsed.Detail, &s) == nil {
			return s
		}
		return string(parsed.Detail)
	}

	const max = 256
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
