// Package provider contains the HTTP clients for the chat-completions and
// hosted inference APIs.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/telemetry"
)

// maxResponseBytes bounds how much of a provider reply is read.
const maxResponseBytes = 4 << 20

// transport is shared by both clients.
type transport struct {
	provider domain.Provider
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
}

func newTransport(provider domain.Provider, client *http.Client, timeout time.Duration, logger *slog.Logger) transport {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return transport{
		provider: provider,
		client:   client,
		timeout:  timeout,
		logger:   logger,
	}
}

// doJSON POSTs body as JSON to url with a bearer token and returns the raw
// 2xx response body. Non-2xx statuses and network failures are reported as
// *domain.TransportError.
func (t transport) doJSON(ctx context.Context, url, token string, body any) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "provider."+string(t.provider),
		telemetry.AttrProvider.String(string(t.provider)),
	)
	defer span.End()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome := "ok"
	defer func() {
		telemetry.ProviderRequests.WithLabelValues(string(t.provider), outcome).Inc()
		telemetry.ProviderLatency.WithLabelValues(string(t.provider)).Observe(time.Since(start).Seconds())
	}()

	fail := func(err error) ([]byte, error) {
		outcome = "transport"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fail(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fail(&domain.TransportError{Provider: t.provider, Err: err})
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fail(&domain.TransportError{Provider: t.provider, Err: err})
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.logger.Debug("failed to close provider response body", "provider", t.provider, "error", closeErr)
		}
	}()

	span.SetAttributes(telemetry.AttrStatus.Int(resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(&domain.TransportError{Provider: t.provider, StatusCode: resp.StatusCode, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := errorMessage(data)
		t.logger.Warn("provider returned non-success status",
			"provider", t.provider,
			"status", resp.StatusCode,
			"message", msg,
		)
		return fail(&domain.TransportError{
			Provider:   t.provider,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		})
	}

	return data, nil
}

// maxErrorMessage bounds the plain-text error body kept on a TransportError.
const maxErrorMessage = 512

// errorMessage extracts the provider's error text from a non-2xx body: the
// "error" (or "message") string of a JSON object, otherwise the trimmed body
// when it is plain text. It returns "" when nothing usable is found.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var obj struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Valid(body) {
		if err := json.Unmarshal(body, &obj); err != nil {
			return ""
		}
		var s string
		if len(obj.Error) > 0 && json.Unmarshal(obj.Error, &s) == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if len(obj.Error) > 0 && json.Unmarshal(obj.Error, &nested) == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
		return strings.TrimSpace(obj.Message)
	}

	if bytes.HasPrefix(body, []byte("<")) {
		return ""
	}
	msg := string(body)
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}
	return strings.TrimSpace(msg)
}

// markMalformed records a decode failure on the metrics of the current call.
func (t transport) markMalformed() {
	telemetry.ProviderRequests.WithLabelValues(string(t.provider), "malformed").Inc()
}
