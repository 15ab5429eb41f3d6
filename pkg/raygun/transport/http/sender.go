// Package http posts payloads to the collector over HTTP and probes whether
// the collector host is reachable.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	nethttp "net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

const (
	// APIKeyHeader carries the application API key.
	APIKeyHeader = "X-ApiKey"
	contentType  = "application/json; charset=utf-8"

	// maxErrorBody bounds how much of a rejected response is kept in the error.
	maxErrorBody = 512
)

// StatusError is returned when the collector answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures a Sender.
type Option func(*senderConfig)

type senderConfig struct {
	client    *nethttp.Client
	userAgent string
	logger    *zap.Logger
}

// WithClient sets the HTTP client. The default comes from go-cleanhttp.
func WithClient(c *nethttp.Client) Option {
	return func(cfg *senderConfig) {
		if c != nil {
			cfg.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cfg *senderConfig) {
		cfg.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *senderConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Sender POSTs JSON payloads with the API key header.
type Sender struct {
	client    *nethttp.Client
	apiKey    string
	userAgent string
	logger    *zap.Logger
}

var _ raygun.Sender = (*Sender)(nil)

// New creates a Sender authenticating with apiKey.
func New(apiKey string, opts ...Option) *Sender {
	info := raygun.DefaultClientInfo()
	cfg := &senderConfig{
		client:    cleanhttp.DefaultPooledClient(),
		userAgent: info.Name + "/" + info.Version,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Sender{
		client:    cfg.client,
		apiKey:    apiKey,
		userAgent: cfg.userAgent,
		logger:    cfg.logger.Named("http"),
	}
}

// Send implements raygun.Sender. The request is bound to ctx.
func (s *Sender) Send(ctx context.Context, endpoint string, payload []byte) error {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set(APIKeyHeader, s.apiKey)
	req.Header.Set("Content-Type", contentType)
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post to %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Debug("payload rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
