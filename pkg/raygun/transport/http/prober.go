// prober.go implements raygun.Connectivity by dialing the collector host.

package http

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// DefaultDialTimeout bounds a single reachability probe.
const DefaultDialTimeout = 2 * time.Second

// DialFunc opens a connection; it matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ProberOption configures a Prober.
type ProberOption func(*proberConfig)

type proberConfig struct {
	ttl         time.Duration
	dialTimeout time.Duration
	dial        DialFunc
	logger      *zap.Logger
}

// WithTTL sets how long a probe result is reused.
func WithTTL(d time.Duration) ProberOption {
	return func(c *proberConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithDialTimeout sets the timeout of a single probe.
func WithDialTimeout(d time.Duration) ProberOption {
	return func(c *proberConfig) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithDialer replaces the dial function.
func WithDialer(fn DialFunc) ProberOption {
	return func(c *proberConfig) {
		if fn != nil {
			c.dial = fn
		}
	}
}

// WithProberLogger sets the logger.
func WithProberLogger(l *zap.Logger) ProberOption {
	return func(c *proberConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Prober reports the collector reachable when a TCP connection to its host
// succeeds. Results are cached per address for the TTL.
type Prober struct {
	address     string
	dialTimeout time.Duration
	dial        DialFunc
	results     *cache.Cache
	logger      *zap.Logger
}

var _ raygun.Connectivity = (*Prober)(nil)

// NewProber creates a Prober for the host of endpoint.
func NewProber(endpoint string, opts ...ProberOption) (*Prober, error) {
	address, err := probeAddress(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := &proberConfig{
		ttl:         raygun.DefaultConnectivityTTL,
		dialTimeout: DefaultDialTimeout,
		dial:        (&net.Dialer{}).DialContext,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Prober{
		address:     address,
		dialTimeout: cfg.dialTimeout,
		dial:        cfg.dial,
		results:     cache.New(cfg.ttl, 2*cfg.ttl),
		logger:      cfg.logger.Named("prober"),
	}, nil
}

// Address returns the host:port being probed.
func (p *Prober) Address() string {
	return p.address
}

// InternetAvailable implements raygun.Connectivity.
func (p *Prober) InternetAvailable() bool {
	if v, ok := p.results.Get(p.address); ok {
		return v.(bool)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()

	available := true
	conn, err := p.dial(ctx, "tcp", p.address)
	if err != nil {
		p.logger.Debug("collector unreachable", zap.String("address", p.address), zap.Error(err))
		available = false
	} else {
		_ = conn.Close()
	}
	p.results.SetDefault(p.address, available)
	return available
}

// Reset forgets the cached result.
func (p *Prober) Reset() {
	p.results.Flush()
}

func probeAddress(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "parse endpoint %q", endpoint)
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.Errorf("endpoint %q has no host", endpoint)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return "", errors.Errorf("endpoint %q has unsupported scheme %q", endpoint, u.Scheme)
		}
	}
	return net.JoinHostPort(host, port), nil
}
