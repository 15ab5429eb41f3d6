// settings.go defines client configuration and its loading from maps and YAML.

package raygun

import (
	"net/url"
	"strings"
	"time"

	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
	"github.com/pkg/errors"
)

// Defaults used by DefaultSettings.
const (
	DefaultCrashReportingEndpoint = "https://api.raygun.com/entries"
	DefaultRUMEndpoint            = "https://api.raygun.com/events"
	DefaultWrapperType            = "System.Reflection.TargetInvocationException"
	DefaultOfflineCapacity        = 10
	DefaultSendTimeout            = 3 * time.Second
	DefaultRUMStartDelay          = time.Second
	DefaultRUMQueueSize           = 64
	DefaultConnectivityTTL        = 5 * time.Second
)

// ErrMissingAPIKey is returned when a payload cannot be sent because no API
// key is configured.
var ErrMissingAPIKey = errors.New("api key is not set")

// Settings configures a client.
type Settings struct {
	APIKey                 string   `config:"api_key"`
	CrashReportingEndpoint string   `config:"crash_reporting_endpoint"`
	RUMEndpoint            string   `config:"rum_endpoint"`
	ApplicationVersion     string   `config:"application_version"`
	StrippedWrapperTypes   []string `config:"stripped_wrapper_types"`

	OfflineStorage OfflineStorageSettings `config:"offline_storage"`
	RUM            RUMSettings            `config:"rum"`
	Connectivity   ConnectivitySettings   `config:"connectivity"`

	// SendTimeout caps the synchronous wait variants.
	SendTimeout    time.Duration `config:"send_timeout"`
	ImageCacheSize int           `config:"image_cache_size"`
}

// OfflineStorageSettings configures the crash report offline queue.
type OfflineStorageSettings struct {
	// Dir is the queue directory. Empty keeps queued reports in memory.
	Dir      string `config:"dir"`
	Capacity int    `config:"capacity"`
}

// RUMSettings configures real user monitoring.
type RUMSettings struct {
	StartDelay time.Duration `config:"start_delay"`
	QueueSize  int           `config:"queue_size"`
}

// ConnectivitySettings configures the connectivity probe.
type ConnectivitySettings struct {
	TTL time.Duration `config:"ttl"`
}

// DefaultSettings returns settings with every default applied and no API key.
func DefaultSettings() Settings {
	return Settings{
		CrashReportingEndpoint: DefaultCrashReportingEndpoint,
		RUMEndpoint:            DefaultRUMEndpoint,
		StrippedWrapperTypes:   []string{DefaultWrapperType},
		OfflineStorage: OfflineStorageSettings{
			Capacity: DefaultOfflineCapacity,
		},
		RUM: RUMSettings{
			StartDelay: DefaultRUMStartDelay,
			QueueSize:  DefaultRUMQueueSize,
		},
		Connectivity: ConnectivitySettings{
			TTL: DefaultConnectivityTTL,
		},
		SendTimeout:    DefaultSendTimeout,
		ImageCacheSize: DefaultImageCacheSize,
	}
}

// NewSettings unpacks settings from a map, layering them over the defaults.
// Keys may be nested maps or dotted paths such as "offline_storage.capacity".
func NewSettings(m map[string]any) (Settings, error) {
	cfg, err := ucfg.NewFrom(m, ucfg.PathSep("."))
	if err != nil {
		return Settings{}, errors.Wrap(err, "error reading settings")
	}
	return unpackSettings(cfg)
}

// LoadSettings reads settings from a YAML file, layering them over the
// defaults.
func LoadSettings(path string) (Settings, error) {
	cfg, err := yaml.NewConfigWithFile(path, ucfg.PathSep("."))
	if err != nil {
		return Settings{}, errors.Wrapf(err, "error reading settings file %s", path)
	}
	return unpackSettings(cfg)
}

func unpackSettings(cfg *ucfg.Config) (Settings, error) {
	s := DefaultSettings()
	if err := cfg.Unpack(&s); err != nil {
		return Settings{}, errors.Wrap(err, "error unpacking settings")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, errors.Wrap(err, "invalid settings")
	}
	return s, nil
}

// Validate is called by go-ucfg after unpacking and may be called directly.
// A missing API key is not a validation error: reports are dropped at send
// time instead.
func (s *Settings) Validate() error {
	for name, endpoint := range map[string]string{
		"crash_reporting_endpoint": s.CrashReportingEndpoint,
		"rum_endpoint":             s.RUMEndpoint,
	} {
		if endpoint == "" {
			continue
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", name)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Errorf("invalid %s: unsupported scheme %q", name, u.Scheme)
		}
	}
	if s.OfflineStorage.Capacity <= 0 {
		return errors.Errorf("offline_storage.capacity must be positive, got %d", s.OfflineStorage.Capacity)
	}
	if s.SendTimeout <= 0 {
		return errors.Errorf("send_timeout must be positive, got %s", s.SendTimeout)
	}
	if s.RUM.StartDelay < 0 {
		return errors.Errorf("rum.start_delay must not be negative, got %s", s.RUM.StartDelay)
	}
	if s.RUM.QueueSize <= 0 {
		return errors.Errorf("rum.queue_size must be positive, got %d", s.RUM.QueueSize)
	}
	if s.ImageCacheSize < 0 {
		return errors.Errorf("image_cache_size must not be negative, got %d", s.ImageCacheSize)
	}
	return nil
}

// HasAPIKey reports whether an API key is configured.
func (s *Settings) HasAPIKey() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// IsStrippedWrapper reports whether className names a wrapper type that is
// removed before reporting.
func (s *Settings) IsStrippedWrapper(className string) bool {
	for _, t := range s.StrippedWrapperTypes {
		if t == className {
			return true
		}
	}
	return false
}
