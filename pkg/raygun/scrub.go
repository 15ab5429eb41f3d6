// scrub.go redacts sensitive data from crash reports before they leave the
// process.

package raygun

import (
	"regexp"
	"strings"
)

// Redacted replaces scrubbed values.
const Redacted = "[REDACTED]"

// ScrubberConfig controls scrubbing behavior.
type ScrubberConfig struct {
	// SensitiveKeys are case-insensitive substrings; data entries whose key
	// contains one are redacted.
	SensitiveKeys []string

	// MaxMessageSize truncates error and breadcrumb messages (default: 4096).
	MaxMessageSize int

	// ScrubMessages redacts secrets and PII found in message text.
	ScrubMessages bool

	// NormalizePaths removes user-specific directories from file names.
	NormalizePaths bool
}

// DefaultScrubberConfig returns production-safe defaults.
func DefaultScrubberConfig() ScrubberConfig {
	return ScrubberConfig{
		SensitiveKeys:  []string{"token", "key", "secret", "password", "passwd", "credential", "auth", "cookie"},
		MaxMessageSize: 4096,
		ScrubMessages:  true,
		NormalizePaths: true,
	}
}

var messageScrubPatterns = []*regexp.Regexp{
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token)[=:\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)(authorization|bearer)[=:\s]+['"]?[\w\-\.]+['"]?[\s]+['"]?[\w\-\.]+['"]?`),
	regexp.MustCompile(`(?i)ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`(?i)github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`(?i)xox[baprs]-[a-zA-Z0-9\-]{10,}`),
	regexp.MustCompile(`(?i)eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),

	// Credentials
	regexp.MustCompile(`(?i)password[=:\s]+['"]?[^\s'",]+['"]?`),
	regexp.MustCompile(`(?i)secret[=:\s]+['"]?[^\s'",]+['"]?`),
	regexp.MustCompile(`(?i)passwd[=:\s]+['"]?[^\s'",]+['"]?`),

	// PII
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
}

var pathNormalizationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/home/[^/]+/`),
	regexp.MustCompile(`/Users/[^/]+/`),
	regexp.MustCompile(`(?i)C:\\Users\\[^\\]+\\`),
}

// Scrubber redacts sensitive data from crash reports. It is safe for
// concurrent use.
type Scrubber struct {
	cfg  ScrubberConfig
	keys []string
}

// NewScrubber creates a scrubber with the given configuration.
func NewScrubber(cfg ScrubberConfig) *Scrubber {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultScrubberConfig().MaxMessageSize
	}
	keys := make([]string, 0, len(cfg.SensitiveKeys))
	for _, k := range cfg.SensitiveKeys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keys = append(keys, k)
		}
	}
	return &Scrubber{cfg: cfg, keys: keys}
}

// ScrubReport redacts report in place: messages, error data, custom data
// and breadcrumbs. The user identity is left alone.
func (s *Scrubber) ScrubReport(report *CrashReport) {
	if report == nil || report.Details == nil {
		return
	}
	d := report.Details
	s.scrubError(d.Error, 0)
	d.UserCustomData = s.ScrubData(d.UserCustomData)
	for i := range d.Breadcrumbs {
		d.Breadcrumbs[i].Message = s.ScrubMessage(d.Breadcrumbs[i].Message)
		d.Breadcrumbs[i].CustomData = s.ScrubData(d.Breadcrumbs[i].CustomData)
	}
}

func (s *Scrubber) scrubError(info *ErrorInfo, depth int) {
	if info == nil || depth >= DefaultMaxErrorDepth {
		return
	}
	info.Message = s.ScrubMessage(info.Message)
	info.Data = s.ScrubData(info.Data)
	if s.cfg.NormalizePaths {
		s.normalizeFrames(info.StackTrace)
		s.normalizeFrames(info.NativeStackTrace)
	}
	s.scrubError(info.InnerError, depth+1)
	for _, inner := range info.InnerErrors {
		s.scrubError(inner, depth+1)
	}
}

func (s *Scrubber) normalizeFrames(frames []StackFrame) {
	for i := range frames {
		frames[i].FileName = normalizePath(frames[i].FileName)
		frames[i].Raw = normalizePath(frames[i].Raw)
	}
}

// ScrubMessage redacts secrets and PII from msg and bounds its length.
func (s *Scrubber) ScrubMessage(msg string) string {
	if len(msg) > s.cfg.MaxMessageSize {
		msg = truncateWithMarker(msg, s.cfg.MaxMessageSize)
	}
	if !s.cfg.ScrubMessages {
		return msg
	}
	for _, pattern := range messageScrubPatterns {
		msg = pattern.ReplaceAllString(msg, Redacted)
	}
	return msg
}

// ScrubData returns a copy of data with sensitive keys redacted and string
// values scrubbed, recursing into nested maps and slices.
func (s *Scrubber) ScrubData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if s.isSensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		out[k] = s.scrubValue(v, 0)
	}
	return out
}

func (s *Scrubber) scrubValue(v any, depth int) any {
	if depth >= DefaultMaxErrorDepth {
		return Redacted
	}
	switch val := v.(type) {
	case string:
		return s.ScrubMessage(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if s.isSensitiveKey(k) {
				out[k] = Redacted
			} else {
				out[k] = s.scrubValue(inner, depth+1)
			}
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if s.isSensitiveKey(k) {
				out[k] = Redacted
			} else {
				out[k] = s.ScrubMessage(inner)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = s.scrubValue(inner, depth+1)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = s.ScrubMessage(inner)
		}
		return out
	default:
		return v
	}
}

func (s *Scrubber) isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range s.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	for _, pattern := range pathNormalizationPatterns {
		p = pattern.ReplaceAllString(p, "/[PATH]/")
	}
	return p
}

func truncateWithMarker(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	marker := "...[TRUNCATED]"
	if maxLen <= len(marker) {
		return marker[:maxLen]
	}
	return s[:maxLen-len(marker)] + marker
}
