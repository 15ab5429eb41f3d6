// crashreport.go assembles crash reports from independently settable parts.

package raygun

import (
	"time"
)

// ReportOption sets one part of a crash report.
type ReportOption func(*reportConfig)

type reportConfig struct {
	occurredOn time.Time
	details    CrashReportDetails
}

// WithMachineName sets the machine name.
func WithMachineName(name string) ReportOption {
	return func(c *reportConfig) {
		c.details.MachineName = name
	}
}

// WithErrorInfo sets a prebuilt error tree.
func WithErrorInfo(info *ErrorInfo) ReportOption {
	return func(c *reportConfig) {
		c.details.Error = info
	}
}

// WithError builds the error tree for err. A nil builder uses a default
// builder without native image decoding.
func WithError(err error, builder *ErrorInfoBuilder) ReportOption {
	return func(c *reportConfig) {
		if builder == nil {
			builder = NewErrorInfoBuilder()
		}
		c.details.Error = builder.Build(err)
	}
}

// WithClientInfo sets the reporting client identity.
func WithClientInfo(info *ClientInfo) ReportOption {
	return func(c *reportConfig) {
		c.details.Client = info
	}
}

// WithEnvironment sets the environment snapshot.
func WithEnvironment(env *EnvironmentInfo) ReportOption {
	return func(c *reportConfig) {
		c.details.Environment = env
	}
}

// WithVersion sets the application version.
func WithVersion(version string) ReportOption {
	return func(c *reportConfig) {
		c.details.Version = version
	}
}

// WithCustomData sets user custom data. The map is copied.
func WithCustomData(data map[string]any) ReportOption {
	return func(c *reportConfig) {
		if len(data) == 0 {
			c.details.UserCustomData = nil
			return
		}
		c.details.UserCustomData = copyData(data)
	}
}

// WithTags sets the report tags. The slice is copied.
func WithTags(tags ...string) ReportOption {
	return func(c *reportConfig) {
		if len(tags) == 0 {
			c.details.Tags = nil
			return
		}
		c.details.Tags = append([]string(nil), tags...)
	}
}

// WithUser sets the affected user. The value is copied.
func WithUser(user *UserInfo) ReportOption {
	return func(c *reportConfig) {
		if user == nil {
			c.details.User = nil
			return
		}
		u := *user
		c.details.User = &u
	}
}

// WithBreadcrumbs attaches a breadcrumb trail. Pass the result of
// Breadcrumbs.Snapshot.
func WithBreadcrumbs(crumbs []Breadcrumb) ReportOption {
	return func(c *reportConfig) {
		if len(crumbs) == 0 {
			c.details.Breadcrumbs = nil
			return
		}
		c.details.Breadcrumbs = append([]Breadcrumb(nil), crumbs...)
	}
}

// WithGroupingKey sets a custom grouping key.
func WithGroupingKey(key string) ReportOption {
	return func(c *reportConfig) {
		c.details.GroupingKey = key
	}
}

// WithOccurredOn sets when the error occurred. It is stored in UTC.
func WithOccurredOn(t time.Time) ReportOption {
	return func(c *reportConfig) {
		c.occurredOn = t
	}
}

// NewCrashReport assembles a crash report. No part is required; OccurredOn
// defaults to the current time.
func NewCrashReport(opts ...ReportOption) *CrashReport {
	cfg := &reportConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.occurredOn.IsZero() {
		cfg.occurredOn = time.Now()
	}
	details := cfg.details
	return &CrashReport{
		OccurredOn: cfg.occurredOn.UTC(),
		Details:    &details,
	}
}
