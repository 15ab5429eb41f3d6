// report.go defines the crash report wire model.

package raygun

import "time"

// Client identity sent with every crash report.
const (
	ClientName    = "raygun4go"
	ClientVersion = "1.2.0"
	ClientURL     = "https://github.com/strongdm/raygun4go"
)

// CrashReport is the payload describing one captured error.
type CrashReport struct {
	OccurredOn time.Time           `json:"occurredOn"`
	Details    *CrashReportDetails `json:"details"`
}

// CrashReportDetails holds everything known about the error and its host.
type CrashReportDetails struct {
	MachineName    string           `json:"machineName,omitempty"`
	GroupingKey    string           `json:"groupingKey,omitempty"`
	Version        string           `json:"version,omitempty"`
	Error          *ErrorInfo       `json:"error,omitempty"`
	Environment    *EnvironmentInfo `json:"environment,omitempty"`
	Client         *ClientInfo      `json:"client,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	UserCustomData map[string]any   `json:"userCustomData,omitempty"`
	User           *UserInfo        `json:"user,omitempty"`
	Breadcrumbs    []Breadcrumb     `json:"breadcrumbs,omitempty"`
}

// ErrorInfo is one node of the error tree. At most one of InnerError and
// InnerErrors is set. Images is only populated on the root node.
type ErrorInfo struct {
	InnerError       *ErrorInfo     `json:"innerError,omitempty"`
	InnerErrors      []*ErrorInfo   `json:"innerErrors,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
	ClassName        string         `json:"className,omitempty"`
	Message          string         `json:"message,omitempty"`
	StackTrace       []StackFrame   `json:"stackTrace,omitempty"`
	NativeStackTrace []StackFrame   `json:"nativeStackTrace,omitempty"`
	Images           []*ImageInfo   `json:"images,omitempty"`
}

// StackFrame is a single stack frame. Raw always holds the frame text when it
// came from a textual trace; the structured fields are set only when parsing
// succeeded. IP and ImageBase are only set for native frames.
type StackFrame struct {
	LineNumber *int   `json:"lineNumber,omitempty"`
	ClassName  string `json:"className,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	MethodName string `json:"methodName,omitempty"`
	Raw        string `json:"raw,omitempty"`
	IP         *int64 `json:"ip,omitempty"`
	ImageBase  *int64 `json:"imageBase,omitempty"`
}

// ImageInfo describes a native binary image referenced by native frames.
type ImageInfo struct {
	BaseAddress int64            `json:"baseAddress"`
	DebugInfo   []ImageDebugInfo `json:"debugInfo,omitempty"`
}

// ImageDebugInfo identifies the program database matching an image.
type ImageDebugInfo struct {
	PdbFileName string `json:"pdbFileName"`
	GUID        string `json:"guid"`
}

// EnvironmentInfo is a best-effort snapshot of the host environment.
type EnvironmentInfo struct {
	OSVersion          string  `json:"osVersion"`
	WindowBoundsWidth  float64 `json:"windowBoundsWidth"`
	WindowBoundsHeight float64 `json:"windowBoundsHeight"`
	CurrentOrientation string  `json:"currentOrientation"`
	Architecture       string  `json:"architecture"`
	DeviceManufacturer string  `json:"deviceManufacturer"`
	DeviceName         string  `json:"deviceName"`
	UtcOffset          float64 `json:"utcOffset"`
	Locale             string  `json:"locale"`
}

// ClientInfo identifies this SDK.
type ClientInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	ClientURL string `json:"clientUrl"`
}

// DefaultClientInfo returns the identity of this SDK.
func DefaultClientInfo() *ClientInfo {
	return &ClientInfo{
		Name:      ClientName,
		Version:   ClientVersion,
		ClientURL: ClientURL,
	}
}
