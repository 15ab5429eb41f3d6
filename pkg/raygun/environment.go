// environment.go captures a best-effort snapshot of the host environment.

package raygun

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	sysinfo "github.com/elastic/go-sysinfo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Unknown is reported for environment fields that could not be determined.
const Unknown = "Unknown"

// ErrUnavailable is returned by providers for values the host cannot supply.
var ErrUnavailable = errors.New("value unavailable")

// Bounds is the size of the host window or screen.
type Bounds struct {
	Width  float64
	Height float64
}

// EnvironmentProvider supplies device and environment metadata. Every method
// may fail independently.
type EnvironmentProvider interface {
	MachineName() (string, error)
	OperatingSystem() (string, error)
	OperatingSystemVersion() (string, error)
	Architecture() (string, error)
	DeviceManufacturer() (string, error)
	DeviceName() (string, error)
	Locale() (string, error)
	UtcOffset() (time.Duration, error)
	WindowBounds() (Bounds, error)
	Orientation() (string, error)
	PackageVersion() (string, error)
}

// BuildEnvironmentInfo snapshots the environment. Fields that cannot be read
// are logged and set to Unknown (or zero for numeric fields).
func BuildEnvironmentInfo(p EnvironmentProvider, logger *zap.Logger) *EnvironmentInfo {
	if logger == nil {
		logger = zap.NewNop()
	}
	get := func(field string, fn func() (string, error)) string {
		return Lookup(field, fn, logger)
	}

	info := &EnvironmentInfo{
		OSVersion:          get("os_version", p.OperatingSystemVersion),
		CurrentOrientation: get("orientation", p.Orientation),
		Architecture:       get("architecture", p.Architecture),
		DeviceManufacturer: get("device_manufacturer", p.DeviceManufacturer),
		DeviceName:         get("device_name", p.DeviceName),
		Locale:             get("locale", p.Locale),
	}

	if bounds, err := safeBounds(p.WindowBounds); err == nil {
		info.WindowBoundsWidth = bounds.Width
		info.WindowBoundsHeight = bounds.Height
	} else {
		logger.Debug("environment lookup failed", zap.String("field", "window_bounds"), zap.Error(err))
	}
	if offset, err := safeOffset(p.UtcOffset); err == nil {
		info.UtcOffset = offset.Hours()
	} else {
		logger.Debug("environment lookup failed", zap.String("field", "utc_offset"), zap.Error(err))
	}
	return info
}

// Lookup calls fn and returns its value, or Unknown when fn fails, panics or
// returns an empty string. Failures are logged at debug with the field name.
func Lookup(field string, fn func() (string, error), logger *zap.Logger) string {
	v, err := safeString(fn)
	if err != nil || v == "" {
		if err != nil && logger != nil {
			logger.Debug("environment lookup failed", zap.String("field", field), zap.Error(err))
		}
		return Unknown
	}
	return v
}

func safeString(fn func() (string, error)) (v string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func safeBounds(fn func() (Bounds, error)) (v Bounds, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func safeOffset(fn func() (time.Duration, error)) (v time.Duration, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

// SystemEnvironment reads the environment of the current host through
// go-sysinfo. Screen bounds and orientation are unavailable for headless
// processes unless set on the struct.
type SystemEnvironment struct {
	// Bounds, when non-zero, is reported as the window bounds.
	Bounds Bounds

	// CurrentOrientation, when set, is reported as the orientation.
	CurrentOrientation string

	// Manufacturer, when set, is reported as the device manufacturer.
	Manufacturer string

	hostOnce sync.Once
	host     *hostInfo
	hostErr  error
	// readHost defaults to readSysinfoHost.
	readHost func() (*hostInfo, error)
}

var _ EnvironmentProvider = (*SystemEnvironment)(nil)

// hostInfo reads the host once and reuses the result, failure included.
func (e *SystemEnvironment) hostInfo() (*hostInfo, error) {
	e.hostOnce.Do(func() {
		read := e.readHost
		if read == nil {
			read = readSysinfoHost
		}
		e.host, e.hostErr = read()
	})
	return e.host, e.hostErr
}

func readSysinfoHost() (*hostInfo, error) {
	host, err := sysinfo.Host()
	if err != nil {
		return nil, errors.Wrap(err, "read host info")
	}
	info := host.Info()
	h := &hostInfo{
		hostname:     info.Hostname,
		architecture: info.Architecture,
	}
	if info.OS != nil {
		h.osName = info.OS.Name
		h.osVersion = info.OS.Version
	}
	return h, nil
}

type hostInfo struct {
	hostname     string
	architecture string
	osName       string
	osVersion    string
}

// MachineName implements EnvironmentProvider.
func (e *SystemEnvironment) MachineName() (string, error) {
	return os.Hostname()
}

// OperatingSystem implements EnvironmentProvider.
func (e *SystemEnvironment) OperatingSystem() (string, error) {
	h, err := e.hostInfo()
	if err != nil || h.osName == "" {
		return runtime.GOOS, nil
	}
	return h.osName, nil
}

// OperatingSystemVersion implements EnvironmentProvider.
func (e *SystemEnvironment) OperatingSystemVersion() (string, error) {
	h, err := e.hostInfo()
	if err != nil {
		return "", err
	}
	return h.osVersion, nil
}

// Architecture implements EnvironmentProvider.
func (e *SystemEnvironment) Architecture() (string, error) {
	h, err := e.hostInfo()
	if err != nil || h.architecture == "" {
		return runtime.GOARCH, nil
	}
	return h.architecture, nil
}

// DeviceManufacturer implements EnvironmentProvider.
func (e *SystemEnvironment) DeviceManufacturer() (string, error) {
	if e.Manufacturer == "" {
		return "", ErrUnavailable
	}
	return e.Manufacturer, nil
}

// DeviceName implements EnvironmentProvider.
func (e *SystemEnvironment) DeviceName() (string, error) {
	h, err := e.hostInfo()
	if err != nil {
		return os.Hostname()
	}
	return h.hostname, nil
}

// Locale implements EnvironmentProvider.
func (e *SystemEnvironment) Locale() (string, error) {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" && v != "C" && v != "POSIX" {
			// Drop the encoding suffix: en_US.UTF-8 -> en-US.
			if i := strings.IndexByte(v, '.'); i >= 0 {
				v = v[:i]
			}
			return strings.ReplaceAll(v, "_", "-"), nil
		}
	}
	return "", ErrUnavailable
}

// UtcOffset implements EnvironmentProvider.
func (e *SystemEnvironment) UtcOffset() (time.Duration, error) {
	_, offset := time.Now().Zone()
	return time.Duration(offset) * time.Second, nil
}

// WindowBounds implements EnvironmentProvider.
func (e *SystemEnvironment) WindowBounds() (Bounds, error) {
	return e.Bounds, nil
}

// Orientation implements EnvironmentProvider.
func (e *SystemEnvironment) Orientation() (string, error) {
	if e.CurrentOrientation == "" {
		return "", ErrUnavailable
	}
	return e.CurrentOrientation, nil
}

// PackageVersion implements EnvironmentProvider using the main module version
// recorded in the binary.
func (e *SystemEnvironment) PackageVersion() (string, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "", ErrUnavailable
	}
	return info.Main.Version, nil
}
