// fingerprint.go derives stable grouping keys for crash reports.

package raygun

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintFrames is the number of leading frames that take part in a
// fingerprint.
const fingerprintFrames = 3

// Fingerprint returns a stable key for grouping similar errors. It hashes
// the class names of the error chain and the first frames of the root error,
// ignoring messages, line numbers and addresses. Returns "" for nil.
func Fingerprint(info *ErrorInfo) string {
	if info == nil {
		return ""
	}
	var parts []string
	for e, depth := info, 0; e != nil && depth < DefaultMaxErrorDepth; e, depth = e.InnerError, depth+1 {
		parts = append(parts, e.ClassName)
	}
	parts = append(parts, normalizeFrames(info.StackTrace)...)

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:16])
}

// normalizeFrames extracts up to fingerprintFrames class.method names.
func normalizeFrames(frames []StackFrame) []string {
	var out []string
	for _, f := range frames {
		name := f.MethodName
		if name == "" {
			continue
		}
		if i := strings.Index(name, "("); i >= 0 {
			name = name[:i]
		}
		if f.ClassName != "" {
			name = f.ClassName + "." + name
		}
		out = append(out, name)
		if len(out) == fingerprintFrames {
			break
		}
	}
	return out
}
