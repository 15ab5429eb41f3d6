// exception.go defines the portable exception record used for errors that
// originate in a managed runtime rather than in Go code.

package raygun

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// NativeFrame is a stack frame that only has a native instruction pointer and
// the base address of the image containing it.
type NativeFrame struct {
	IP        int64
	ImageBase int64
}

// Exception is an error captured from a managed runtime (or built by hand)
// that carries its own type name, raw stack text, data and causes.
//
// Set Inner for single-cause exceptions and InnerExceptions for aggregate
// exceptions. When both are set, InnerExceptions wins.
type Exception struct {
	// Type is the fully qualified exception type name.
	Type string

	// Message is the exception message.
	Message string

	// StackTrace is the raw stack trace text, one frame per line.
	StackTrace string

	// Data is arbitrary diagnostic data attached to the exception.
	Data map[string]any

	// NativeFrames are frames without managed mapping.
	NativeFrames []NativeFrame

	// Inner is the single cause of this exception.
	Inner error

	// InnerExceptions are the causes of an aggregate exception.
	InnerExceptions []error

	// frames is set for exceptions built from Go call stacks.
	frames []StackFrame
}

// Error implements error.
func (e *Exception) Error() string {
	if e.Type == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

// Unwrap returns the causes of the exception so errors.Is and errors.As can
// walk them.
func (e *Exception) Unwrap() []error {
	if len(e.InnerExceptions) > 0 {
		return e.InnerExceptions
	}
	if e.Inner != nil {
		return []error{e.Inner}
	}
	return nil
}

// IsAggregate reports whether the exception carries multiple causes.
func (e *Exception) IsAggregate() bool {
	return len(e.InnerExceptions) > 0
}

// NewPanicException converts a recovered panic value into an Exception
// carrying the Go call stack of the panicking goroutine. skip is the number of
// additional frames to drop above the caller.
func NewPanicException(recovered any, skip int) *Exception {
	exc := &Exception{
		Type:    "panic",
		Message: formatRecovered(recovered),
		frames:  callerFrames(skip + 2),
	}
	if err, ok := recovered.(error); ok {
		exc.Type = fmt.Sprintf("%T", err)
		exc.Inner = errors.Unwrap(err)
	}
	return exc
}

// formatRecovered formats a recovered panic value as a string.
func formatRecovered(recovered any) string {
	if recovered == nil {
		return "<nil>"
	}
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", recovered)
}

// callerFrames captures the current goroutine's stack as structured frames,
// dropping runtime internals.
func callerFrames(skip int) []StackFrame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}
	var frames []StackFrame
	iter := runtime.CallersFrames(pcs[:n])
	for {
		f, more := iter.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			frames = append(frames, goFrame(f.Function, f.File, f.Line))
		}
		if !more {
			break
		}
	}
	return frames
}

// goFrame builds a structured frame from a Go function name such as
// "github.com/org/pkg.(*T).Method".
func goFrame(function, file string, line int) StackFrame {
	frame := StackFrame{
		Raw:      fmt.Sprintf("%s in %s:line %d", function, file, line),
		FileName: file,
	}
	if line > 0 {
		l := line
		frame.LineNumber = &l
	}
	pkgStart := strings.LastIndex(function, "/") + 1
	if dot := strings.Index(function[pkgStart:], "."); dot >= 0 {
		// The class part is the package plus any receiver type.
		rest := function[pkgStart+dot+1:]
		if last := strings.LastIndex(rest, "."); last >= 0 {
			frame.ClassName = function[:pkgStart+dot+1+last]
			frame.MethodName = rest[last+1:]
		} else {
			frame.ClassName = function[:pkgStart+dot]
			frame.MethodName = rest
		}
	} else {
		frame.MethodName = function
	}
	return frame
}
