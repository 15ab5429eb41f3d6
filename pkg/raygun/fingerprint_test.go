package raygun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func frameAt(class, method string, line int) StackFrame {
	return StackFrame{ClassName: class, MethodName: method, LineNumber: &line}
}

func TestFingerprint_Stable(t *testing.T) {
	a := &ErrorInfo{
		ClassName: "App.Failure",
		Message:   "order 17 failed",
		StackTrace: []StackFrame{
			frameAt("App.Orders", "Place(Int32 id)", 10),
			frameAt("App.Api", "Post()", 20),
		},
	}
	b := &ErrorInfo{
		ClassName: "App.Failure",
		Message:   "order 99 failed",
		StackTrace: []StackFrame{
			frameAt("App.Orders", "Place(Int32 orderId)", 11),
			frameAt("App.Api", "Post()", 25),
		},
	}

	fa := Fingerprint(a)
	assert.Len(t, fa, 32)
	assert.Equal(t, fa, Fingerprint(b), "messages, lines and arguments are ignored")
}

func TestFingerprint_Differs(t *testing.T) {
	base := &ErrorInfo{ClassName: "App.Failure", StackTrace: []StackFrame{frameAt("App.Orders", "Place()", 1)}}
	otherClass := &ErrorInfo{ClassName: "App.Timeout", StackTrace: base.StackTrace}
	otherFrame := &ErrorInfo{ClassName: "App.Failure", StackTrace: []StackFrame{frameAt("App.Orders", "Cancel()", 1)}}
	withCause := &ErrorInfo{ClassName: "App.Failure", StackTrace: base.StackTrace, InnerError: &ErrorInfo{ClassName: "IO"}}

	fp := Fingerprint(base)
	assert.NotEqual(t, fp, Fingerprint(otherClass))
	assert.NotEqual(t, fp, Fingerprint(otherFrame))
	assert.NotEqual(t, fp, Fingerprint(withCause))
}

func TestFingerprint_OnlyLeadingFrames(t *testing.T) {
	frames := []StackFrame{
		frameAt("A", "a()", 1), {Raw: "unparsed"}, frameAt("B", "b()", 1), frameAt("C", "c()", 1),
	}
	x := &ErrorInfo{ClassName: "E", StackTrace: append(frames, frameAt("D", "d()", 1))}
	y := &ErrorInfo{ClassName: "E", StackTrace: append(append([]StackFrame{}, frames...), frameAt("Z", "z()", 1))}
	assert.Equal(t, Fingerprint(x), Fingerprint(y))
	assert.Equal(t, []string{"A.a", "B.b", "C.c"}, normalizeFrames(x.StackTrace))
}

func TestFingerprint_Nil(t *testing.T) {
	assert.Equal(t, "", Fingerprint(nil))
}
