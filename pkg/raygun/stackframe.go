// stackframe.go parses textual managed stack traces into structured frames.

package raygun

import (
	"strconv"
	"strings"
)

const (
	framePrefix    = "at "
	fileSeparator  = " in "
	lineSeparator  = ":line "
	paramsOpenChar = '('
)

// ParseStackTrace splits raw stack text into frames. Empty lines are skipped.
// Returns nil when the text holds no frames.
func ParseStackTrace(raw string) []StackFrame {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	lines := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\r' || r == '\n'
	})

	var frames []StackFrame
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		frames = append(frames, ParseStackFrame(line))
	}
	return frames
}

// ParseStackFrame parses one frame line of the form
//
//	at Namespace.Type.Method(Args) in /path/File.cs:line 42
//
// The leading marker is stripped and kept out of Raw. When any part cannot
// be parsed only Raw is set; it never panics.
func ParseStackFrame(line string) (frame StackFrame) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, framePrefix)
	frame.Raw = line

	defer func() {
		if recover() != nil {
			frame = StackFrame{Raw: line}
		}
	}()

	method := line
	if idx := fileSeparatorIndex(line); idx > 0 {
		method = line[:idx]
		location := line[idx+len(fileSeparator):]
		if l := strings.LastIndex(location, lineSeparator); l >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(location[l+len(lineSeparator):]))
			if err == nil {
				frame.LineNumber = &n
			}
			location = location[:l]
		}
		frame.FileName = location
	}

	className, methodName, ok := splitMethod(method)
	if !ok {
		return StackFrame{Raw: line}
	}
	frame.ClassName = className
	frame.MethodName = methodName
	return frame
}

// fileSeparatorIndex returns the index of the " in " that follows the
// parameter list, or -1. File paths may contain " in " themselves.
func fileSeparatorIndex(line string) int {
	open := strings.IndexByte(line, paramsOpenChar)
	if open <= 0 {
		return -1
	}
	depth := 0
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				idx := strings.Index(line[i+1:], fileSeparator)
				if idx < 0 {
					return -1
				}
				return i + 1 + idx
			}
		}
	}
	return -1
}

// splitMethod splits "Type.Method(args)" at the last '.' before the parameter
// list that is not nested inside generic brackets.
func splitMethod(s string) (className, methodName string, ok bool) {
	open := strings.IndexByte(s, paramsOpenChar)
	if open <= 0 {
		return "", "", false
	}

	depth := 0
	for i := open - 1; i >= 0; i-- {
		switch s[i] {
		case '>', ']':
			depth++
		case '<', '[':
			depth--
			if depth < 0 {
				return "", "", false
			}
		case '.':
			if depth == 0 {
				if i == 0 || i == open-1 {
					return "", "", false
				}
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}
