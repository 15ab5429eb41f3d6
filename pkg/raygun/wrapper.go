// wrapper.go removes wrapper errors before reporting.

package raygun

// ClassName returns the type name reported for err: the Type of an
// Exception, otherwise the Go type.
func ClassName(err error) string {
	if err == nil {
		return ""
	}
	return className(err)
}

// StripWrapperErrors replaces every error whose class name isWrapper
// accepts with its causes. A single-cause wrapper becomes its cause and an
// aggregate wrapper becomes each of its causes, recursively. Wrappers
// without a cause are kept. The result is never empty for a non-nil err.
// Settings.IsStrippedWrapper is the usual isWrapper.
func StripWrapperErrors(err error, isWrapper func(className string) bool) []error {
	if err == nil {
		return nil
	}
	if isWrapper == nil {
		return []error{err}
	}
	var out []error
	stripWrappers(err, isWrapper, 0, &out)
	return out
}

func stripWrappers(err error, isWrapper func(string) bool, depth int, out *[]error) {
	if !isWrapper(className(err)) || depth >= DefaultMaxErrorDepth {
		*out = append(*out, err)
		return
	}
	if causes, ok := multipleCauses(err); ok && len(causes) > 0 {
		for _, cause := range causes {
			if cause != nil {
				stripWrappers(cause, isWrapper, depth+1, out)
			}
		}
		return
	}
	if cause, ok := singleCause(err); ok && cause != nil {
		stripWrappers(cause, isWrapper, depth+1, out)
		return
	}
	*out = append(*out, err)
}
