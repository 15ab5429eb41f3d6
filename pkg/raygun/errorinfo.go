// errorinfo.go builds the ErrorInfo tree for an error graph.

package raygun

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxErrorDepth bounds how deep the builder descends into causes.
const DefaultMaxErrorDepth = 32

// DataProvider is implemented by errors that carry diagnostic key/value data.
type DataProvider interface {
	Data() map[string]any
}

// stackTracer is implemented by errors created with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ErrorInfoOption configures an ErrorInfoBuilder.
type ErrorInfoOption func(*errorInfoConfig)

type errorInfoConfig struct {
	imageReader    ImageReader
	imageCacheSize int
	maxDepth       int
	logger         *zap.Logger
}

// WithImageReader enables native image debug info decoding.
func WithImageReader(r ImageReader) ErrorInfoOption {
	return func(c *errorInfoConfig) {
		c.imageReader = r
	}
}

// WithImageCacheSize sets how many decoded images are cached (default: 128).
func WithImageCacheSize(n int) ErrorInfoOption {
	return func(c *errorInfoConfig) {
		if n > 0 {
			c.imageCacheSize = n
		}
	}
}

// WithMaxErrorDepth bounds the depth of the error tree (default: 32).
func WithMaxErrorDepth(n int) ErrorInfoOption {
	return func(c *errorInfoConfig) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithErrorInfoLogger sets the logger used for degraded builds.
func WithErrorInfoLogger(l *zap.Logger) ErrorInfoOption {
	return func(c *errorInfoConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ErrorInfoBuilder converts errors into ErrorInfo trees. It is safe for
// concurrent use.
type ErrorInfoBuilder struct {
	images   *imageResolver
	maxDepth int
	logger   *zap.Logger
}

// NewErrorInfoBuilder creates a builder with the given options.
func NewErrorInfoBuilder(opts ...ErrorInfoOption) *ErrorInfoBuilder {
	cfg := &errorInfoConfig{
		imageCacheSize: DefaultImageCacheSize,
		maxDepth:       DefaultMaxErrorDepth,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger.Named("errorinfo")
	images, err := newImageResolver(cfg.imageReader, cfg.imageCacheSize, logger)
	if err != nil {
		logger.Warn("native image decoding disabled", zap.Error(err))
	}
	return &ErrorInfoBuilder{
		images:   images,
		maxDepth: cfg.maxDepth,
		logger:   logger,
	}
}

// buildState is shared by all nodes of one tree.
type buildState struct {
	images  map[int64]*ImageInfo
	order   []int64
	visited map[uintptr]struct{}
}

// Build converts err into an ErrorInfo tree. It never panics; parts that
// cannot be built are left empty. Returns nil for a nil error.
func (b *ErrorInfoBuilder) Build(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	st := &buildState{
		images:  make(map[int64]*ImageInfo),
		visited: make(map[uintptr]struct{}),
	}
	info := b.build(err, st, 0)
	for _, base := range st.order {
		info.Images = append(info.Images, st.images[base])
	}
	return info
}

func (b *ErrorInfoBuilder) build(err error, st *buildState, depth int) *ErrorInfo {
	// visited holds the ancestors of the node being built, so a cause that
	// points back up the chain is skipped while repeated siblings are not.
	var marked []uintptr
	mark := func(e error) {
		if key, ok := identity(e); ok {
			st.visited[key] = struct{}{}
			marked = append(marked, key)
		}
	}
	defer func() {
		for _, key := range marked {
			delete(st.visited, key)
		}
	}()
	mark(err)

	// Wrappers that only attach a stack (pkg/errors.WithStack and friends)
	// report the same message as their cause; fold them into it. The
	// innermost trace is nearest the origin and wins.
	stack := b.stackTrace(err)
	for {
		if _, isExc := err.(*Exception); isExc {
			break
		}
		inner, ok := singleCause(err)
		if !ok || inner == nil || inner.Error() != err.Error() || seen(inner, st) {
			break
		}
		err = inner
		mark(err)
		if inner := b.stackTrace(err); len(inner) > 0 {
			stack = inner
		}
	}

	info := &ErrorInfo{
		ClassName:  className(err),
		Message:    message(err),
		StackTrace: stack,
		Data:       data(err),
	}
	info.NativeStackTrace = b.nativeStackTrace(err, st)

	if depth+1 >= b.maxDepth {
		b.logger.Debug("error tree truncated", zap.Int("depth", depth))
		return info
	}

	if causes, ok := multipleCauses(err); ok {
		for _, cause := range causes {
			if cause == nil || seen(cause, st) {
				continue
			}
			info.InnerErrors = append(info.InnerErrors, b.build(cause, st, depth+1))
		}
		return info
	}
	if cause, ok := singleCause(err); ok && cause != nil && !seen(cause, st) {
		info.InnerError = b.build(cause, st, depth+1)
	}
	return info
}

// stackTrace returns the managed frames for err, or nil.
func (b *ErrorInfoBuilder) stackTrace(err error) (frames []StackFrame) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Debug("failed to build stack trace", zap.Any("panic", p))
			frames = nil
		}
	}()

	switch e := err.(type) {
	case *Exception:
		if e.frames != nil {
			return append([]StackFrame(nil), e.frames...)
		}
		return ParseStackTrace(e.StackTrace)
	case stackTracer:
		for _, f := range e.StackTrace() {
			pc := uintptr(f) - 1
			fn := runtime.FuncForPC(pc)
			if fn == nil {
				continue
			}
			file, line := fn.FileLine(pc)
			frames = append(frames, goFrame(fn.Name(), file, line))
		}
		return frames
	}
	return nil
}

// nativeStackTrace returns native frames for err and registers their images.
func (b *ErrorInfoBuilder) nativeStackTrace(err error, st *buildState) (frames []StackFrame) {
	exc, ok := err.(*Exception)
	if !ok || len(exc.NativeFrames) == 0 {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			b.logger.Debug("failed to build native stack trace", zap.Any("panic", p))
		}
	}()

	for _, nf := range exc.NativeFrames {
		ip, base := nf.IP, nf.ImageBase
		if _, ok := st.images[base]; !ok {
			st.images[base] = b.resolveImage(base)
			st.order = append(st.order, base)
		}
		frames = append(frames, StackFrame{IP: &ip, ImageBase: &base})
	}
	return frames
}

func (b *ErrorInfoBuilder) resolveImage(base int64) *ImageInfo {
	if b.images == nil {
		return &ImageInfo{BaseAddress: base}
	}
	return b.images.resolve(base)
}

func className(err error) string {
	if e, ok := err.(*Exception); ok && e.Type != "" {
		return e.Type
	}
	return fmt.Sprintf("%T", err)
}

func message(err error) string {
	if e, ok := err.(*Exception); ok {
		return e.Message
	}
	return err.Error()
}

func data(err error) map[string]any {
	switch e := err.(type) {
	case *Exception:
		return e.Data
	case DataProvider:
		return e.Data()
	}
	return nil
}

// multipleCauses reports the causes of aggregate errors such as errors.Join
// results, go-multierror errors and aggregate Exceptions.
func multipleCauses(err error) ([]error, bool) {
	if e, ok := err.(*Exception); ok {
		if e.IsAggregate() {
			return e.InnerExceptions, true
		}
		return nil, false
	}
	switch e := err.(type) {
	case interface{ WrappedErrors() []error }:
		return e.WrappedErrors(), true
	case interface{ Unwrap() []error }:
		return e.Unwrap(), true
	}
	return nil, false
}

// singleCause reports the single wrapped cause of err.
func singleCause(err error) (error, bool) {
	switch e := err.(type) {
	case *Exception:
		if e.IsAggregate() || e.Inner == nil {
			return nil, false
		}
		return e.Inner, true
	case interface{ WrappedErrors() []error }, interface{ Unwrap() []error }:
		return nil, false
	case interface{ Unwrap() error }:
		return e.Unwrap(), true
	case interface{ Cause() error }:
		return e.Cause(), true
	}
	return nil, false
}

// identity returns a key for pointer-shaped errors so cycles can be detected.
func identity(err error) (uintptr, bool) {
	v := reflect.ValueOf(err)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0, false
	}
	return v.Pointer(), true
}

func seen(err error, st *buildState) bool {
	key, ok := identity(err)
	if !ok {
		return false
	}
	_, dup := st.visited[key]
	return dup
}
