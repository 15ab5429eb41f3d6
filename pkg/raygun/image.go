// image.go resolves native image base addresses to image debug info.

package raygun

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ImageReader gives access to the bytes of a native image loaded in the
// current process. Implementations return a memory snapshot and the offset
// within it at which the image starts.
type ImageReader interface {
	ReadImage(baseAddress int64) (mem []byte, offset int, err error)
}

// ImageReaderFunc adapts a function to ImageReader.
type ImageReaderFunc func(baseAddress int64) ([]byte, int, error)

// ReadImage calls f.
func (f ImageReaderFunc) ReadImage(baseAddress int64) ([]byte, int, error) {
	return f(baseAddress)
}

// DefaultImageCacheSize bounds the number of decoded images kept across
// reports.
const DefaultImageCacheSize = 128

// imageResolver decodes images once and remembers the result. Decoding
// failures are not cached so a later report can retry.
type imageResolver struct {
	reader ImageReader
	cache  *lru.Cache
	logger *zap.Logger
}

func newImageResolver(reader ImageReader, size int, logger *zap.Logger) (*imageResolver, error) {
	if size <= 0 {
		size = DefaultImageCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "create image cache")
	}
	return &imageResolver{reader: reader, cache: cache, logger: logger}, nil
}

// resolve returns the ImageInfo for baseAddress. A failed decode yields an
// ImageInfo without debug info.
func (r *imageResolver) resolve(baseAddress int64) *ImageInfo {
	if cached, ok := r.cache.Get(baseAddress); ok {
		return cloneImageInfo(cached.(*ImageInfo))
	}

	info := &ImageInfo{BaseAddress: baseAddress}
	if r.reader == nil {
		return info
	}

	debugInfo, err := r.decode(baseAddress)
	if err != nil {
		r.logger.Debug("failed to read native image debug info",
			zap.Int64("image_base", baseAddress), zap.Error(err))
		return info
	}
	info.DebugInfo = debugInfo
	r.cache.Add(baseAddress, cloneImageInfo(info))
	return info
}

func (r *imageResolver) decode(baseAddress int64) (infos []ImageDebugInfo, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic reading image: %v", p)
		}
	}()
	mem, offset, err := r.reader.ReadImage(baseAddress)
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	return DecodeDebugDirectory(mem, offset)
}

func cloneImageInfo(in *ImageInfo) *ImageInfo {
	out := &ImageInfo{BaseAddress: in.BaseAddress}
	if in.DebugInfo != nil {
		out.DebugInfo = append([]ImageDebugInfo(nil), in.DebugInfo...)
	}
	return out
}
