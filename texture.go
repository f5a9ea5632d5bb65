package texreg

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// TextureID identifies a registered texture. Ids are opaque to callers and
// are never reused by the Registrar that issued them.
type TextureID int64

// InvalidTextureID is returned alongside errors from Register.
const InvalidTextureID TextureID = -1

// TextureKind selects how a texture's content is supplied.
type TextureKind uint8

const (
	// KindPixelBuffer textures supply CPU pixel buffers through a ContentFunc.
	KindPixelBuffer TextureKind = iota + 1

	// KindGPUSurface textures supply an already GPU-resident surface.
	// Not supported by this registry; Register rejects it.
	KindGPUSurface
)

// String returns the kind name.
func (k TextureKind) String() string {
	switch k {
	case KindPixelBuffer:
		return "PixelBuffer"
	case KindGPUSurface:
		return "GPUSurface"
	default:
		return fmt.Sprintf("TextureKind(%d)", uint8(k))
	}
}

// ContentFunc produces the current frame of a texture. width and height are
// the size the consumer would like to sample at; the returned buffer may have
// a different size. It returns false when no frame is available.
//
// ContentFunc runs on the consumer context and must return promptly.
// Any state it needs should be captured by the closure. It runs while the
// registry holds its texture, so it must not call Unregister, Populate,
// Surface or Info for its own id; doing so deadlocks. Other ids, Contains
// and MarkFrameAvailable are safe.
type ContentFunc func(width, height int) (*PixelBuffer, bool)

// Descriptor describes a texture to register.
type Descriptor struct {
	// Kind must be KindPixelBuffer.
	Kind TextureKind

	// Content supplies pixel data. Required.
	Content ContentFunc

	// Label is an optional debug name used in logs and errors.
	Label string
}

// Pixel buffer validation errors.
var (
	// ErrInvalidBufferSize is returned for non-positive buffer dimensions.
	ErrInvalidBufferSize = errors.New("texreg: invalid pixel buffer size")

	// ErrShortBuffer is returned when Pix is too small for the declared layout.
	ErrShortBuffer = errors.New("texreg: pixel buffer too short")
)

// PixelBuffer is a frame of RGBA8 pixel data, 4 bytes per pixel, row-major.
type PixelBuffer struct {
	Pix    []byte
	Width  int
	Height int

	// Stride is the number of bytes between row starts. Zero means Width*4.
	Stride int

	// Release, if set, is called once the registry no longer needs Pix.
	Release func()
}

// RowBytes returns the effective stride of the buffer.
func (b *PixelBuffer) RowBytes() int {
	if b.Stride == 0 {
		return b.Width * 4
	}
	return b.Stride
}

// Validate checks that the buffer's dimensions and length are consistent.
func (b *PixelBuffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidBufferSize, b.Width, b.Height)
	}
	stride := b.RowBytes()
	if stride < b.Width*4 {
		return fmt.Errorf("%w: stride %d < %d", ErrInvalidBufferSize, stride, b.Width*4)
	}
	if need := stride*(b.Height-1) + b.Width*4; len(b.Pix) < need {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(b.Pix), need)
	}
	return nil
}

// release invokes the Release hook at most once.
func (b *PixelBuffer) release() {
	if b.Release != nil {
		fn := b.Release
		b.Release = nil
		fn()
	}
}

// Handle is an opaque reference to backend-managed texture storage.
// Its concrete type is defined by the Storage that created it.
type Handle any

// SurfaceDescriptor is filled by Populate and passed to Registrar.Surface.
// The handle is owned by the registry: it may be replaced by the next
// Populate of the same texture and is destroyed by Unregister. Consumers that
// use it after the call returns must re-borrow it through Registrar.Surface.
type SurfaceDescriptor struct {
	Handle Handle
	Format gputypes.TextureFormat
	Width  int
	Height int
}

// NewPixelBuffer wraps an *image.RGBA as a PixelBuffer without copying.
func NewPixelBuffer(img *image.RGBA) *PixelBuffer {
	b := img.Bounds()
	return &PixelBuffer{
		Pix:    img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: img.Stride,
	}
}

// ImageContent returns a ContentFunc that serves img, scaled to the requested
// size with bilinear filtering. A non-positive requested dimension falls back
// to the image's own size.
func ImageContent(img image.Image) ContentFunc {
	return func(width, height int) (*PixelBuffer, bool) {
		if img == nil {
			return nil, false
		}
		src := img.Bounds()
		if src.Empty() {
			return nil, false
		}
		if width <= 0 || height <= 0 {
			width, height = src.Dx(), src.Dy()
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		if width == src.Dx() && height == src.Dy() {
			draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		} else {
			draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
		}
		return NewPixelBuffer(dst), true
	}
}
