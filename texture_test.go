package texreg

import (
	"image"
	"image/color"
	"testing"
)

func TestImageContentScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			src.SetRGBA(x, y, color.RGBA{G: 128, A: 255})
		}
	}
	content := ImageContent(src)

	tests := []struct {
		name         string
		reqW, reqH   int
		wantW, wantH int
	}{
		{"native", 4, 4, 4, 4},
		{"downscale", 2, 2, 2, 2},
		{"upscale", 8, 6, 8, 6},
		{"zero request", 0, 0, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, ok := content(tt.reqW, tt.reqH)
			if !ok {
				t.Fatal("content() = false")
			}
			if buf.Width != tt.wantW || buf.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", buf.Width, buf.Height, tt.wantW, tt.wantH)
			}
			if err := buf.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
			// Uniform source: every pixel survives filtering unchanged.
			if got := buf.Pix[1]; got != 128 {
				t.Errorf("green channel = %d, want 128", got)
			}
		})
	}
}

func TestImageContentEmpty(t *testing.T) {
	if _, ok := ImageContent(nil)(1, 1); ok {
		t.Error("ImageContent(nil) produced a frame")
	}
	if _, ok := ImageContent(image.NewRGBA(image.Rectangle{}))(1, 1); ok {
		t.Error("ImageContent(empty) produced a frame")
	}
}

func TestNewPixelBufferSubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{R: 9, A: 255})
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)

	buf := NewPixelBuffer(sub)
	if buf.Width != 2 || buf.Height != 2 || buf.Stride != img.Stride {
		t.Fatalf("buffer = %dx%d stride %d", buf.Width, buf.Height, buf.Stride)
	}
	if err := buf.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if buf.Pix[0] != 9 {
		t.Errorf("first pixel red = %d, want 9", buf.Pix[0])
	}
}

func TestPixelBufferReleaseOnce(t *testing.T) {
	n := 0
	b := &PixelBuffer{Release: func() { n++ }}
	b.release()
	b.release()
	if n != 1 {
		t.Errorf("Release called %d times, want 1", n)
	}
}

func TestRegistrationErrorMessage(t *testing.T) {
	err := &RegistrationError{Label: "cam", Kind: KindGPUSurface, Err: ErrUnsupportedType}
	want := `texreg: unsupported texture type (kind=GPUSurface, label="cam")`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
