package sample

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// PixelFormat is the memory layout of a frame's pixels.
type PixelFormat uint8

const (
	FormatUnknown PixelFormat = iota
	Mono8
	RGB8
	BGR8
)

// Channels returns the bytes per pixel.
func (f PixelFormat) Channels() int {
	switch f {
	case Mono8:
		return 1
	case RGB8, BGR8:
		return 3
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case Mono8:
		return "mono8"
	case RGB8:
		return "rgb8"
	case BGR8:
		return "bgr8"
	default:
		return "unknown"
	}
}

// ParsePixelFormat accepts "mono"/"mono8"/"gray", "rgb"/"rgb8" and "bgr"/"bgr8".
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(s) {
	case "mono", "mono8", "gray", "grey":
		return Mono8, nil
	case "rgb", "rgb8", "color", "colour":
		return RGB8, nil
	case "bgr", "bgr8":
		return BGR8, nil
	}
	return FormatUnknown, fmt.Errorf("unknown pixel format %q", s)
}

// Frame is one video frame with tightly packed rows.
type Frame struct {
	Info
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// NewFrame allocates a black frame.
func NewFrame(width, height int, format PixelFormat) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Format: format,
		Pix:    make([]byte, width*height*format.Channels()),
	}
}

// Stride returns the bytes per row.
func (f Frame) Stride() int {
	return f.Width * f.Format.Channels()
}

// Empty reports whether the frame has no pixels.
func (f Frame) Empty() bool {
	return f.Width == 0 || f.Height == 0
}

// Validate checks that the pixel buffer matches the geometry.
func (f Frame) Validate() error {
	if f.Width < 0 || f.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrMalformed, f.Width, f.Height)
	}
	if f.Format.Channels() == 0 {
		return fmt.Errorf("%w: pixel format %d", ErrMalformed, f.Format)
	}
	if want := f.Stride() * f.Height; len(f.Pix) != want {
		return fmt.Errorf("%w: %dx%d %s needs %d bytes, have %d", ErrMalformed, f.Width, f.Height, f.Format, want, len(f.Pix))
	}
	return nil
}

// Clone returns a deep copy.
func (f Frame) Clone() Frame {
	c := f
	c.Pix = append([]byte(nil), f.Pix...)
	return c
}

// In reports whether (x, y) lies inside the frame.
func (f Frame) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// At returns the color at (x, y). Points outside the frame are black.
func (f Frame) At(x, y int) color.RGBA {
	if !f.In(x, y) {
		return color.RGBA{A: 0xff}
	}
	i := y*f.Stride() + x*f.Format.Channels()
	switch f.Format {
	case Mono8:
		v := f.Pix[i]
		return color.RGBA{R: v, G: v, B: v, A: 0xff}
	case BGR8:
		return color.RGBA{R: f.Pix[i+2], G: f.Pix[i+1], B: f.Pix[i], A: 0xff}
	default:
		return color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 0xff}
	}
}

// Set writes c at (x, y). Points outside the frame are ignored; mono
// frames store the luma of c.
func (f Frame) Set(x, y int, c color.Color) {
	if !f.In(x, y) {
		return
	}
	i := y*f.Stride() + x*f.Format.Channels()
	switch f.Format {
	case Mono8:
		f.Pix[i] = color.GrayModel.Convert(c).(color.Gray).Y
	case BGR8:
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = rgba.B, rgba.G, rgba.R
	default:
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = rgba.R, rgba.G, rgba.B
	}
}

// Gray returns the luma at (x, y).
func (f Frame) Gray(x, y int) uint8 {
	if f.Format == Mono8 {
		if !f.In(x, y) {
			return 0
		}
		return f.Pix[y*f.Width+x]
	}
	return color.GrayModel.Convert(f.At(x, y)).(color.Gray).Y
}

// ToImage converts the frame to a standard library image. Mono frames
// share their pixel buffer with the result.
func (f Frame) ToImage() image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	if f.Format == Mono8 {
		return &image.Gray{Pix: f.Pix, Stride: f.Width, Rect: rect}
	}
	img := image.NewRGBA(rect)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, f.At(x, y))
		}
	}
	return img
}

// FromImage converts img into a frame of the given format.
func FromImage(img image.Image, format PixelFormat) Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy(), format)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return f
}
