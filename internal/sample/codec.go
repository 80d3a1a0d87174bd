package sample

import (
	"fmt"
	"math"
)

// frame header: info, width u32, height u32, format u8, 3 bytes padding
const frameHeaderSize = infoSize + 12

// FrameCodec stores frames as a fixed little-endian header followed by the
// raw pixels.
type FrameCodec struct{}

func (FrameCodec) Size(f Frame) int {
	return frameHeaderSize + len(f.Pix)
}

func (FrameCodec) Encode(dst []byte, f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	putInfo(dst, f.Info)
	le.PutUint32(dst[infoSize:], uint32(f.Width))
	le.PutUint32(dst[infoSize+4:], uint32(f.Height))
	dst[infoSize+8] = byte(f.Format)
	copy(dst[frameHeaderSize:], f.Pix)
	return nil
}

func (FrameCodec) Decode(src []byte) (Frame, error) {
	if len(src) < frameHeaderSize {
		return Frame{}, fmt.Errorf("%w: frame of %d bytes", ErrMalformed, len(src))
	}
	f := Frame{
		Info:   getInfo(src),
		Width:  int(le.Uint32(src[infoSize:])),
		Height: int(le.Uint32(src[infoSize+4:])),
		Format: PixelFormat(src[infoSize+8]),
	}
	f.Pix = append([]byte(nil), src[frameHeaderSize:]...)
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

const (
	poseFlagFound = 1 << iota
	poseFlagHeading
	poseFlagVelocity
)

// pose layout: info, flags u8, unit u8, 6 bytes padding, 11 float64
const poseSize = infoSize + 8 + 11*8

// PoseCodec stores poses in a fixed little-endian layout.
type PoseCodec struct{}

func (PoseCodec) Size(Pose) int { return poseSize }

func (PoseCodec) Encode(dst []byte, p Pose) error {
	putInfo(dst, p.Info)
	var flags byte
	if p.Found {
		flags |= poseFlagFound
	}
	if p.HeadingValid {
		flags |= poseFlagHeading
	}
	if p.VelocityValid {
		flags |= poseFlagVelocity
	}
	dst[infoSize] = flags
	dst[infoSize+1] = byte(p.Unit)

	off := infoSize + 8
	for _, v := range poseFloats(&p) {
		le.PutUint64(dst[off:], math.Float64bits(*v))
		off += 8
	}
	return nil
}

func (PoseCodec) Decode(src []byte) (Pose, error) {
	if len(src) != poseSize {
		return Pose{}, fmt.Errorf("%w: pose of %d bytes, want %d", ErrMalformed, len(src), poseSize)
	}
	p := Pose{Info: getInfo(src)}
	flags := src[infoSize]
	p.Found = flags&poseFlagFound != 0
	p.HeadingValid = flags&poseFlagHeading != 0
	p.VelocityValid = flags&poseFlagVelocity != 0
	p.Unit = DistanceUnit(src[infoSize+1])

	off := infoSize + 8
	for _, v := range poseFloats(&p) {
		*v = math.Float64frombits(le.Uint64(src[off:]))
		off += 8
	}
	return p, nil
}

func poseFloats(p *Pose) []*float64 {
	return []*float64{
		&p.Position[0], &p.Position[1], &p.Position[2],
		&p.Orientation[0], &p.Orientation[1], &p.Orientation[2], &p.Orientation[3],
		&p.Heading[0], &p.Heading[1],
		&p.Velocity[0], &p.Velocity[1],
	}
}
