package decorator

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

func lit(f sample.Frame, x, y int) bool {
	c := f.At(x, y)
	return c.R != 0 || c.G != 0 || c.B != 0
}

func TestLine(t *testing.T) {
	f := sample.NewFrame(10, 10, sample.Mono8)
	line(f, 1, 1, 8, 8, 1, color.White)
	for i := 1; i <= 8; i++ {
		assert.True(t, lit(f, i, i), "diagonal pixel %d", i)
	}
	assert.False(t, lit(f, 0, 0))
	assert.False(t, lit(f, 9, 9))

	f = sample.NewFrame(10, 10, sample.Mono8)
	line(f, 8, 5, 2, 5, 1, color.White)
	for x := 2; x <= 8; x++ {
		assert.True(t, lit(f, x, 5))
	}
	assert.False(t, lit(f, 5, 4))
}

func TestLineClipsOutsideFrame(t *testing.T) {
	f := sample.NewFrame(5, 5, sample.Mono8)
	assert.NotPanics(t, func() { line(f, -10, 2, 20, 2, 3, color.White) })
	assert.True(t, lit(f, 0, 2))
	assert.True(t, lit(f, 4, 1))
}

func TestCircle(t *testing.T) {
	f := sample.NewFrame(21, 21, sample.Mono8)
	circle(f, 10, 10, 5, 1, color.White)

	assert.True(t, lit(f, 15, 10))
	assert.True(t, lit(f, 5, 10))
	assert.True(t, lit(f, 10, 15))
	assert.True(t, lit(f, 10, 5))
	assert.False(t, lit(f, 10, 10), "outline only")
}

func TestDecorate(t *testing.T) {
	f := sample.NewFrame(128, 64, sample.RGB8)
	f.Counter = 5

	p := sample.NewPose(sample.Info{}, sample.Pixels)
	p.Found = true
	p.Position = [3]float64{32, 32}
	p.SetHeading(1, 0)
	p.Velocity = [2]float64{0, 100}
	p.VelocityValid = true

	opts := DefaultOptions()
	opts.SampleCode = true
	out := Decorate(f, p, opts)

	assert.False(t, lit(f, 42, 32), "input is not modified")
	assert.Equal(t, uint64(5), out.Counter)

	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 0, A: 255}, out.At(32+25, 32), "heading end")
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.At(32, 32+9), "velocity line")

	// Counter 5 is ...101 in the last three cells of the code bar.
	cell := opts.CodeCell
	y := 64 - 1
	assert.True(t, lit(out, 31*cell, y))
	assert.False(t, lit(out, 30*cell, y))
	assert.True(t, lit(out, 29*cell, y))
	assert.False(t, lit(out, 0, y))

	small := sample.NewFrame(32, 8, sample.Mono8)
	small.Counter = 1
	narrow := Decorate(small, sample.Pose{}, Options{SampleCode: true, CodeCell: 4, LineWidth: 1})
	assert.True(t, lit(narrow, 31, 7), "cells shrink to one pixel")
	assert.False(t, lit(narrow, 31, 6))
}

func TestDecorateSkipsMetricAndMissingPoses(t *testing.T) {
	f := sample.NewFrame(32, 32, sample.Mono8)
	opts := DefaultOptions()

	out := Decorate(f, sample.NewPose(sample.Info{}, sample.Pixels), opts)
	assert.Equal(t, f.Pix, out.Pix)

	p := sample.NewPose(sample.Info{}, sample.Meters)
	p.Found = true
	p.Position = [3]float64{16, 16, 1}
	out = Decorate(f, p, opts)
	assert.Equal(t, f.Pix, out.Pix)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	o := DefaultOptions()
	o.LineWidth = 0
	assert.Error(t, o.Validate())
}

func TestStage(t *testing.T) {
	dir := t.TempDir()
	opts := []dataflow.Option{dataflow.WithDir(dir)}

	poses := dataflow.NewSink[sample.Pose]("pos", sample.PoseCodec{}, opts...)
	require.NoError(t, poses.Bind())
	defer poses.Close()
	frames := dataflow.NewSink[sample.Frame]("raw", sample.FrameCodec{}, opts...)
	require.NoError(t, frames.Bind())
	defer frames.Close()
	out := dataflow.NewSource[sample.Frame]("dec", sample.FrameCodec{}, opts...)
	require.NoError(t, out.Connect())
	defer out.Close()

	st := NewStage(
		dataflow.NewSource[sample.Pose]("pos", sample.PoseCodec{}, opts...),
		dataflow.NewSource[sample.Frame]("raw", sample.FrameCodec{}, opts...),
		dataflow.NewSink[sample.Frame]("dec", sample.FrameCodec{}, opts...),
		DefaultOptions(),
		nil,
	)
	require.NoError(t, st.Connect())

	p := sample.NewPose(sample.Info{}, sample.Pixels)
	p.Found = true
	p.Position = [3]float64{16, 16}
	require.NoError(t, poses.Publish(p))
	require.NoError(t, frames.Publish(sample.NewFrame(32, 32, sample.Mono8)))
	require.NoError(t, st.Process())

	got, err := out.Get()
	require.NoError(t, err)
	assert.True(t, lit(got, 26, 16))

	st.NotifySelf()
	assert.ErrorIs(t, st.Process(), dataflow.ErrStopped)
	require.NoError(t, st.Close())

	_, err = out.Get()
	assert.ErrorIs(t, err, dataflow.ErrEndOfStream)
}

// rawCodec publishes arbitrary bytes, including ones no frame decodes from.
type rawCodec struct{}

func (rawCodec) Size(v []byte) int { return len(v) }

func (rawCodec) Encode(dst, v []byte) error {
	copy(dst, v)
	return nil
}

func (rawCodec) Decode(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func encodeFrame(t *testing.T, f sample.Frame) []byte {
	t.Helper()
	var c sample.FrameCodec
	buf := make([]byte, c.Size(f))
	require.NoError(t, c.Encode(buf, f))
	return buf
}

func TestStageSkipsUndecodableFrame(t *testing.T) {
	dir := t.TempDir()
	opts := []dataflow.Option{dataflow.WithDir(dir)}

	poses := dataflow.NewSink[sample.Pose]("pos", sample.PoseCodec{}, opts...)
	require.NoError(t, poses.Bind())
	defer poses.Close()
	frames := dataflow.NewSink[[]byte]("raw", rawCodec{}, opts...)
	require.NoError(t, frames.Bind())
	defer frames.Close()
	out := dataflow.NewSource[sample.Frame]("dec", sample.FrameCodec{}, opts...)
	require.NoError(t, out.Connect())
	defer out.Close()

	st := NewStage(
		dataflow.NewSource[sample.Pose]("pos", sample.PoseCodec{}, opts...),
		dataflow.NewSource[sample.Frame]("raw", sample.FrameCodec{}, opts...),
		dataflow.NewSink[sample.Frame]("dec", sample.FrameCodec{}, opts...),
		DefaultOptions(),
		nil,
	)
	require.NoError(t, st.Connect())
	defer st.Close()

	p := sample.NewPose(sample.Info{}, sample.Pixels)
	p.Found = true
	p.Position = [3]float64{16, 16}

	require.NoError(t, poses.Publish(p))
	require.NoError(t, frames.Publish([]byte("7 bytes")))
	require.NoError(t, st.Process())
	assert.Equal(t, uint64(0), out.Counter())

	require.NoError(t, poses.Publish(p))
	require.NoError(t, frames.Publish(encodeFrame(t, sample.NewFrame(32, 32, sample.Mono8))))
	require.NoError(t, st.Process())

	got, err := out.Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Counter())
	assert.True(t, lit(got, 26, 16))
}
