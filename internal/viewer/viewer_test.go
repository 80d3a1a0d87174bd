package viewer

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// recorder collects rendered values and can hold the render goroutine.
type recorder struct {
	mu    sync.Mutex
	seen  []int
	gate  chan struct{}
	fail  error
	calls int
}

func (r *recorder) Render(v int) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return r.fail
	}
	r.seen = append(r.seen, v)
	return nil
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func (r *recorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestDisplayLatestWins(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	d := NewDisplay[int]("test", rec, WithMinUpdatePeriod(0))
	d.Start()
	defer d.Stop()

	assert.True(t, d.Offer(1))
	// 1 is now being rendered and held at the gate.
	require.Eventually(t, func() bool { return !d.Idle() && !d.pendingSample() }, time.Second, time.Millisecond)

	assert.True(t, d.Offer(2))
	assert.False(t, d.Offer(3))
	assert.False(t, d.Offer(4))

	close(rec.gate)
	require.Eventually(t, d.Idle, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 4}, rec.values())
}

func (d *Display[T]) pendingSample() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

func TestDisplayThrottles(t *testing.T) {
	rec := &recorder{}
	d := NewDisplay[int]("test", rec, WithMinUpdatePeriod(time.Hour))
	d.Start()
	defer d.Stop()

	d.Offer(1)
	require.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, time.Millisecond)

	d.Offer(2)
	assert.Never(t, func() bool { return len(rec.values()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestDisplayStopUnblocks(t *testing.T) {
	rec := &recorder{}
	d := NewDisplay[int]("test", rec, WithMinUpdatePeriod(time.Hour))
	d.Start()

	d.Offer(1)
	require.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, time.Millisecond)
	d.Offer(2)

	done := make(chan error, 1)
	go func() { done <- d.Stop() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on the throttle")
	}
	assert.Equal(t, []int{1}, rec.values())
}

func TestDisplayStopWithoutStart(t *testing.T) {
	d := NewDisplay[int]("test", &recorder{})
	assert.NoError(t, d.Stop())
}

func TestDisplayBreakerOpens(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	t.Cleanup(metrics.Close)

	rec := &recorder{fail: errors.New("no terminal")}
	d := NewDisplay[int]("test", rec,
		WithMinUpdatePeriod(0),
		WithMetrics(metrics),
		WithBreaker(resilience.Settings{
			Timeout:     time.Hour,
			ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 },
		}),
	)
	d.Start()
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Offer(i)
		require.Eventually(t, d.Idle, time.Second, time.Millisecond)
	}

	assert.Equal(t, 2, rec.callCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("test", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("test", "skipped")))
}

func TestSnapshotRenderer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.png")
	r := SnapshotRenderer{Path: path}

	f := sample.NewFrame(4, 3, sample.RGB8)
	f.Pix[0] = 200
	require.NoError(t, r.Render(f))
	require.NoError(t, r.Render(f))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	img, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")

	bad := sample.Frame{Width: 2, Height: 2, Format: sample.Mono8}
	assert.ErrorIs(t, r.Render(bad), sample.ErrMalformed)
}

func TestASCIIRenderer(t *testing.T) {
	f := sample.NewFrame(8, 8, sample.Mono8)
	for x := 4; x < 8; x++ {
		for y := 0; y < 8; y++ {
			f.Pix[y*8+x] = 255
		}
	}
	f.Counter = 7

	var buf bytes.Buffer
	require.NoError(t, ASCIIRenderer{W: &buf, Cols: 8, Plain: true}.Render(f))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "    @@@@", lines[0])
	assert.Equal(t, "#7 8x8 mono8", lines[4])
}

func TestPoseRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewPoseRenderer(&buf)

	p := sample.NewPose(sample.Info{Counter: 3}, sample.Meters)
	p.Found = true
	p.Position = [3]float64{1, 2, 3}
	require.NoError(t, r.Render(p))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["found"])
	assert.Equal(t, "meters", got["unit"])
	assert.Equal(t, 3.0, got["counter"])
}

func TestViewerStage(t *testing.T) {
	dir := t.TempDir()
	sink := dataflow.NewSink[sample.Pose]("pos", sample.PoseCodec{}, dataflow.WithDir(dir))
	require.NoError(t, sink.Bind())
	defer sink.Close()

	var mu sync.Mutex
	var shown []uint64
	display := NewDisplay[sample.Pose]("pose", RendererFunc[sample.Pose](func(p sample.Pose) error {
		mu.Lock()
		defer mu.Unlock()
		shown = append(shown, p.Counter)
		return nil
	}), WithMinUpdatePeriod(0))

	v := New("view", dataflow.NewSource[sample.Pose]("pos", sample.PoseCodec{}, dataflow.WithDir(dir)), display)
	require.NoError(t, v.Connect())

	require.NoError(t, sink.Publish(sample.NewPose(sample.Info{Counter: 42}, sample.Pixels)))
	require.NoError(t, v.Process())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(shown) == 1 && shown[0] == 42
	}, time.Second, time.Millisecond)

	v.NotifySelf()
	assert.ErrorIs(t, v.Process(), dataflow.ErrStopped)
	assert.NoError(t, v.Close())
}

type rawCodec struct{}

func (rawCodec) Size(v []byte) int { return len(v) }

func (rawCodec) Encode(dst, v []byte) error {
	copy(dst, v)
	return nil
}

func (rawCodec) Decode(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

func TestViewerSkipsUndecodableSample(t *testing.T) {
	dir := t.TempDir()
	sink := dataflow.NewSink[[]byte]("pos", rawCodec{}, dataflow.WithDir(dir))
	require.NoError(t, sink.Bind())
	defer sink.Close()

	rec := &recorder{}
	display := NewDisplay[sample.Pose]("pose", RendererFunc[sample.Pose](func(p sample.Pose) error {
		return rec.Render(int(p.Counter))
	}), WithMinUpdatePeriod(0))
	v := New("view", dataflow.NewSource[sample.Pose]("pos", sample.PoseCodec{}, dataflow.WithDir(dir)), display)
	require.NoError(t, v.Connect())
	defer v.Close()

	require.NoError(t, sink.Publish([]byte("short")))
	require.NoError(t, v.Process())

	var c sample.PoseCodec
	p := sample.NewPose(sample.Info{Counter: 5}, sample.Pixels)
	buf := make([]byte, c.Size(p))
	require.NoError(t, c.Encode(buf, p))
	require.NoError(t, sink.Publish(buf))
	require.NoError(t, v.Process())

	require.Eventually(t, func() bool {
		return len(rec.values()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []int{5}, rec.values())
}
