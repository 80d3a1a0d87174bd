package stage

import (
	"context"
	"errors"
	"flag"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// fakeComponent processes until limit, then reports end of stream. With
// block set it waits for NotifySelf instead.
type fakeComponent struct {
	limit      int
	block      bool
	connectErr error
	processErr error

	processed atomic.Int32
	notified  atomic.Int32
	closed    atomic.Int32
	stop      chan struct{}
}

func newFake() *fakeComponent {
	return &fakeComponent{stop: make(chan struct{})}
}

func (f *fakeComponent) Name() string { return "fake" }

func (f *fakeComponent) Connect() error { return f.connectErr }

func (f *fakeComponent) Process() error {
	if f.processErr != nil {
		return f.processErr
	}
	if f.block {
		<-f.stop
		return dataflow.ErrStopped
	}
	if int(f.processed.Add(1)) > f.limit {
		return dataflow.ErrEndOfStream
	}
	return nil
}

func (f *fakeComponent) NotifySelf() {
	if f.notified.Add(1) == 1 {
		close(f.stop)
	}
}

func (f *fakeComponent) Close() error {
	f.closed.Add(1)
	return nil
}

func runAsync(ctx context.Context, c Component, opts ...RunOption) <-chan error {
	done := make(chan error, 1)
	go func() { done <- Run(ctx, c, opts...) }()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunUntilEndOfStream(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	t.Cleanup(metrics.Close)

	c := newFake()
	c.limit = 5

	err := Run(context.Background(), c, WithMetrics(metrics))
	require.NoError(t, err)
	assert.Equal(t, int32(6), c.processed.Load())
	assert.Equal(t, int32(1), c.closed.Load())
	assert.Equal(t, int32(1), c.notified.Load())
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.ProcessDuration))
}

func TestRunCancelNotifies(t *testing.T) {
	c := newFake()
	c.block = true

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, c)

	assert.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
	cancel()

	require.NoError(t, wait(t, done))
	assert.Equal(t, int32(1), c.notified.Load())
	assert.Equal(t, int32(1), c.closed.Load())
}

func TestRunProcessError(t *testing.T) {
	boom := errors.New("boom")
	c := newFake()
	c.processErr = boom

	err := Run(context.Background(), c)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "process fake")
	assert.Equal(t, int32(1), c.closed.Load())
}

func TestRunConnectError(t *testing.T) {
	c := newFake()
	c.connectErr = dataflow.ErrCapacityExceeded

	err := Run(context.Background(), c)
	assert.ErrorIs(t, err, dataflow.ErrCapacityExceeded)
	assert.Equal(t, int32(0), c.processed.Load())
	assert.Equal(t, int32(1), c.closed.Load())
}

func TestRunServiceLifetime(t *testing.T) {
	c := newFake()
	c.block = true

	var serviceDone atomic.Bool
	svc := func(ctx context.Context) error {
		<-ctx.Done()
		serviceDone.Store(true)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, c, WithService("svc", svc))
	cancel()

	require.NoError(t, wait(t, done))
	assert.True(t, serviceDone.Load())
}

func TestRunServiceErrorStopsStage(t *testing.T) {
	c := newFake()
	c.block = true
	failing := func(context.Context) error { return errors.New("listen failed") }

	err := wait(t, runAsync(context.Background(), c, WithService("diagnostics", failing)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diagnostics: listen failed")
	assert.Equal(t, int32(1), c.notified.Load())
}

// relay republishes every sample it reads, like a real pipeline stage.
type relay struct {
	in  *dataflow.Source[sample.Pose]
	out *dataflow.Sink[sample.Pose]
}

func (r *relay) Name() string { return "relay" }

func (r *relay) Connect() error {
	if err := r.out.Bind(); err != nil {
		return err
	}
	return r.in.Connect()
}

func (r *relay) Process() error {
	p, err := r.in.Get()
	if err != nil {
		return err
	}
	p.Position[0]++
	return r.out.Publish(p)
}

func (r *relay) NotifySelf() {
	r.in.NotifySelf()
	r.out.NotifySelf()
}

func (r *relay) Close() error {
	return errors.Join(r.in.Close(), r.out.Close())
}

func TestRunRelaysOverSharedMemory(t *testing.T) {
	dir := t.TempDir()
	opts := []dataflow.Option{dataflow.WithDir(dir)}

	src := dataflow.NewSink[sample.Pose]("in", sample.PoseCodec{}, opts...)
	require.NoError(t, src.Bind())
	dst := dataflow.NewSource[sample.Pose]("out", sample.PoseCodec{}, opts...)
	require.NoError(t, dst.Connect())
	t.Cleanup(func() { _ = dst.Close() })

	r := &relay{
		in:  dataflow.NewSource[sample.Pose]("in", sample.PoseCodec{}, opts...),
		out: dataflow.NewSink[sample.Pose]("out", sample.PoseCodec{}, opts...),
	}
	done := runAsync(context.Background(), r)

	require.Eventually(t, func() bool {
		return src.Node().SourceRefCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		p := sample.NewPose(sample.Info{}, sample.Pixels)
		p.Position[0] = float64(i * 10)
		require.NoError(t, src.Publish(p))

		got, err := dst.Get()
		require.NoError(t, err)
		assert.Equal(t, float64(i*10+1), got.Position[0])
	}

	require.NoError(t, src.Close())
	require.NoError(t, wait(t, done))

	_, err := dst.Get()
	assert.ErrorIs(t, err, dataflow.ErrEndOfStream)
}

func TestFlagsApply(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-metrics-addr", ":9100", "-shm-dir", "/tmp/x"}))

	cfg := config.Default()
	f.Apply(cfg)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "/tmp/x", cfg.Shm.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvRunOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Shm.Dir = t.TempDir()

	env, err := NewEnv("posidet", cfg)
	require.NoError(t, err)
	t.Cleanup(env.Close)

	assert.Contains(t, env.Instance.String(), "cmp_")
	assert.Len(t, env.DataflowOptions(), 3)
	assert.Len(t, env.RunOptions("raw", "pos"), 2)

	cfg.Metrics.Addr = "127.0.0.1:0"
	assert.Len(t, env.RunOptions("raw", "pos"), 3)
}

func TestParseArgsInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	fps := fs.Float64("fps", 0, "")

	pos, err := ParseArgs(fs, []string{"test", "-fps", "30", "raw", "-metrics-addr", ":9100"})
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "raw"}, pos)
	assert.Equal(t, 30.0, *fps)
	assert.Equal(t, ":9100", f.MetricsAddr)

	_, err = ParseArgs(fs, []string{"raw", "-nope"})
	assert.Error(t, err)
}
