package viewer

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v2"

	"github.com/GriffinCanCode/shmflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/resilience"
)

// DefaultMinUpdatePeriod caps displays at about 30 Hz.
const DefaultMinUpdatePeriod = 33 * time.Millisecond

// Renderer draws one sample on some display.
type Renderer[T any] interface {
	Render(sample T) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc[T any] func(sample T) error

// Render calls f.
func (f RendererFunc[T]) Render(sample T) error { return f(sample) }

type displayOptions struct {
	minUpdate time.Duration
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	breaker   resilience.Settings
}

// Option configures a Display.
type Option func(*displayOptions)

// WithMinUpdatePeriod sets the shortest time between two renders.
func WithMinUpdatePeriod(d time.Duration) Option {
	return func(o *displayOptions) { o.minUpdate = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *displayOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records render outcomes.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *displayOptions) { o.metrics = metrics }
}

// WithBreaker sets the circuit breaker guarding the renderer.
func WithBreaker(settings resilience.Settings) Option {
	return func(o *displayOptions) { o.breaker = settings }
}

// Display renders the most recent sample offered to it on its own
// goroutine, at most once per minimum update period. Offers never block
// on rendering: a sample that arrives while another waits is replaced.
type Display[T any] struct {
	name     string
	renderer Renderer[T]
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	metrics  *monitoring.Metrics
	log      *zap.Logger

	mu              sync.Mutex
	cond            *sync.Cond
	pending         T
	hasPending      bool
	running         bool
	displayComplete bool
	started         bool

	t tomb.Tomb
}

// NewDisplay creates a stopped display. name labels logs and metrics.
func NewDisplay[T any](name string, r Renderer[T], opts ...Option) *Display[T] {
	o := displayOptions{
		minUpdate: DefaultMinUpdatePeriod,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	limit := rate.Inf
	if o.minUpdate > 0 {
		limit = rate.Every(o.minUpdate)
	}

	d := &Display[T]{
		name:            name,
		renderer:        r,
		limiter:         rate.NewLimiter(limit, 1),
		breaker:         resilience.New(name, o.breaker),
		metrics:         o.metrics,
		log:             o.logger.With(zap.String("viewer", name)),
		displayComplete: true,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the render goroutine. It may be called once.
func (d *Display[T]) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.running = true
	d.t.Go(d.loop)
}

// Offer hands v to the render goroutine. It reports false when v replaced
// a sample that was never rendered.
func (d *Display[T]) Offer(v T) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	dropped := d.hasPending
	d.pending = v
	d.hasPending = true
	d.cond.Signal()
	if dropped {
		d.metrics.RecordRender(d.name, "skipped")
	}
	return !dropped
}

// Idle reports whether nothing is waiting or being rendered.
func (d *Display[T]) Idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.hasPending && d.displayComplete
}

// Stop ends the render goroutine without rendering what is still pending.
func (d *Display[T]) Stop() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.cond.Broadcast()
	d.mu.Unlock()

	d.t.Kill(nil)
	return d.t.Wait()
}

func (d *Display[T]) loop() error {
	ctx := d.t.Context(nil)
	for {
		d.mu.Lock()
		for d.running && !d.hasPending {
			d.cond.Wait()
		}
		if !d.running {
			d.mu.Unlock()
			return nil
		}
		d.mu.Unlock()

		// Later offers keep replacing the pending sample while throttled.
		if err := d.limiter.Wait(ctx); err != nil {
			return nil
		}

		d.mu.Lock()
		if !d.running {
			d.mu.Unlock()
			return nil
		}
		v := d.pending
		var zero T
		d.pending = zero
		d.hasPending = false
		d.displayComplete = false
		d.mu.Unlock()

		d.render(v)

		d.mu.Lock()
		d.displayComplete = true
		d.mu.Unlock()
	}
}

func (d *Display[T]) render(v T) {
	err := d.breaker.Execute(func() error { return d.renderer.Render(v) })
	switch {
	case err == nil:
		d.metrics.RecordRender(d.name, "ok")
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		d.metrics.RecordRender(d.name, "skipped")
	default:
		d.metrics.RecordRender(d.name, "error")
		d.log.Warn("Render failed", zap.Error(err), zap.Stringer("breaker", d.breaker.State()))
	}
}
