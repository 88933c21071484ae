// Package batcher provides a generic buffered batch processor with rate limiting.
package batcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const defaultDrainTimeout = 30 * time.Second

// ErrStopped is returned by Add once the batcher has been stopped.
var ErrStopped = errors.New("batcher stopped")

type (
	// Metrics receives flush outcomes and buffer depth changes.
	Metrics interface {
		ObserveFlush(err error, items int, started time.Time)
		SetDepth(depth int)
	}

	// Option customizes a Batcher.
	Option func(*options)

	options struct {
		metrics       Metrics
		highWatermark int
		drainTimeout  time.Duration
	}
)

// WithMetrics reports flushes and buffer depth to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithHighWatermark logs a warning on every tick while the buffer holds at least n items.
func WithHighWatermark(n int) Option {
	return func(o *options) { o.highWatermark = n }
}

// WithDrainTimeout bounds the final flush performed when the batcher stops.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.drainTimeout = d
		}
	}
}

// Batcher buffers items and flushes them on a fixed interval once the buffer reaches the threshold.
// A failed flush leaves the buffer untouched, so the same items are offered again on the next tick.
type Batcher[T any] struct {
	flushCallback func(context.Context, []T) error
	buffer        *Buffer[T]
	threshold     int
	flushInterval time.Duration
	highWatermark int
	drainTimeout  time.Duration
	rl            ratelimit.Limiter
	logger        *zap.Logger
	metrics       Metrics

	flushMu  sync.Mutex
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs a Batcher. rps limits flush calls per second; zero or less disables the limit.
func New[T any](
	logger *zap.Logger,
	flushCallback func(context.Context, []T) error,
	threshold int,
	flushInterval time.Duration,
	rps int,
	opts ...Option,
) *Batcher[T] {
	o := options{metrics: nopMetrics{}, drainTimeout: defaultDrainTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	if threshold < 1 {
		threshold = 1
	}

	rl := ratelimit.NewUnlimited()
	if rps > 0 {
		rl = ratelimit.New(rps)
	}

	return &Batcher[T]{
		flushCallback: flushCallback,
		buffer:        NewBuffer[T](o.metrics.SetDepth),
		threshold:     threshold,
		flushInterval: flushInterval,
		highWatermark: o.highWatermark,
		drainTimeout:  o.drainTimeout,
		rl:            rl,
		logger:        logger,
		metrics:       o.metrics,
		stop:          make(chan struct{}),
	}
}

// Start begins the background flushing loop.
func (b *Batcher[T]) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop stops the background loop after a final flush of everything still buffered.
func (b *Batcher[T]) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
}

// Add appends an item to the buffer.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	select {
	case <-b.stop:
		return ErrStopped
	default:
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	b.buffer.Append(item)
	return nil
}

// Len returns the number of items waiting to be flushed.
func (b *Batcher[T]) Len() int {
	return b.buffer.Len()
}

// Flush performs one flush attempt: nothing happens below the threshold, otherwise every item
// buffered right now is passed to the callback and, on success, exactly that many items are
// removed from the front of the buffer. It returns the number of items removed.
func (b *Batcher[T]) Flush(ctx context.Context) (int, error) {
	return b.flush(ctx, b.threshold)
}

func (b *Batcher[T]) flush(ctx context.Context, threshold int) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.buffer.Len() < threshold {
		return 0, nil
	}

	batch := b.buffer.Snapshot()
	if len(batch) == 0 {
		return 0, nil
	}

	b.rl.Take()
	started := time.Now()
	err := b.flushCallback(ctx, batch)
	b.metrics.ObserveFlush(err, len(batch), started)
	if err != nil {
		b.logger.Error("batch not flushed, keeping items for retry", zap.Int("size", len(batch)), zap.Error(err))
		return 0, err
	}

	if err := b.buffer.RemovePrefix(len(batch)); err != nil {
		return 0, err
	}
	b.logger.Debug("batch flushed", zap.Int("size", len(batch)))
	return len(batch), nil
}

func (b *Batcher[T]) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drain(ctx)
			return

		case <-b.stop:
			b.drain(ctx)
			return

		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *Batcher[T]) tick(ctx context.Context) {
	if depth := b.buffer.Len(); b.highWatermark > 0 && depth >= b.highWatermark {
		b.logger.Warn("buffer above high watermark, flushes are not keeping up",
			zap.Int("depth", depth),
			zap.Int("high_watermark", b.highWatermark),
		)
	}
	_, _ = b.Flush(ctx)
}

func (b *Batcher[T]) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.drainTimeout)
	defer cancel()

	n, err := b.flush(ctx, 1)
	if err != nil {
		b.logger.Error("final flush failed", zap.Int("pending", b.buffer.Len()), zap.Error(err))
		return
	}
	if n > 0 {
		b.logger.Info("final flush done", zap.Int("size", n))
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveFlush(error, int, time.Time) {}
func (nopMetrics) SetDepth(int)                       {}
