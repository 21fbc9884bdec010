package chatlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/observability"
)

// DispatcherConfig sizes the background writer.
type DispatcherConfig struct {
	// QueueSize is the number of records buffered before new ones are dropped.
	QueueSize int

	// Workers is the number of goroutines writing to the sink.
	Workers int

	// WriteTimeout bounds a single Append call.
	WriteTimeout time.Duration
}

// DefaultDispatcherConfig returns the defaults used when fields are zero.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:    256,
		Workers:      1,
		WriteTimeout: 10 * time.Second,
	}
}

// Dispatcher writes records to a Sink off the request path. Dispatch never
// blocks and never reports sink failures to its caller: failures are logged
// and recorded on a trace span instead.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Record
	wg     sync.WaitGroup

	closeSink sync.Once
	sinkErr   error
}

// NewDispatcher starts the background workers for sink.
func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}

	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		timeout: cfg.WriteTimeout,
		queue:   make(chan Record, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}

	return d
}

// Dispatch queues rec for writing. It returns false when the record was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(rec Record) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("chat log closed, dropping record", zap.String("id", rec.ID))
		return false
	}

	select {
	case d.queue <- rec:
		return true
	default:
		d.logger.Warn("chat log queue full, dropping record",
			zap.String("id", rec.ID),
			zap.String("sink", d.sink.Name()),
		)
		return false
	}
}

// Close stops accepting records, waits for queued ones to be written and
// closes the sink. If ctx ends first, remaining records are abandoned and the
// sink is closed anyway; writes still in flight then fail and are logged.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return d.closeSinkOnce()
	case <-ctx.Done():
		d.logger.Warn("chat log drain interrupted", zap.Int("pending", len(d.queue)))
		return errors.Join(ctx.Err(), d.closeSinkOnce())
	}
}

func (d *Dispatcher) closeSinkOnce() error {
	d.closeSink.Do(func() {
		d.sinkErr = d.sink.Close()
	})
	return d.sinkErr
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for rec := range d.queue {
		d.write(rec)
	}
}

func (d *Dispatcher) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	ctx, span := observability.StartLogSpan(ctx, d.sink.Name())
	defer span.End()

	start := time.Now()
	err := d.sink.Append(ctx, rec)
	observability.RecordError(span, err)

	if err != nil {
		d.logger.Error("failed to store chat log record",
			zap.String("sink", d.sink.Name()),
			zap.String("id", rec.ID),
			zap.Error(err),
		)
		return
	}

	d.logger.Debug("chat log record stored",
		zap.String("sink", d.sink.Name()),
		zap.String("id", rec.ID),
		zap.Duration("duration", time.Since(start)),
	)
}
