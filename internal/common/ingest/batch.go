package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/G-Research/logingester/internal/common/ingest/metrics"
)

// Sink should be implemented by the struct responsible for putting a batch in its final resting place, e.g. a
// database or a message broker.
type Sink[T any] interface {
	// Store persists every item of the batch as a single operation or fails as a whole.  The buffer never calls Store
	// concurrently and never retries a failed batch.
	Store(ctx context.Context, batch []T) error
}

type EngineState int32

const (
	Stopped EngineState = iota
	Running
	Stopping
)

func (s EngineState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Stats is a point in time view of an IngestBuffer.  Counters are read independently so a snapshot taken while
// events are flowing is only eventually consistent.
type Stats struct {
	State         string `json:"state"`
	QueueDepth    int    `json:"queueDepth"`
	QueueCapacity int    `json:"queueCapacity"`
	Enqueued      uint64 `json:"enqueued"`
	Dropped       uint64 `json:"dropped"`
	Flushed       uint64 `json:"flushed"`
	FlushFailed   uint64 `json:"flushFailed"`
}

// IngestBuffer stages items in a bounded queue and hands them to a Sink in batches.  Batches are created whenever
// MaxBatchSize items are queued or FlushInterval has elapsed since the worker last woke up (whichever occurs first).
// Items in a batch the sink fails to store are dropped.
type IngestBuffer[T any] struct {
	config  BufferConfig
	sink    Sink[T]
	metrics *metrics.Metrics
	clock   clock.Clock
	queue   *boundedQueue[T]

	// Held for the whole of drain + Store so that at most one batch is ever in flight
	flushMu sync.Mutex

	lifecycleMu sync.Mutex
	state       atomic.Int32
	closed      bool
	stop        chan struct{}
	done        chan struct{}

	enqueued    atomic.Uint64
	dropped     atomic.Uint64
	flushed     atomic.Uint64
	flushFailed atomic.Uint64
}

func NewIngestBuffer[T any](config BufferConfig, sink Sink[T], m *metrics.Metrics) (*IngestBuffer[T], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.WithMessage(ErrInvalidConfig, "sink must not be nil")
	}
	if m == nil {
		return nil, errors.WithMessage(ErrInvalidConfig, "metrics must not be nil")
	}
	if config.MaxBatchSize > config.QueueCapacity {
		log.Warnf("maxBatchSize %d exceeds queueCapacity %d; batches will only be released by the flush interval",
			config.MaxBatchSize, config.QueueCapacity)
	}
	return &IngestBuffer[T]{
		config:  config,
		sink:    sink,
		metrics: m,
		clock:   clock.RealClock{},
		queue:   newBoundedQueue[T](config.QueueCapacity, config.MaxBatchSize),
	}, nil
}

// Start launches the background worker.
func (b *IngestBuffer[T]) Start() error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if b.closed {
		return errors.WithStack(ErrEngineClosed)
	}
	if b.State() == Running {
		return errors.WithStack(ErrAlreadyStarted)
	}

	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	b.state.Store(int32(Running))
	go b.run()

	log.Infof("Ingest buffer started: maxBatchSize=%d flushInterval=%s queueCapacity=%d",
		b.config.MaxBatchSize, b.config.FlushInterval, b.config.QueueCapacity)
	return nil
}

// Stop closes the buffer to new items, waits for the worker to exit and then writes out everything still queued.
// The supplied context is passed to the sink for the final drain.  Calling Stop more than once is a no-op.
func (b *IngestBuffer[T]) Stop(ctx context.Context) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	wasRunning := b.State() == Running
	b.state.Store(int32(Stopping))
	b.queue.close()
	if wasRunning {
		close(b.stop)
		<-b.done
	}

	residue := b.queue.len()
	batches := 0
	for {
		n, _ := b.FlushNow(ctx)
		if n == 0 {
			break
		}
		batches++
	}
	b.state.Store(int32(Stopped))

	log.Infof("Ingest buffer stopped: drained %d events in %d batches", residue, batches)
	return ctx.Err()
}

// TryEnqueue adds item to the buffer if there is room.  It never waits: when the buffer is full or closed the item
// is counted as dropped and false is returned.
func (b *IngestBuffer[T]) TryEnqueue(item T) bool {
	if b.queue.push(item) != pushed {
		b.dropped.Add(1)
		b.metrics.RecordDropped()
		return false
	}
	b.enqueued.Add(1)
	b.metrics.RecordEnqueued()
	return true
}

// Enqueue adds item to the buffer, waiting for room if necessary.  No lock is held while waiting.  Returns
// ErrEngineClosed if the buffer shuts down first, or the context error if ctx is done first.
func (b *IngestBuffer[T]) Enqueue(ctx context.Context, item T) error {
	for {
		// Grab the signal before trying so a drain between the attempt and the wait cannot be missed
		space := b.queue.spaceSignal()
		switch b.queue.push(item) {
		case pushed:
			b.enqueued.Add(1)
			b.metrics.RecordEnqueued()
			return nil
		case pushClosed:
			return errors.WithStack(ErrEngineClosed)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-space:
		}
	}
}

// FlushNow drains up to MaxBatchSize items and hands them to the sink.  It returns the number of items drained and
// the sink error, if any.  Failed batches have already been counted and dropped when this returns.
func (b *IngestBuffer[T]) FlushNow(ctx context.Context) (int, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	batch := b.queue.drain(b.config.MaxBatchSize)
	if len(batch) == 0 {
		return 0, nil
	}
	return len(batch), b.write(ctx, batch)
}

func (b *IngestBuffer[T]) State() EngineState {
	return EngineState(b.state.Load())
}

func (b *IngestBuffer[T]) Len() int {
	return b.queue.len()
}

func (b *IngestBuffer[T]) Stats() Stats {
	return Stats{
		State:         b.State().String(),
		QueueDepth:    b.queue.len(),
		QueueCapacity: b.queue.capacity(),
		Enqueued:      b.enqueued.Load(),
		Dropped:       b.dropped.Load(),
		Flushed:       b.flushed.Load(),
		FlushFailed:   b.flushFailed.Load(),
	}
}

func (b *IngestBuffer[T]) run() {
	defer close(b.done)
	ctx := context.Background()

	for {
		expire := b.clock.NewTimer(b.config.FlushInterval)
		select {
		case <-b.stop:
			expire.Stop()
			return
		case <-b.queue.readySignal():
			expire.Stop()
		case <-expire.C():
			// Time trigger: whatever has accumulated, possibly nothing
			_, _ = b.FlushNow(ctx)
		}

		// Size trigger, and any backlog that built up while the last batch was being stored
		for b.queue.len() >= b.config.MaxBatchSize {
			select {
			case <-b.stop:
				return
			default:
			}
			_, _ = b.FlushNow(ctx)
		}
	}
}

func (b *IngestBuffer[T]) write(ctx context.Context, batch []T) (err error) {
	start := b.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("sink panicked: %v", r)
		}
		taken := b.clock.Since(start)
		if err != nil {
			b.flushFailed.Add(1)
			b.metrics.RecordFlushFailure(len(batch), taken)
			log.WithError(err).Warnf("Dropping batch of %d events after sink failure", len(batch))
			return
		}
		b.flushed.Add(uint64(len(batch)))
		b.metrics.RecordFlush(len(batch), taken)
		log.Debugf("Stored %d events in %dms", len(batch), taken.Milliseconds())
	}()
	return b.sink.Store(ctx, batch)
}
