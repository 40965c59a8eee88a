package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/birdo-app/birdo/internal/logger"
)

// Config holds event bus configuration
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
		Workers:    2,
	}
}

// EventBus provides asynchronous event processing with non-blocking publishing.
type EventBus struct {
	eventChan chan ObservationSaved
	workers   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// publishMu guards running and the channel close against in-flight sends.
	publishMu sync.RWMutex
	running   bool
	startOnce sync.Once

	mu        sync.Mutex
	consumers []EventConsumer

	stats    EventBusStats
	log      logger.Logger
	recorder Recorder
}

// New creates an event bus. Workers start with the first consumer.
func New(cfg Config, log logger.Logger, recorder Recorder) *EventBus {
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		eventChan: make(chan ObservationSaved, cfg.BufferSize),
		workers:   cfg.Workers,
		ctx:       ctx,
		cancel:    cancel,
		running:   true,
		log:       log.Module("events"),
		recorder:  recorder,
	}

	eb.log.Info("event bus initialized",
		logger.Int("buffer_size", cfg.BufferSize),
		logger.Int("workers", cfg.Workers))
	return eb
}

// RegisterConsumer adds a consumer. Names must be unique.
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	eb.consumers = append(eb.consumers, consumer)
	eb.log.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	eb.startOnce.Do(eb.start)
	return nil
}

// TryPublish enqueues an event without blocking. It returns false when the
// bus has no consumers, is shut down, or the buffer is full.
func (eb *EventBus) TryPublish(event ObservationSaved) bool {
	if eb == nil {
		return false
	}

	eb.mu.Lock()
	hasConsumers := len(eb.consumers) > 0
	eb.mu.Unlock()
	if !hasConsumers {
		return false
	}

	eb.publishMu.RLock()
	defer eb.publishMu.RUnlock()
	if !eb.running {
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		if eb.recorder != nil {
			eb.recorder.RecordDropped()
		}
		eb.log.Warn("event dropped due to full buffer", logger.String("observation_id", event.ID))
		return false
	}
}

func (eb *EventBus) start() {
	eb.log.Debug("starting event bus workers", logger.Int("count", eb.workers))
	for i := range eb.workers {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

// worker drains the channel until it is closed by Shutdown.
func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()
	log := eb.log.With(logger.Int("worker_id", id))

	for event := range eb.eventChan {
		eb.processEvent(event, log)
	}
	log.Debug("worker stopped")
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event ObservationSaved, log logger.Logger) {
	eb.mu.Lock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		err := eb.deliver(consumer, event)
		if eb.recorder != nil {
			eb.recorder.RecordDelivery(consumer.Name(), err)
		}
		if err != nil {
			atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
			log.Error("consumer error",
				logger.String("consumer", consumer.Name()),
				logger.String("observation_id", event.ID),
				logger.Error(err))
			continue
		}
		atomic.AddUint64(&eb.stats.EventsProcessed, 1)
	}
}

// deliver converts a consumer panic into an error.
func (eb *EventBus) deliver(consumer EventConsumer, event ObservationSaved) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer %s panicked: %v", consumer.Name(), r)
		}
	}()
	return consumer.ProcessEvent(eb.ctx, event)
}

// Shutdown stops accepting events and waits for queued events to be
// delivered. When timeout expires consumers see a cancelled context and get
// one more timeout to return, so Shutdown never blocks longer than 2*timeout.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	eb.publishMu.Lock()
	if !eb.running {
		eb.publishMu.Unlock()
		return nil
	}
	eb.running = false
	close(eb.eventChan)
	eb.publishMu.Unlock()

	// Workers that never started have nothing to drain.
	eb.startOnce.Do(func() {})

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		eb.cancel()
		stats := eb.GetStats()
		eb.log.Info("event bus shutdown complete",
			logger.Uint64("received", stats.EventsReceived),
			logger.Uint64("processed", stats.EventsProcessed),
			logger.Uint64("dropped", stats.EventsDropped),
			logger.Uint64("consumer_errors", stats.ConsumerErrors))
		return nil
	case <-time.After(timeout):
	}

	// Consumers get one more timeout to observe the cancelled context.
	eb.cancel()
	select {
	case <-done:
		eb.log.Warn("event bus shutdown timeout exceeded, pending deliveries cancelled")
	case <-time.After(timeout):
		eb.log.Warn("event bus shutdown abandoned consumers that ignore cancellation")
	}
	return fmt.Errorf("shutdown timeout exceeded")
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	return EventBusStats{
		EventsReceived:  atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&eb.stats.ConsumerErrors),
	}
}
