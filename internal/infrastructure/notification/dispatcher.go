package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AsyncDispatcher queues notification intents onto a buffered channel and
// delivers them on a background worker. Notify never blocks: when the queue
// is full the event is dropped and logged.
type AsyncDispatcher struct {
	sink   Sink
	logger *zap.Logger

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewAsyncDispatcher starts the delivery worker.
func NewAsyncDispatcher(sink Sink, logger *zap.Logger, queueSize int) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &AsyncDispatcher{
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Notify queues the event for delivery. Fire-and-forget.
func (d *AsyncDispatcher) Notify(ctx context.Context, kind EventKind, recipient uuid.UUID, payload map[string]any) {
	ev := Event{Kind: kind, Recipient: recipient, Payload: payload}
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("notification queue full, dropping event",
			zap.String("kind", string(kind)),
			zap.String("recipient", recipient.String()))
	}
}

// Close stops the worker after draining queued events.
func (d *AsyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.done:
			// drain whatever is already queued
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *AsyncDispatcher) deliver(ev Event) {
	if err := d.sink.Deliver(context.Background(), ev); err != nil {
		d.logger.Error("notification delivery failed",
			zap.String("kind", string(ev.Kind)),
			zap.String("recipient", ev.Recipient.String()),
			zap.Error(err))
	}
}

// LogSink is the default Sink: it records the intent in the service log.
// Real email/SMS delivery is owned by an external service.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a Sink that logs every intent.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, ev Event) error {
	s.logger.Info("notification intent",
		zap.String("kind", string(ev.Kind)),
		zap.String("recipient", ev.Recipient.String()),
		zap.Any("payload", ev.Payload))
	return nil
}
