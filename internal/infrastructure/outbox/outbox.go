package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/namprobe/NekoViBE-sub001/internal/domain/outbox"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
	"github.com/namprobe/NekoViBE-sub001/internal/observability/logctx"
)

const (
	componentOutbox = "outbox"

	queueDepth     = 1024
	handlerFanout  = 8
	handlerTimeout = 30 * time.Second
)

// ErrBusStopped is returned by Publish once Stop has been called.
var ErrBusStopped = errors.New("outbox: bus stopped")

// Bus fans domain events out to in-process subscribers (the audit trail,
// mostly). It is not durable: events published while the process dies are
// lost, which is acceptable because every event here is derivable from the
// order store.
type Bus struct {
	mu    sync.RWMutex
	subs  map[string][]domoutbox.Handler
	queue chan domoutbox.Event
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc

	log observability.Logger
}

func NewBus(logger observability.Logger) *Bus {
	return &Bus{
		subs:  make(map[string][]domoutbox.Handler),
		queue: make(chan domoutbox.Event, queueDepth),
		done:  make(chan struct{}),
		log:   logger.With(observability.F("component", componentOutbox)),
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		b.cancel = cancel
		go b.run(bg)
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop signals shutdown. The queue channel is never closed: a Publish racing
// the shutdown sees the done signal instead of a send on a closed channel.
// Events still queued are dropped with the run loop.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		close(b.done)
		if b.cancel != nil {
			b.cancel()
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

// Publish enqueues the event, blocking only until ctx expires. Callers treat
// a publish failure as a log line, never as a saga failure.
func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	select {
	case <-b.done:
		return ErrBusStopped
	default:
	}
	select {
	case b.queue <- e:
		return nil
	case <-b.done:
		return ErrBusStopped
	case <-ctx.Done():
		logctx.FromOr(ctx, b.log).Warn("event_enqueue_aborted",
			observability.F("event", e.EventName()),
			observability.F("error", ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			b.deliver(ctx, e)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", observability.F("event", name))
		return
	}

	// Handlers outlive the publisher's request context.
	ctx = context.WithoutCancel(ctx)
	ctx = logctx.With(ctx, b.log.With(observability.F("event", name)))

	sem := make(chan struct{}, handlerFanout)
	var wg sync.WaitGroup
	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event_handler_panic",
						observability.F("event", name),
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
			defer cancel()
			if err := h(hctx, e); err != nil {
				b.log.Warn("event_handler_error",
					observability.F("event", name),
					observability.F("error", err),
				)
			}
		}()
	}
	wg.Wait()
}
