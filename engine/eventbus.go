package engine

import (
	"context"
	"sync"

	"ecorewards/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

// Handler receives one notification.
type Handler func(context.Context, core.Event)

type subscription struct {
	id int64
	fn Handler
}

// EventBus is the notification sink fan-out. Handlers of one type run in subscription order
// and events are delivered in publish order in both modes: async mode uses a single worker.
type EventBus struct {
	mode   DispatchMode
	mu     sync.RWMutex
	subs   map[core.EventType][]subscription
	nextID int64
	queue  chan core.Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewEventBus(mode DispatchMode) *EventBus {
	eb := &EventBus{
		mode:  mode,
		subs:  make(map[core.EventType][]subscription),
		queue: make(chan core.Event, 2048),
		done:  make(chan struct{}),
	}
	if mode == DispatchAsync {
		eb.wg.Add(1)
		go eb.worker()
	}
	return eb
}

func (e *EventBus) worker() {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.queue:
			e.dispatch(context.Background(), ev)
		case <-e.done:
			// drain what was accepted before Close
			for {
				select {
				case ev := <-e.queue:
					e.dispatch(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Close stops the async worker after it drains the queue. Safe to call more than once.
func (e *EventBus) Close() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.subs[typ] = append(e.subs[typ], subscription{id: id, fn: handler})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		list := e.subs[typ]
		for i, s := range list {
			if s.id == id {
				e.subs[typ] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers handler for every event type.
func (e *EventBus) SubscribeAll(handler Handler) func() {
	unsubs := make([]func(), 0, len(core.AllEventTypes))
	for _, typ := range core.AllEventTypes {
		unsubs = append(unsubs, e.Subscribe(typ, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish sends an event to subscribers. In async mode a full queue drops the event.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		select {
		case <-e.done:
			return
		default:
		}
		select {
		case e.queue <- ev:
		default:
		}
		return
	}
	e.dispatch(ctx, ev)
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	handlers := make([]Handler, 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
