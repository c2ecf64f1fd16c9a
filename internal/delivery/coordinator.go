// Package delivery moves window-system events from producer goroutines to
// the single consumer goroutine, either fire-and-forget or as a blocking
// round trip.
package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/logging"
	"github.com/phinze/touchpoint/internal/registry"
	"github.com/phinze/touchpoint/internal/wsi"
)

var logger = logging.Child("[delivery]")

// ErrConsumerRunning is returned by Run when another consumer loop is active.
var ErrConsumerRunning = errors.New("delivery: consumer loop already running")

// Policy selects how a boundary call delivers its event.
type Policy uint8

const (
	// Default resolves to Synchronous or Asynchronous depending on
	// SetSynchronousWindowSystemEvents.
	Default Policy = iota
	// Synchronous processes the event before returning, inline on the
	// consumer or through a flush from any other goroutine.
	Synchronous
	// Asynchronous queues the event and returns immediately.
	Asynchronous
)

func (p Policy) String() string {
	switch p {
	case Default:
		return "default"
	case Synchronous:
		return "synchronous"
	case Asynchronous:
		return "asynchronous"
	}
	return "unknown"
}

// WaitForever disables the flush timeout: a producer waiting on a flush
// blocks until the consumer drains the queue, the coordinator is closed or
// the producer's context ends.
const WaitForever time.Duration = 0

// Options configure a Coordinator.
type Options struct {
	// Synchronous is the initial resolution of the Default policy.
	Synchronous bool
	// FlushTimeout bounds how long a producer waits for the consumer to
	// drain. WaitForever (the zero value) waits without limit.
	FlushTimeout time.Duration
	// Now is the clock used for "now" timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Processor handles events on the consumer goroutine and records the result
// in Event.Accepted.
type Processor interface {
	ProcessEvent(ctx context.Context, e *wsi.Event)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, e *wsi.Event)

// ProcessEvent calls f.
func (f ProcessorFunc) ProcessEvent(ctx context.Context, e *wsi.Event) { f(ctx, e) }

// EventHandler sees every event before the processor. Returning false
// swallows the event.
type EventHandler interface {
	HandleEvent(ctx context.Context, e *wsi.Event) bool
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, e *wsi.Event) bool

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, e *wsi.Event) bool { return f(ctx, e) }

type consumerKey struct{}

// Coordinator owns the event queue and implements the delivery policies.
type Coordinator struct {
	queue     *wsi.Queue
	registry  *registry.Registry
	processor Processor
	opts      Options
	epoch     time.Time

	// Wakes the consumer loop. Capacity 1; extra wakeups coalesce.
	wake chan struct{}

	synchronous  atomic.Bool
	lastAccepted atomic.Bool

	handlerMu sync.RWMutex
	handler   EventHandler

	running   atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
	isClosed  atomic.Bool
}

// New creates a coordinator that hands events to p and registers devices in
// reg.
func New(reg *registry.Registry, p Processor, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Coordinator{
		queue:     wsi.NewQueue(),
		registry:  reg,
		processor: p,
		opts:      opts,
		epoch:     opts.Now(),
		wake:      make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
	c.synchronous.Store(opts.Synchronous)
	return c
}

// Queue exposes the underlying queue.
func (c *Coordinator) Queue() *wsi.Queue { return c.queue }

// Registry returns the device registry events are resolved against.
func (c *Coordinator) Registry() *registry.Registry { return c.registry }

// OnConsumer reports whether ctx was handed out by this coordinator's
// consumer, i.e. whether the caller is running on the consumer goroutine.
func (c *Coordinator) OnConsumer(ctx context.Context) bool {
	owner, _ := ctx.Value(consumerKey{}).(*Coordinator)
	return owner == c
}

func (c *Coordinator) markConsumer(ctx context.Context) context.Context {
	if c.OnConsumer(ctx) {
		return ctx
	}
	return context.WithValue(ctx, consumerKey{}, c)
}

// ConsumerContext marks ctx as belonging to the consumer goroutine. Event
// loops that call ProcessEvents themselves (a UI frame callback, for
// example) use it to make inline synchronous delivery available to input
// handlers running on that loop.
func (c *Coordinator) ConsumerContext(ctx context.Context) context.Context {
	return c.markConsumer(ctx)
}

// SetSynchronousWindowSystemEvents changes what the Default policy resolves
// to. It may only be called on the consumer.
func (c *Coordinator) SetSynchronousWindowSystemEvents(ctx context.Context, enable bool) {
	if !c.OnConsumer(ctx) {
		logger.Warnf("SetSynchronousWindowSystemEvents(%t) called off the consumer goroutine; ignored", enable)
		return
	}
	c.synchronous.Store(enable)
}

// SynchronousWindowSystemEvents reports what the Default policy resolves to.
func (c *Coordinator) SynchronousWindowSystemEvents() bool {
	return c.synchronous.Load()
}

// InstallEventHandler installs h in front of the processor, replacing any
// previous handler.
func (c *Coordinator) InstallEventHandler(h EventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handler = h
}

// RemoveEventHandler removes the installed handler.
func (c *Coordinator) RemoveEventHandler() {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handler = nil
}

func (c *Coordinator) eventHandler() EventHandler {
	c.handlerMu.RLock()
	defer c.handlerMu.RUnlock()
	return c.handler
}

// Run is the consumer loop. It drains the queue whenever a producer wakes
// it and returns when ctx ends or the coordinator is closed.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrConsumerRunning
	}
	defer c.running.Store(false)

	ctx = c.markConsumer(ctx)
	logger.Debugf("consumer loop started")
	defer logger.Debugf("consumer loop stopped")

	for {
		c.ProcessEvents(ctx, wsi.AllEvents)
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case <-c.wake:
		}
	}
}

func (c *Coordinator) wakeConsumer() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ProcessEvents drains the queue on the consumer and reports whether any
// event was processed. With ExcludeUserInput, queued input is left in
// place. It must only be called from the consumer goroutine.
func (c *Coordinator) ProcessEvents(ctx context.Context, flags wsi.ProcessFlags) bool {
	ctx = c.markConsumer(ctx)
	processed := 0
	for {
		var (
			e  *wsi.Event
			ok bool
		)
		if flags&wsi.ExcludeUserInput != 0 {
			e, ok = c.queue.TakeFirstNonUserInput()
		} else {
			e, ok = c.queue.TakeFirst()
		}
		if !ok {
			break
		}

		if c.send(ctx, e) {
			processed++
		}
		if e.Kind() != wsi.KindFlush {
			c.lastAccepted.Store(e.Accepted)
		}
	}
	return processed > 0
}

// send runs one event through the handler and processor and reports whether
// it was processed.
func (c *Coordinator) send(ctx context.Context, e *wsi.Event) bool {
	switch p := e.Payload.(type) {
	case *wsi.Flush:
		c.ProcessEvents(ctx, p.Flags)
		close(p.Done)
		return true
	case *wsi.DeviceRemoved:
		// The processor sees the device before its points are dropped.
		defer p.Device.Destroy()
	}
	if h := c.eventHandler(); h != nil && !h.HandleEvent(ctx, e) {
		logger.Debugf("event handler swallowed %v", e)
		return false
	}
	if c.processor != nil {
		c.processor.ProcessEvent(ctx, e)
	}
	return true
}

// Flush blocks until every event queued before the call has been processed
// and returns the accepted state of the last processed event. On the
// consumer it drains inline. It returns false without waiting when the
// queue is empty.
func (c *Coordinator) Flush(ctx context.Context, flags wsi.ProcessFlags) bool {
	if c.queue.Count() == 0 {
		return false
	}
	if c.isClosed.Load() {
		c.discardPending()
		return false
	}
	if c.OnConsumer(ctx) {
		c.ProcessEvents(ctx, flags)
		return c.lastAccepted.Load()
	}
	if !c.roundTrip(ctx, flags) {
		return false
	}
	return c.lastAccepted.Load()
}

// roundTrip queues a flush marker behind everything already queued and
// waits for the consumer to reach it. It reports whether the marker was
// processed.
func (c *Coordinator) roundTrip(ctx context.Context, flags wsi.ProcessFlags) bool {
	marker := wsi.NewFlush(flags)
	c.queue.Append(wsi.NewEvent(wsi.NoWindow, marker))
	c.wakeConsumer()

	var timeout <-chan time.Time
	if c.opts.FlushTimeout != WaitForever {
		t := time.NewTimer(c.opts.FlushTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-marker.Done:
		return true
	case <-c.closed:
		logger.Warnf("coordinator closed while waiting for flush")
		return false
	case <-ctx.Done():
		logger.Warnf("flush abandoned: %v", ctx.Err())
		return false
	case <-timeout:
		logger.Warnf("flush timed out after %v", c.opts.FlushTimeout)
		return false
	}
}

// discardPending drops every queued event. Flush markers among them are
// completed so nobody waits on them, and removed devices are destroyed.
func (c *Coordinator) discardPending() {
	dropped := c.queue.Clear()
	if len(dropped) == 0 {
		return
	}
	for _, e := range dropped {
		switch p := e.Payload.(type) {
		case *wsi.Flush:
			close(p.Done)
		case *wsi.DeviceRemoved:
			p.Device.Destroy()
		}
	}
	logger.Warnf("consumer is gone; discarding %d pending events", len(dropped))
}

// Close stops the consumer loop and releases waiting producers. Events still
// queued are discarded by the next Flush. Close is idempotent.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.isClosed.Store(true)
		close(c.closed)
		logger.Debugf("closed with %d pending events", c.queue.Count())
	})
	return nil
}

// Closed reports whether Close has been called.
func (c *Coordinator) Closed() bool {
	return c.isClosed.Load()
}

// RegisterDevice adds dev to the registry.
func (c *Coordinator) RegisterDevice(dev *input.Device) {
	c.registry.Register(dev)
}

// UnregisterDevice removes dev from the registry right away. Its active
// points belong to the consumer, so off the consumer they are dropped by a
// queued DeviceRemoved event, after any input already queued for dev.
func (c *Coordinator) UnregisterDevice(ctx context.Context, dev *input.Device) {
	if !c.registry.Unregister(dev) {
		return
	}
	e := wsi.NewEvent(wsi.NoWindow, &wsi.DeviceRemoved{Device: dev})
	if c.OnConsumer(ctx) {
		c.send(ctx, e)
		return
	}
	if c.isClosed.Load() {
		// Nothing drains the queue any more.
		dev.Destroy()
		return
	}
	c.queue.Append(e)
	c.wakeConsumer()
}

// Deliver hands e to the consumer according to policy.
func (c *Coordinator) Deliver(ctx context.Context, policy Policy, e *wsi.Event) bool {
	if c.isClosed.Load() {
		logger.Warnf("coordinator closed; dropping %v", e)
		return false
	}
	if policy == Default {
		policy = Asynchronous
		if c.synchronous.Load() {
			policy = Synchronous
		}
	}

	if policy == Asynchronous {
		c.queue.Append(e)
		c.wakeConsumer()
		return true
	}

	if c.OnConsumer(ctx) {
		if !c.send(ctx, e) {
			return false
		}
		return e.Accepted
	}
	c.queue.Append(e)
	if !c.roundTrip(ctx, wsi.AllEvents) {
		return false
	}
	// Done was closed after e was processed, so e.Accepted is settled.
	// lastAccepted may already belong to an event queued behind the marker.
	return e.Accepted
}

// Timestamp returns "now" in milliseconds since the coordinator was created.
// It never returns 0, which boundary calls treat as "now".
func (c *Coordinator) Timestamp() uint64 {
	ms := c.opts.Now().Sub(c.epoch).Milliseconds()
	if ms < 1 {
		return 1
	}
	return uint64(ms)
}
