package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/registry"
	"github.com/phinze/touchpoint/internal/wsi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder accepts left-button mouse events and everything that is not a
// mouse event, and remembers what it saw.
type recorder struct {
	mu       sync.Mutex
	payloads []wsi.Payload
	consumer []bool
	c        *Coordinator
}

func (r *recorder) ProcessEvent(ctx context.Context, e *wsi.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, e.Payload)
	r.consumer = append(r.consumer, r.c != nil && r.c.OnConsumer(ctx))
	if m, ok := e.Payload.(*wsi.Mouse); ok {
		e.Accepted = m.Button == input.LeftButton
		return
	}
	e.Accepted = true
}

func (r *recorder) seen() []wsi.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wsi.Payload(nil), r.payloads...)
}

func newCoordinator(t *testing.T, opts Options) (*Coordinator, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := New(registry.New(), rec, opts)
	rec.c = c
	t.Cleanup(func() { c.Close() })
	return c, rec
}

// startConsumer runs the consumer loop until the test ends.
func startConsumer(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func press(button input.MouseButton) *wsi.Mouse {
	return &wsi.Mouse{
		Type:   input.MouseButtonPress,
		Button: button,
		Local:  geom.V(5, 5),
		Global: geom.V(5, 5),
	}
}

func TestAsynchronous_QueuesAndReturnsTrue(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := context.Background()

	assert.True(t, c.HandleMouseEventPolicy(ctx, Asynchronous, 1, press(input.RightButton)))
	assert.Equal(t, 1, c.Queue().Count())
	assert.Empty(t, rec.seen())

	assert.True(t, c.ProcessEvents(ctx, wsi.AllEvents))
	assert.Len(t, rec.seen(), 1)
	assert.Equal(t, 0, c.Queue().Count())
}

func TestSynchronous_OnConsumerRunsInline(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := c.ConsumerContext(context.Background())

	assert.True(t, c.HandleMouseEventPolicy(ctx, Synchronous, 1, press(input.LeftButton)))
	assert.False(t, c.HandleMouseEventPolicy(ctx, Synchronous, 1, press(input.RightButton)))

	assert.Len(t, rec.seen(), 2)
	assert.Equal(t, []bool{true, true}, rec.consumer)
	assert.Equal(t, 0, c.Queue().Count(), "inline delivery bypasses the queue")
}

func TestSynchronous_CrossGoroutineRoundTrip(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	startConsumer(t, c)
	ctx := context.Background()

	type tc struct {
		button input.MouseButton
		want   bool
	}
	tests := map[string]tc{
		"accepted": {button: input.LeftButton, want: true},
		"rejected": {button: input.RightButton, want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := press(tt.button)
			got := c.HandleMouseEventPolicy(ctx, Synchronous, 1, m)

			assert.Equal(t, tt.want, got)
			assert.Contains(t, rec.seen(), wsi.Payload(m), "event must be processed before the call returns")
		})
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, onConsumer := range rec.consumer {
		assert.True(t, onConsumer, "processing happens on the consumer")
	}
}

func TestSynchronous_ManyProducers(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	startConsumer(t, c)

	const producers = 8
	var wg sync.WaitGroup
	results := make([]bool, producers)
	for i := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.HandleKeyEventPolicy(context.Background(), Synchronous, 1, &wsi.Key{Pressed: true, Key: input.Key('a' + i)})
		}()
	}
	wg.Wait()

	assert.Len(t, rec.seen(), producers)
	for i, ok := range results {
		assert.True(t, ok, "producer %d", i)
	}
}

func TestDefaultPolicyResolution(t *testing.T) {
	c, rec := newCoordinator(t, Options{Synchronous: false})
	ctx := context.Background()
	consumerCtx := c.ConsumerContext(ctx)

	// Asynchronous by default: rejected events still report true.
	assert.True(t, c.HandleMouseEvent(ctx, 1, press(input.RightButton)))
	assert.Equal(t, 1, c.Queue().Count())

	c.SetSynchronousWindowSystemEvents(ctx, true)
	assert.False(t, c.SynchronousWindowSystemEvents(), "ignored off the consumer")

	c.SetSynchronousWindowSystemEvents(consumerCtx, true)
	assert.True(t, c.SynchronousWindowSystemEvents())

	c.ProcessEvents(consumerCtx, wsi.AllEvents)
	assert.False(t, c.HandleMouseEvent(consumerCtx, 1, press(input.RightButton)))
	assert.Len(t, rec.seen(), 2)
}

func TestFlush_EmptyQueue(t *testing.T) {
	c, _ := newCoordinator(t, Options{})
	assert.False(t, c.Flush(context.Background(), wsi.AllEvents))
}

func TestFlush_OnConsumerDrainsInline(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := c.ConsumerContext(context.Background())

	c.HandleMouseEventPolicy(ctx, Asynchronous, 1, press(input.RightButton))
	c.HandleMouseEventPolicy(ctx, Asynchronous, 1, press(input.LeftButton))

	assert.True(t, c.Flush(ctx, wsi.AllEvents), "result is the last event's accepted state")
	assert.Len(t, rec.seen(), 2)
}

func TestFlush_AfterCloseDiscards(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := context.Background()

	c.HandleMouseEventPolicy(ctx, Asynchronous, 1, press(input.LeftButton))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")

	assert.False(t, c.Flush(ctx, wsi.AllEvents))
	assert.Equal(t, 0, c.Queue().Count())
	assert.Empty(t, rec.seen())

	assert.False(t, c.HandleMouseEventPolicy(ctx, Asynchronous, 1, press(input.LeftButton)),
		"delivery after close is refused")
}

func TestClose_ReleasesWaitingFlushers(t *testing.T) {
	c, _ := newCoordinator(t, Options{})

	result := make(chan bool, 1)
	go func() {
		result <- c.HandleMouseEventPolicy(context.Background(), Synchronous, 1, press(input.LeftButton))
	}()

	require.Eventually(t, func() bool { return c.Queue().Count() == 2 }, time.Second, time.Millisecond,
		"event and flush marker are queued")
	require.NoError(t, c.Close())

	select {
	case got := <-result:
		assert.False(t, got)
	case <-time.After(time.Second):
		t.Fatal("flusher was not released by Close")
	}
}

func TestFlush_BoundedWait(t *testing.T) {
	t.Run("flush timeout", func(t *testing.T) {
		c, _ := newCoordinator(t, Options{FlushTimeout: 20 * time.Millisecond})
		start := time.Now()
		assert.False(t, c.HandleMouseEventPolicy(context.Background(), Synchronous, 1, press(input.LeftButton)))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("context deadline", func(t *testing.T) {
		c, _ := newCoordinator(t, Options{})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.False(t, c.HandleMouseEventPolicy(ctx, Synchronous, 1, press(input.LeftButton)))
	})
}

func TestEventHandler(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := c.ConsumerContext(context.Background())

	var intercepted []wsi.Kind
	c.InstallEventHandler(EventHandlerFunc(func(_ context.Context, e *wsi.Event) bool {
		intercepted = append(intercepted, e.Kind())
		return e.Kind() != wsi.KindKey
	}))

	assert.False(t, c.HandleKeyEventPolicy(ctx, Synchronous, 1, &wsi.Key{Pressed: true, Key: input.KeyEscape}))
	assert.True(t, c.HandleMouseEventPolicy(ctx, Synchronous, 1, press(input.LeftButton)))
	assert.Equal(t, []wsi.Kind{wsi.KindKey, wsi.KindMouse}, intercepted)
	assert.Len(t, rec.seen(), 1, "swallowed events never reach the processor")

	c.RemoveEventHandler()
	assert.True(t, c.HandleKeyEventPolicy(ctx, Synchronous, 1, &wsi.Key{Pressed: true, Key: input.KeyEscape}))
	assert.Len(t, rec.seen(), 2)
}

func TestEventHandler_DoesNotSeeFlushMarkers(t *testing.T) {
	c, _ := newCoordinator(t, Options{})
	startConsumer(t, c)

	var mu sync.Mutex
	var kinds []wsi.Kind
	c.InstallEventHandler(EventHandlerFunc(func(_ context.Context, e *wsi.Event) bool {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind())
		return false
	}))

	assert.False(t, c.HandleMouseEventPolicy(context.Background(), Synchronous, 1, press(input.LeftButton)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []wsi.Kind{wsi.KindMouse}, kinds)
}

func TestProcessEvents_ExcludeUserInput(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := context.Background()

	m := press(input.LeftButton)
	c.HandleMouseEventPolicy(ctx, Asynchronous, 1, m)
	c.HandleExposeEventPolicy(ctx, Asynchronous, 1, geom.R(0, 0, 10, 10))

	assert.True(t, c.ProcessEvents(ctx, wsi.ExcludeUserInput))
	require.Len(t, rec.seen(), 1)
	assert.IsType(t, &wsi.Expose{}, rec.seen()[0])
	assert.Equal(t, 1, c.Queue().Count())

	assert.False(t, c.ProcessEvents(ctx, wsi.ExcludeUserInput))
	assert.True(t, c.ProcessEvents(ctx, wsi.AllEvents))
	assert.Equal(t, wsi.Payload(m), rec.seen()[1])
}

func TestRun(t *testing.T) {
	t.Run("second consumer is refused", func(t *testing.T) {
		c, _ := newCoordinator(t, Options{})
		startConsumer(t, c)
		require.Eventually(t, func() bool { return c.running.Load() }, time.Second, time.Millisecond)

		assert.ErrorIs(t, c.Run(context.Background()), ErrConsumerRunning)
	})

	t.Run("stops on close", func(t *testing.T) {
		c, _ := newCoordinator(t, Options{})
		done := make(chan error, 1)
		go func() { done <- c.Run(context.Background()) }()

		require.NoError(t, c.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("consumer loop did not stop")
		}
	})

	t.Run("processes async events", func(t *testing.T) {
		c, rec := newCoordinator(t, Options{})
		startConsumer(t, c)

		c.HandleMouseEventPolicy(context.Background(), Asynchronous, 1, press(input.LeftButton))
		assert.Eventually(t, func() bool { return len(rec.seen()) == 1 }, time.Second, time.Millisecond)
	})
}

func TestTimestamps(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c, rec := newCoordinator(t, Options{Now: clock})
	ctx := c.ConsumerContext(context.Background())

	now = now.Add(250 * time.Millisecond)
	c.HandleMouseEventPolicy(ctx, Synchronous, 1, press(input.LeftButton))
	c.HandleMouseEventPolicy(ctx, Synchronous, 1, &wsi.Mouse{
		InputEnvelope: wsi.InputEnvelope{Timestamp: 42},
		Type:          input.MouseMove,
	})

	seen := rec.seen()
	require.Len(t, seen, 2)
	assert.Equal(t, uint64(250), seen[0].(*wsi.Mouse).Timestamp, "zero means now")
	assert.Equal(t, uint64(42), seen[1].(*wsi.Mouse).Timestamp, "explicit timestamps are kept")
}

func TestTimestamp_NeverZero(t *testing.T) {
	now := time.Unix(1000, 0)
	c, _ := newCoordinator(t, Options{Now: func() time.Time { return now }})
	assert.Equal(t, uint64(1), c.Timestamp())
}

func TestBoundary_Normalization(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := c.ConsumerContext(context.Background())

	assert.False(t, c.HandleWheelEventPolicy(ctx, Synchronous, 1, &wsi.Wheel{}), "no delta")
	assert.False(t, c.HandleTouchEventPolicy(ctx, Synchronous, 1, &wsi.Touch{}), "no points")
	assert.Empty(t, rec.seen())

	k := &wsi.Key{Pressed: true, Key: input.KeyTab}
	c.HandleKeyEventPolicy(ctx, Synchronous, 1, k)
	assert.Equal(t, 1, k.Count)

	m := &wsi.Mouse{}
	c.HandleMouseEventPolicy(ctx, Synchronous, 1, m)
	assert.Equal(t, input.MouseMove, m.Type)

	tc := &wsi.Touch{Points: []wsi.TouchPoint{{ID: 1, State: input.StatePressed}}}
	c.HandleTouchEventPolicy(ctx, Synchronous, 1, tc)
	assert.Equal(t, input.TouchBegin, tc.Type)

	assert.True(t, c.HandleTouchCancelEventPolicy(ctx, Synchronous, 1, 0, nil, input.ModNone))
	last := rec.seen()[len(rec.seen())-1].(*wsi.Touch)
	assert.Equal(t, input.TouchCancel, last.Type)
	assert.Empty(t, last.Points)

	assert.True(t, c.HandleTabletProximityEventPolicy(ctx, Synchronous, 0, nil, true))
	assert.Equal(t, wsi.KindTabletEnterProximity, rec.seen()[len(rec.seen())-1].Kind())
}

func TestTouchEventType(t *testing.T) {
	type tc struct {
		states []input.State
		want   input.EventType
	}

	tests := map[string]tc{
		"all pressed":  {states: []input.State{input.StatePressed, input.StatePressed}, want: input.TouchBegin},
		"all released": {states: []input.State{input.StateReleased}, want: input.TouchEnd},
		"mixed":        {states: []input.State{input.StatePressed, input.StateStationary}, want: input.TouchUpdate},
		"moving":       {states: []input.State{input.StateUpdated}, want: input.TouchUpdate},
		"empty":        {want: input.TouchUpdate},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var points []wsi.TouchPoint
			for i, s := range tt.states {
				points = append(points, wsi.TouchPoint{ID: i, State: s})
			}
			assert.Equal(t, tt.want, TouchEventType(points))
		})
	}
}

func TestRegisterDevice(t *testing.T) {
	c, _ := newCoordinator(t, Options{})
	dev := input.NewDevice("ts", 7, input.DeviceTouchScreen)
	c.RegisterDevice(dev)

	got, ok := c.Registry().FindBySystemID(7)
	require.True(t, ok)
	assert.Same(t, dev, got)

	c.UnregisterDevice(context.Background(), dev)
	_, ok = c.Registry().FindBySystemID(7)
	assert.False(t, ok, "the registry forgets the device at once")
	assert.NotNil(t, dev.ActivePoints(), "points are dropped by the consumer")

	c.ProcessEvents(c.ConsumerContext(context.Background()), wsi.AllEvents)
	assert.Nil(t, dev.ActivePoints())
}

func TestUnregisterDevice(t *testing.T) {
	type tc struct {
		consumer bool
		closed   bool
		queued   int
	}
	tests := map[string]tc{
		"on consumer":  {consumer: true, queued: 0},
		"off consumer": {queued: 1},
		"after close":  {closed: true, queued: 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := newCoordinator(t, Options{})
			dev := input.NewDevice("ts", 7, input.DeviceTouchScreen)
			c.RegisterDevice(dev)
			if tt.closed {
				require.NoError(t, c.Close())
			}
			ctx := context.Background()
			if tt.consumer {
				ctx = c.ConsumerContext(ctx)
			}

			c.UnregisterDevice(ctx, dev)
			assert.Equal(t, tt.queued, c.Queue().Count())
			assert.Equal(t, tt.queued > 0, dev.IsPointing())
		})
	}

	t.Run("unknown device", func(t *testing.T) {
		c, _ := newCoordinator(t, Options{})
		dev := input.NewDevice("ts", 7, input.DeviceTouchScreen)
		c.UnregisterDevice(context.Background(), dev)
		assert.Equal(t, 0, c.Queue().Count())
		assert.True(t, dev.IsPointing())
	})
}

func TestUnregisterDevice_AfterQueuedInput(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := context.Background()
	dev := input.NewDevice("ts", 7, input.DeviceTouchScreen, input.WithMaxPoints(10))
	c.RegisterDevice(dev)

	touch := &wsi.Touch{
		InputEnvelope: wsi.InputEnvelope{Timestamp: 10, Device: dev},
		Points:        []wsi.TouchPoint{{ID: 1, State: input.StatePressed}},
	}
	require.True(t, c.HandleTouchEventPolicy(ctx, Asynchronous, 1, touch))
	c.UnregisterDevice(ctx, dev)

	c.ProcessEvents(c.ConsumerContext(ctx), wsi.AllEvents)
	seen := rec.seen()
	require.Len(t, seen, 2)
	assert.Equal(t, wsi.Payload(touch), seen[0])
	assert.Equal(t, wsi.KindDeviceRemoved, seen[1].Kind())
	assert.Nil(t, dev.ActivePoints())
}

// Run with -race: teardown from a producer must not touch the active point
// table the consumer is using.
func TestUnregisterDevice_WhileConsumerRuns(t *testing.T) {
	c := New(registry.New(), ProcessorFunc(func(_ context.Context, e *wsi.Event) {
		tp, ok := e.Payload.(*wsi.Touch)
		if !ok || !tp.Device.IsPointing() {
			return
		}
		for _, p := range tp.Points {
			tp.Device.ActivePoints().PointByID(p.ID)
		}
		e.Accepted = true
	}), Options{})
	t.Cleanup(func() { c.Close() })
	startConsumer(t, c)
	ctx := context.Background()

	var devs []*input.Device
	for round := range 50 {
		dev := input.NewDevice("ts", int64(100+round), input.DeviceTouchScreen, input.WithMaxPoints(10))
		devs = append(devs, dev)
		c.RegisterDevice(dev)
		for i := range 20 {
			c.HandleTouchEventPolicy(ctx, Asynchronous, 1, &wsi.Touch{
				InputEnvelope: wsi.InputEnvelope{Timestamp: uint64(i + 1), Device: dev},
				Points:        []wsi.TouchPoint{{ID: i % 3, State: input.StateUpdated}},
			})
		}
		c.UnregisterDevice(ctx, dev)
	}

	// The round trip orders the devices' teardown before these reads.
	c.Deliver(ctx, Synchronous, wsi.NewEvent(1, &wsi.Expose{}))
	for _, dev := range devs {
		assert.False(t, dev.IsPointing(), dev.Name())
	}
	assert.Empty(t, c.Registry().All())
}

func TestSynchronous_ResultIsTheEventsOwn(t *testing.T) {
	c, rec := newCoordinator(t, Options{})
	ctx := context.Background()

	result := make(chan bool, 1)
	go func() {
		result <- c.HandleMouseEventPolicy(ctx, Synchronous, 1, press(input.LeftButton))
	}()
	// The synchronous press and its flush marker are queued.
	require.Eventually(t, func() bool { return c.Queue().Count() == 2 }, time.Second, time.Millisecond)

	// A rejected event queued behind the marker is drained by the same pass.
	require.True(t, c.HandleMouseEventPolicy(ctx, Asynchronous, 1, press(input.RightButton)))
	c.ProcessEvents(c.ConsumerContext(ctx), wsi.AllEvents)

	select {
	case got := <-result:
		assert.True(t, got, "the left press was accepted")
	case <-time.After(time.Second):
		t.Fatal("synchronous delivery did not return")
	}
	assert.Len(t, rec.seen(), 2)
	assert.False(t, c.lastAccepted.Load(), "the last processed event was the rejected one")
}
