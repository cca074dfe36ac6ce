package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/leveler/internal/protocol"
)

const waitFor = 2 * time.Second

// fakeTask is fired by hand from the test.
type fakeTask struct {
	kind      string
	d         time.Duration
	c         chan time.Time
	cancelled chan struct{}
	once      sync.Once
}

func (t *fakeTask) C() <-chan time.Time { return t.c }
func (t *fakeTask) Cancel()             { t.once.Do(func() { close(t.cancelled) }) }

func (t *fakeTask) fire() {
	select {
	case t.c <- time.Now():
	default:
	}
}

func (t *fakeTask) isCancelled() bool {
	select {
	case <-t.cancelled:
		return true
	default:
		return false
	}
}

type fakeScheduler struct {
	scheduled chan *fakeTask
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(chan *fakeTask, 16)}
}

func (s *fakeScheduler) add(kind string, d time.Duration) ScheduledTask {
	t := &fakeTask{kind: kind, d: d, c: make(chan time.Time, 1), cancelled: make(chan struct{})}
	s.scheduled <- t
	return t
}

func (s *fakeScheduler) Every(d time.Duration) ScheduledTask { return s.add("every", d) }
func (s *fakeScheduler) After(d time.Duration) ScheduledTask { return s.add("after", d) }

func (s *fakeScheduler) next(t *testing.T) *fakeTask {
	t.Helper()
	select {
	case task := <-s.scheduled:
		return task
	case <-time.After(waitFor):
		t.Fatal("no task scheduled")
		return nil
	}
}

type fakeConn struct {
	events chan Event
	sent   chan string
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan Event, 16),
		sent:   make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Events() <-chan Event { return c.events }
func (c *fakeConn) Send(text string) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	default:
	}
	c.sent <- text
	return nil
}
func (c *fakeConn) Close() error { c.once.Do(func() { close(c.closed) }); return nil }

func (c *fakeConn) nextSent(t *testing.T) string {
	t.Helper()
	select {
	case s := <-c.sent:
		return s
	case <-time.After(waitFor):
		t.Fatal("nothing sent")
		return ""
	}
}

type fakeDialer struct {
	dialed chan *fakeConn
}

func newFakeDialer() *fakeDialer { return &fakeDialer{dialed: make(chan *fakeConn, 16)} }

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	c := newFakeConn()
	d.dialed <- c
	return c, nil
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.dialed:
		return c
	case <-time.After(waitFor):
		t.Fatal("no dial")
		return nil
	}
}

type harness struct {
	m        *Manager
	sched    *fakeScheduler
	dialer   *fakeDialer
	received chan []byte
	cancel   context.CancelFunc
	done     chan error
}

func newHarness(t *testing.T, metrics *Metrics) *harness {
	t.Helper()
	h := &harness{
		sched:    newFakeScheduler(),
		dialer:   newFakeDialer(),
		received: make(chan []byte, 64),
		done:     make(chan error, 1),
	}
	h.m = NewManager(Options{
		URL:       "ws://device.local/ws",
		Dialer:    h.dialer,
		Scheduler: h.sched,
		Handler:   HandlerFunc(func(b []byte) { h.received <- b }),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   metrics,
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) open(t *testing.T) (*fakeConn, *fakeTask) {
	t.Helper()
	c := h.dialer.next(t)
	c.events <- Event{Kind: EventOpened}
	poll := h.sched.next(t)
	require.Equal(t, "every", poll.kind)
	return c, poll
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(Options{URL: "ws://x/ws", Dialer: newFakeDialer()})
	assert.Equal(t, Disconnected, m.State())

	err := m.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestManager_ConnectOpenAndPoll(t *testing.T) {
	h := newHarness(t, nil)

	c := h.dialer.next(t)
	assert.Eventually(t, func() bool { return h.m.State() == Connecting }, waitFor, time.Millisecond)

	c.events <- Event{Kind: EventOpened}
	poll := h.sched.next(t)
	assert.Equal(t, "every", poll.kind)
	assert.Equal(t, DefaultPollInterval, poll.d)
	assert.Equal(t, Open, h.m.State())

	poll.fire()
	assert.Equal(t, protocol.PollRequest, c.nextSent(t))
	poll.fire()
	assert.Equal(t, protocol.PollRequest, c.nextSent(t))
}

func TestManager_RoutesMessagesInOrder(t *testing.T) {
	h := newHarness(t, nil)
	c, _ := h.open(t)

	for _, msg := range []string{"a", "b", "c"} {
		c.events <- Event{Kind: EventMessage, Data: []byte(msg)}
	}
	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-h.received:
			assert.Equal(t, want, string(got))
		case <-time.After(waitFor):
			t.Fatal("message not routed")
		}
	}
}

func TestManager_CloseCancelsPollAndSchedulesOneReconnect(t *testing.T) {
	h := newHarness(t, nil)
	c, poll := h.open(t)

	c.events <- Event{Kind: EventClosed, Err: errors.New("reset by peer")}

	reconnect := h.sched.next(t)
	assert.Equal(t, "after", reconnect.kind)
	assert.Equal(t, DefaultReconnectDelay, reconnect.d)
	assert.True(t, poll.isCancelled(), "poll task must be cancelled when leaving Open")
	assert.Equal(t, Disconnected, h.m.State())
	select {
	case <-c.closed:
	default:
		t.Fatal("old connection not closed")
	}

	// A tick that was already in flight must not reach any connection.
	poll.fire()
	assert.Never(t, func() bool { return len(c.sent) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	// Exactly one reconnect is scheduled.
	select {
	case extra := <-h.sched.scheduled:
		t.Fatalf("unexpected extra task %s", extra.kind)
	default:
	}

	reconnect.fire()
	c2 := h.dialer.next(t)
	assert.Eventually(t, func() bool { return h.m.State() == Connecting }, waitFor, time.Millisecond)

	// Still no polling before the new connection opens.
	poll.fire()
	assert.Never(t, func() bool { return len(c2.sent) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	c2.events <- Event{Kind: EventOpened}
	poll2 := h.sched.next(t)
	poll2.fire()
	assert.Equal(t, protocol.PollRequest, c2.nextSent(t))
	assert.Empty(t, c.sent)
}

func TestManager_ErrorWhileConnecting(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dialer.next(t)

	c.events <- Event{Kind: EventClosed, Err: errors.New("connection refused")}
	reconnect := h.sched.next(t)
	assert.Equal(t, "after", reconnect.kind)
	assert.Equal(t, Disconnected, h.m.State())

	reconnect.fire()
	h.dialer.next(t)
}

func TestManager_IgnoresEventsFromOldConnection(t *testing.T) {
	h := newHarness(t, nil)
	c, _ := h.open(t)

	c.events <- Event{Kind: EventClosed}
	reconnect := h.sched.next(t)

	// Late event on the dropped connection.
	c.events <- Event{Kind: EventMessage, Data: []byte("stale")}
	assert.Never(t, func() bool { return len(h.received) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	reconnect.fire()
	h.dialer.next(t)
}

func TestManager_Send(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dialer.next(t)

	err := h.m.Send(context.Background(), "early")
	assert.ErrorIs(t, err, ErrNotOpen)

	c.events <- Event{Kind: EventOpened}
	h.sched.next(t)

	require.NoError(t, h.m.Send(context.Background(), `{"zeroAngles":"false"}`))
	assert.Equal(t, `{"zeroAngles":"false"}`, c.nextSent(t))

	c.events <- Event{Kind: EventClosed}
	h.sched.next(t)
	assert.ErrorIs(t, h.m.Send(context.Background(), "late"), ErrNotOpen)
}

func TestManager_StopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	c, poll := h.open(t)

	h.cancel()
	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err // for cleanup
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, Disconnected, h.m.State())
	assert.True(t, poll.isCancelled())
	select {
	case <-c.closed:
	default:
		t.Fatal("connection not closed on shutdown")
	}

	err := h.m.Run(context.Background())
	assert.Error(t, err)
}

func TestManager_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	h := newHarness(t, metrics)

	c, poll := h.open(t)
	poll.fire()
	c.nextSent(t)
	c.events <- Event{Kind: EventMessage, Data: []byte("{}")}
	<-h.received
	c.events <- Event{Kind: EventClosed}
	h.sched.next(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.polls))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messages))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reconnects))
	assert.Equal(t, float64(Disconnected), testutil.ToFloat64(metrics.state))
}

func TestDeviceURL(t *testing.T) {
	assert.Equal(t, "ws://192.168.4.1/ws", DeviceURL("192.168.4.1", "/ws"))
	assert.Equal(t, "ws://leveler.local:8080/ws", DeviceURL("leveler.local:8080", ""))
	assert.Equal(t, "ws://host/socket", DeviceURL("host", "socket"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "open", Open.String())
}
