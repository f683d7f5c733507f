package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	mu      sync.Mutex
	got     [][]byte
	sendErr error
	block   bool
	closed  atomic.Int32
}

func (f *fakeSub) Send(ctx context.Context, p []byte) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.got = append(f.got, append([]byte(nil), p...))
	f.mu.Unlock()
	return nil
}

func (f *fakeSub) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeSub) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.got...)
}

func TestHub_ConnectDisconnect(t *testing.T) {
	h := New(Options{})
	s := &fakeSub{}

	id := h.Connect(s)
	require.NotEmpty(t, id)
	require.Equal(t, 1, h.Count())

	require.True(t, h.Disconnect(id))
	require.Equal(t, 0, h.Count())
	require.Equal(t, int32(1), s.closed.Load())

	// second disconnect is a no-op
	require.False(t, h.Disconnect(id))
	require.Equal(t, int32(1), s.closed.Load())
}

func TestHub_UniqueIDs(t *testing.T) {
	h := New(Options{})
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := h.Connect(&fakeSub{})
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	require.Equal(t, 50, h.Count())
}

func TestHub_BroadcastDeliversToAll(t *testing.T) {
	h := New(Options{})
	subs := make([]*fakeSub, 5)
	for i := range subs {
		subs[i] = &fakeSub{}
		h.Connect(subs[i])
	}

	res := h.Broadcast(context.Background(), []byte(`[]`))
	require.Equal(t, Result{Queued: 5}, res)
	for _, s := range subs {
		require.Eventually(t, func() bool { return len(s.received()) == 1 }, time.Second, 5*time.Millisecond)
		require.Equal(t, [][]byte{[]byte(`[]`)}, s.received())
	}
}

func TestHub_BroadcastKeepsOrderPerSubscriber(t *testing.T) {
	h := New(Options{QueueSize: 8})
	s := &fakeSub{}
	h.Connect(s)

	for _, p := range []string{"1", "2", "3"} {
		require.Equal(t, Result{Queued: 1}, h.Broadcast(context.Background(), []byte(p)))
	}
	require.Eventually(t, func() bool { return len(s.received()) == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, [][]byte{[]byte("1"), []byte("2"), []byte("3")}, s.received())
}

func TestHub_BroadcastNoSubscribers(t *testing.T) {
	h := New(Options{})
	require.Equal(t, Result{}, h.Broadcast(context.Background(), []byte("x")))
}

func TestHub_FailedSubscriberIsRemoved(t *testing.T) {
	h := New(Options{})
	good := &fakeSub{}
	bad := &fakeSub{sendErr: errors.New("broken pipe")}
	h.Connect(good)
	h.Connect(bad)

	res := h.Broadcast(context.Background(), []byte("a"))
	require.Equal(t, Result{Queued: 2}, res)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), bad.closed.Load())

	res = h.Broadcast(context.Background(), []byte("b"))
	require.Equal(t, Result{Queued: 1}, res)
	require.Eventually(t, func() bool { return len(good.received()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestHub_SlowSubscriberTimesOut(t *testing.T) {
	h := New(Options{SendTimeout: 50 * time.Millisecond})
	fast := &fakeSub{}
	slow := &fakeSub{block: true}
	h.Connect(fast)
	h.Connect(slow)

	require.Equal(t, Result{Queued: 2}, h.Broadcast(context.Background(), []byte("p")))
	require.Eventually(t, func() bool { return h.Count() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), slow.closed.Load())
	require.Eventually(t, func() bool { return len(fast.received()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_StalledSubscribersDoNotDelayOthers(t *testing.T) {
	h := New(Options{SendTimeout: 500 * time.Millisecond})
	defer h.Close()
	for i := 0; i < 64; i++ {
		h.Connect(&fakeSub{block: true})
	}
	healthy := &fakeSub{}
	h.Connect(healthy)

	start := time.Now()
	res := h.Broadcast(context.Background(), []byte("tick"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, Result{Queued: 65}, res)

	require.Eventually(t, func() bool { return len(healthy.received()) == 1 }, 200*time.Millisecond, 2*time.Millisecond)
	require.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestHub_FullMailboxEvicts(t *testing.T) {
	h := New(Options{SendTimeout: 5 * time.Second, QueueSize: 1})
	defer h.Close()
	fast := &fakeSub{}
	stuck := &fakeSub{block: true}
	h.Connect(fast)
	h.Connect(stuck)

	// the stuck writer holds at most one payload and the mailbox one more
	var evicted int
	for i := 0; i < 3; i++ {
		evicted += h.Broadcast(context.Background(), []byte("p")).Evicted
		require.Eventually(t, func() bool { return len(fast.received()) == i+1 }, time.Second, 2*time.Millisecond)
	}
	require.Equal(t, 1, evicted)
	require.Equal(t, 1, h.Count())
	require.Equal(t, int32(1), stuck.closed.Load())
}

// leavingSub drops itself from the hub while its own send is in progress.
type leavingSub struct {
	fakeSub
	h  *Hub
	id string
}

func (l *leavingSub) Send(ctx context.Context, p []byte) error {
	l.h.Disconnect(l.id)
	return l.fakeSub.Send(ctx, p)
}

func TestHub_DisconnectDuringSendOthersStillReceive(t *testing.T) {
	h := New(Options{})
	others := make([]*fakeSub, 5)
	for i := range others {
		others[i] = &fakeSub{}
		h.Connect(others[i])
	}
	leaver := &leavingSub{h: h}
	leaver.id = h.Connect(leaver)
	require.Equal(t, 6, h.Count())

	require.Equal(t, Result{Queued: 6}, h.Broadcast(context.Background(), []byte("cycle")))

	for _, s := range others {
		require.Eventually(t, func() bool { return len(s.received()) == 1 }, time.Second, 5*time.Millisecond)
	}
	require.Eventually(t, func() bool { return leaver.closed.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 5, h.Count())
}

func TestHub_ConnectDuringBroadcast(t *testing.T) {
	h := New(Options{QueueSize: 64})
	defer h.Close()
	for i := 0; i < 20; i++ {
		h.Connect(&fakeSub{})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			h.Broadcast(context.Background(), []byte("tick"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			id := h.Connect(&fakeSub{})
			h.Disconnect(id)
		}
	}()
	wg.Wait()
	require.Equal(t, 20, h.Count())
}

func TestHub_Close(t *testing.T) {
	h := New(Options{})
	a, b := &fakeSub{}, &fakeSub{}
	h.Connect(a)
	h.Connect(b)

	h.Close()
	require.Equal(t, 0, h.Count())
	require.Equal(t, int32(1), a.closed.Load())
	require.Equal(t, int32(1), b.closed.Load())

	late := &fakeSub{}
	require.Empty(t, h.Connect(late))
	require.Equal(t, int32(1), late.closed.Load())
}
