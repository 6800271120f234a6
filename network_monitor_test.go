package edunet

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkMonitorNotifiesOnTransitionsOnly(t *testing.T) {
	m := NewNetworkMonitor(true)

	var mu sync.Mutex
	var events []NetworkEvent
	m.Subscribe(func(e NetworkEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	m.SetOnline(true)
	m.SetOnline(false)
	m.SetOnline(false)
	m.SetOnline(true)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []NetworkEvent{WentOffline, WentOnline}, events)
	assert.True(t, m.IsOnline())
}

func TestNetworkMonitorUnsubscribe(t *testing.T) {
	m := NewNetworkMonitor(true)

	var a, b atomic.Int32
	unsubA := m.Subscribe(func(NetworkEvent) { a.Add(1) })
	m.Subscribe(func(NetworkEvent) { b.Add(1) })

	m.SetOnline(false)
	unsubA()
	unsubA()
	m.SetOnline(true)

	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(2), b.Load())
}

func TestNetworkMonitorSubscriberMayCallBack(t *testing.T) {
	m := NewNetworkMonitor(true)

	var seen atomic.Bool
	m.Subscribe(func(NetworkEvent) {
		seen.Store(m.IsOnline())
	})
	m.SetOnline(false)

	assert.False(t, seen.Load(), "subscriber should observe the new state")
}

func TestNetworkEventString(t *testing.T) {
	assert.Equal(t, "online", WentOnline.String())
	assert.Equal(t, "offline", WentOffline.String())
}

func TestNetworkMonitorCheckNow(t *testing.T) {
	var reachable atomic.Bool
	m := NewNetworkMonitor(true, WithProbe(func(context.Context) bool { return reachable.Load() }))

	assert.False(t, m.CheckNow(context.Background()))
	assert.False(t, m.IsOnline())

	reachable.Store(true)
	assert.True(t, m.CheckNow(context.Background()))
	assert.True(t, m.IsOnline())
}

func TestNetworkMonitorCheckNowWithoutProbe(t *testing.T) {
	m := NewNetworkMonitor(false)
	assert.False(t, m.CheckNow(context.Background()))
}

func TestNetworkMonitorCheckNowCoalesces(t *testing.T) {
	var probes atomic.Int32
	release := make(chan struct{})
	m := NewNetworkMonitor(false, WithProbe(func(context.Context) bool {
		probes.Add(1)
		<-release
		return true
	}))

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.CheckNow(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return probes.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, probes.Load(), int32(5))
	for i, r := range results {
		assert.True(t, r, "caller %d", i)
	}
}

func TestNetworkMonitorCheckNowContextDone(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := NewNetworkMonitor(true, WithProbe(func(context.Context) bool {
		<-release
		return false
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.True(t, m.CheckNow(ctx), "a canceled check should report the last known state")
}

func TestNetworkMonitorStartProbe(t *testing.T) {
	m := NewNetworkMonitor(true)

	var online atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	done := m.StartProbe(ctx, 5*time.Millisecond, func(context.Context) bool { return online.Load() })

	require.Eventually(t, func() bool { return !m.IsOnline() }, time.Second, time.Millisecond)
	online.Store(true)
	require.Eventually(t, m.IsOnline, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("probe loop did not stop")
	}
}

func TestNetworkMonitorStartProbeNonPositiveInterval(t *testing.T) {
	m := NewNetworkMonitor(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := m.StartProbe(ctx, 0, func(context.Context) bool { return false })
	require.Eventually(t, func() bool { return !m.IsOnline() }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("probe loop did not stop")
	}
}

func TestDialProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	probe := DialProbe(addr, time.Second)
	assert.True(t, probe(context.Background()))

	require.NoError(t, ln.Close())
	assert.False(t, probe(context.Background()))
}

func TestAlwaysOnline(t *testing.T) {
	var provider NetworkStatusProvider = AlwaysOnline{}
	assert.True(t, provider.IsOnline())
	unsubscribe := provider.Subscribe(func(NetworkEvent) { t.Error("AlwaysOnline should never emit") })
	unsubscribe()
}

func TestNetworkMonitorMetrics(t *testing.T) {
	mc := NewMetricsCollector()
	m := NewNetworkMonitor(false, WithMonitorMetrics(mc), WithMonitorLogger(nil))
	assert.Equal(t, float64(0), testutil.ToFloat64(mc.networkOnline))

	m.SetOnline(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.networkOnline))
}

func TestNetworkMonitorDrivesClient(t *testing.T) {
	var calls atomic.Int32
	transport := TransportFunc(func(context.Context, *RequestDescriptor) (*Response, error) {
		calls.Add(1)
		return &Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	})

	var reachable atomic.Bool
	m := NewNetworkMonitor(true, WithProbe(func(context.Context) bool { return reachable.Load() }))
	client := New(WithTransport(transport), WithNetworkStatus(m))

	m.CheckNow(context.Background())
	_, err := client.Get(context.Background(), "/ping")
	assert.ErrorIs(t, err, ErrNoConnection)

	reachable.Store(true)
	m.CheckNow(context.Background())
	_, err = client.Get(context.Background(), "/ping")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
