package edunet

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultProbeInterval is used by StartProbe when no positive interval is given.
const DefaultProbeInterval = 15 * time.Second

// NetworkEvent is a connectivity transition.
type NetworkEvent int

const (
	// WentOnline is emitted when connectivity returns.
	WentOnline NetworkEvent = iota
	// WentOffline is emitted when connectivity is lost.
	WentOffline
)

// String returns "online" or "offline".
func (e NetworkEvent) String() string {
	if e == WentOnline {
		return "online"
	}
	return "offline"
}

// NetworkStatusProvider is the pre-flight connectivity source used by Client.
type NetworkStatusProvider interface {
	IsOnline() bool
	Subscribe(fn func(NetworkEvent)) (unsubscribe func())
}

// AlwaysOnline is a provider for contexts without a connectivity signal,
// such as servers.
type AlwaysOnline struct{}

// IsOnline always reports true.
func (AlwaysOnline) IsOnline() bool { return true }

// Subscribe never emits.
func (AlwaysOnline) Subscribe(func(NetworkEvent)) func() { return func() {} }

// ProbeFunc reports whether the network is reachable.
type ProbeFunc func(ctx context.Context) bool

// DialProbe returns a probe that opens a TCP connection to address.
func DialProbe(address string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context) bool {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// MonitorOption configures a NetworkMonitor.
type MonitorOption func(*NetworkMonitor)

// WithMonitorLogger logs connectivity transitions.
func WithMonitorLogger(logger Logger) MonitorOption {
	return func(m *NetworkMonitor) {
		m.logger = loggerOrNop(logger)
	}
}

// WithMonitorMetrics reports the online state on the network gauge.
func WithMonitorMetrics(mc *MetricsCollector) MonitorOption {
	return func(m *NetworkMonitor) {
		m.metrics = mc
	}
}

// WithProbe sets the probe used by CheckNow.
func WithProbe(probe ProbeFunc) MonitorOption {
	return func(m *NetworkMonitor) {
		m.probe = probe
	}
}

type subscriber struct {
	id uint64
	fn func(NetworkEvent)
}

// NetworkMonitor holds a connectivity flag fed either manually through
// SetOnline (platform reachability callbacks) or by a periodic probe.
// Subscribers are notified only on transitions.
type NetworkMonitor struct {
	mu     sync.Mutex
	online bool
	subs   []subscriber
	nextID uint64

	// notifyMu serializes delivery so subscribers observe transitions in order.
	notifyMu sync.Mutex

	probe   ProbeFunc
	probes  singleflight.Group
	logger  Logger
	metrics *MetricsCollector
}

// NewNetworkMonitor creates a monitor starting in the given state.
func NewNetworkMonitor(initial bool, opts ...MonitorOption) *NetworkMonitor {
	m := &NetworkMonitor{
		online: initial,
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics.RecordNetworkState(initial)
	return m
}

// IsOnline reports the last known connectivity state.
func (m *NetworkMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for transitions. The returned function removes it
// and is safe to call more than once.
func (m *NetworkMonitor) Subscribe(fn func(NetworkEvent)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// SetOnline records the connectivity state, notifying subscribers when it
// changes. Subscribers run on the caller's goroutine, outside the monitor's
// state lock.
func (m *NetworkMonitor) SetOnline(online bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.metrics.RecordNetworkState(online)
	event := WentOffline
	if online {
		event = WentOnline
		m.logger.Info("network back online")
	} else {
		m.logger.Warn("network offline")
	}

	for _, s := range subs {
		s.fn(event)
	}
}

// CheckNow runs the probe and records its result. Concurrent calls share
// one probe. Without a probe it returns the current state.
func (m *NetworkMonitor) CheckNow(ctx context.Context) bool {
	m.mu.Lock()
	probe := m.probe
	m.mu.Unlock()
	if probe == nil {
		return m.IsOnline()
	}

	ch := m.probes.DoChan("probe", func() (any, error) {
		online := probe(context.WithoutCancel(ctx))
		m.SetOnline(online)
		return online, nil
	})

	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return m.IsOnline()
	}
}

// StartProbe installs probe and runs it every interval until ctx is done.
// A non-positive interval means DefaultProbeInterval. The returned channel
// is closed when the loop exits.
func (m *NetworkMonitor) StartProbe(ctx context.Context, interval time.Duration, probe ProbeFunc) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if probe != nil {
		m.mu.Lock()
		m.probe = probe
		m.mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.CheckNow(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckNow(ctx)
			}
		}
	}()
	return done
}
