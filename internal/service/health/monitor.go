package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger is anything that can tell whether the solver API answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor polls the solver API and tracks whether it is reachable.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	connected bool
	checked   bool
	onChange  []func(bool)

	stop chan struct{}
	once sync.Once
	mu   sync.RWMutex
}

const DefaultInterval = 5 * time.Second

// NewMonitor polls every interval. A non-positive interval falls back to
// DefaultInterval.
func NewMonitor(p Pinger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := interval
	if timeout > DefaultInterval {
		timeout = DefaultInterval
	}
	return &Monitor{
		pinger:   p,
		interval: interval,
		timeout:  timeout,
		stop:     make(chan struct{}),
	}
}

// OnChange registers fn to be called whenever connectivity flips.
// Must be called before Start.
func (m *Monitor) OnChange(fn func(connected bool)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Start runs one check immediately and then one per interval.
func (m *Monitor) Start() {
	go m.Check()

	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Check()
			case <-m.stop:
				return
			}
		}
	}()
	log.Info().Str("component", "health").Dur("interval", m.interval).Msg("solver health monitor started")
}

func (m *Monitor) Stop() {
	m.once.Do(func() { close(m.stop) })
}

// Check pings once and returns the resulting connectivity.
func (m *Monitor) Check() bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	connected := err == nil

	m.mu.Lock()
	changed := !m.checked || m.connected != connected
	m.connected = connected
	m.checked = true
	listeners := append([]func(bool){}, m.onChange...)
	m.mu.Unlock()

	if changed {
		if connected {
			log.Info().Str("component", "health").Msg("solver api connected")
		} else {
			log.Warn().Str("component", "health").Err(err).Msg("solver api disconnected")
		}
		for _, fn := range listeners {
			fn(connected)
		}
	}
	return connected
}

func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}
