// Package paywall gates continued playback on the viewer's entitlement.
//
// A Monitor watches the position reports of one playback session. The first
// report at or past the preview threshold latches the gate and starts a single
// asynchronous entitlement check. An unentitled viewer (or a failed check) gets
// the player paused and the paywall prompt shown; an entitled viewer keeps
// watching and is never checked again in that session.
package paywall

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
	"github.com/fluxshorts/fluxshorts/src/internal/log"
	"github.com/fluxshorts/fluxshorts/src/internal/metrics"
	"github.com/fluxshorts/fluxshorts/src/internal/ports"
)

type Option func(*Monitor)

// WithThreshold overrides the free-preview length in seconds.
func WithThreshold(seconds float64) Option {
	return func(m *Monitor) {
		m.threshold = seconds
	}
}

// WithCheckTimeout bounds a single entitlement check. Zero means no bound
// beyond the monitor's own lifetime.
func WithCheckTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.checkTimeout = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

type Monitor struct {
	player       ports.Player
	checker      ports.EntitlementChecker
	threshold    float64
	checkTimeout time.Duration
	logger       zerolog.Logger

	// ctx lives as long as the session; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	position  float64
	hasPos    bool
	triggered bool
	visible   bool
	state     domain.GateState
	closed    bool
}

func NewMonitor(player ports.Player, checker ports.EntitlementChecker, opts ...Option) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		player:    player,
		checker:   checker,
		threshold: domain.DefaultPreviewSeconds,
		logger:    log.WithComponent("paywall"),
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.GateWatching,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnPositionReport records the latest player position and trips the gate on
// the first report at or past the threshold. It never blocks on the
// entitlement check.
func (m *Monitor) OnPositionReport(report domain.PositionReport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	known := report.Known && !math.IsNaN(report.Seconds)
	m.position, m.hasPos = report.Seconds, known

	if m.triggered || !known || report.Seconds < m.threshold {
		return
	}

	// Latch before the check starts so later reports cannot start another one.
	m.triggered = true
	m.state = domain.GateCheckingEntitlement
	m.logger.Info().
		Float64("position", report.Seconds).
		Float64("threshold", m.threshold).
		Msg("preview threshold reached, checking entitlement")

	m.wg.Add(1)
	go m.enforce()
}

// Run feeds reports from a player stream into the monitor until the stream
// ends or ctx is done.
func (m *Monitor) Run(ctx context.Context, reports <-chan domain.PositionReport) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-reports:
			if !ok {
				return
			}
			m.OnPositionReport(r)
		}
	}
}

func (m *Monitor) enforce() {
	defer m.wg.Done()

	ctx := m.ctx
	if m.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.checkTimeout)
		defer cancel()
	}

	paid, err := m.checker.CheckEntitlement(ctx)
	metrics.RecordEntitlementCheck(paid, err)
	if err != nil {
		// Fail closed: an error is indistinguishable from "not paid".
		m.logger.Warn().Err(err).Msg("entitlement check failed, treating viewer as unentitled")
		paid = false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Debug().Bool("paid", paid).Msg("session closed before entitlement resolved, discarding")
		metrics.RecordGate(metrics.GateDiscarded)
		return
	}

	if paid {
		m.state = domain.GateWatchingPastGate
		metrics.RecordGate(metrics.GateEntitled)
		return
	}

	if err := m.player.Pause(m.ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to pause player for paywall")
		metrics.PlayerPauseFailuresTotal.Inc()
	}
	m.visible = true
	m.state = domain.GatePausedPromptShown
	metrics.RecordGate(metrics.GatePaywalled)
	m.logger.Info().Msg("paywall shown")
}

// DismissPaywall hides the prompt. The latch stays set and playback is not
// resumed. It reports whether the prompt was visible.
func (m *Monitor) DismissPaywall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.visible {
		return false
	}
	m.visible = false
	return true
}

// Snapshot returns the current gate state.
func (m *Monitor) Snapshot() domain.GateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := domain.GateSnapshot{
		State:            m.state,
		ThresholdSeconds: m.threshold,
		PaywallTriggered: m.triggered,
		PaywallVisible:   m.visible,
	}
	if m.hasPos {
		pos := m.position
		snap.PositionSeconds = &pos
	}
	return snap
}

func (m *Monitor) Triggered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggered
}

func (m *Monitor) PaywallVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Close tears the monitor down. A check still in flight is cancelled and its
// result discarded. Close is idempotent.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
}

// Wait blocks until any started entitlement check has resolved.
func (m *Monitor) Wait() {
	m.wg.Wait()
}
