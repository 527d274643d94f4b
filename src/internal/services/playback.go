package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
	"github.com/fluxshorts/fluxshorts/src/internal/log"
	"github.com/fluxshorts/fluxshorts/src/internal/metrics"
	"github.com/fluxshorts/fluxshorts/src/internal/ports"
	"github.com/fluxshorts/fluxshorts/src/internal/services/paywall"
)

const progressSaveInterval = 10 * time.Second

// PlaybackSession is one visit to a video screen. Nothing carries over
// between sessions: a new visit starts with a fresh, untriggered gate.
type PlaybackSession struct {
	ID        string
	ViewerID  string
	MovieID   string
	CreatedAt time.Time

	player  *RemotePlayer
	monitor *paywall.Monitor

	mu            sync.Mutex
	lastTouched   time.Time
	lastSavedAt   time.Time
	lastSavedSecs float64
}

// SessionView is what the client sees after each interaction.
type SessionView struct {
	ID      string `json:"id"`
	MovieID string `json:"movieId"`
	domain.GateSnapshot
	Playing  bool                   `json:"playing"`
	Commands []domain.PlayerCommand `json:"commands"`
}

type PlaybackConfig struct {
	Threshold    float64
	CheckTimeout time.Duration
}

type PlaybackService struct {
	entitlements ports.EntitlementProvider
	progress     ports.ProgressRepository // optional
	navigator    ports.Navigator
	cfg          PlaybackConfig
	logger       zerolog.Logger
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*PlaybackSession
}

func NewPlaybackService(
	entitlements ports.EntitlementProvider,
	progress ports.ProgressRepository,
	navigator ports.Navigator,
	cfg PlaybackConfig,
) *PlaybackService {
	if cfg.Threshold <= 0 {
		cfg.Threshold = domain.DefaultPreviewSeconds
	}
	return &PlaybackService{
		entitlements: entitlements,
		progress:     progress,
		navigator:    navigator,
		cfg:          cfg,
		logger:       log.WithComponent("sessions"),
		now:          time.Now,
		sessions:     make(map[string]*PlaybackSession),
	}
}

// Open starts a session for a viewer entering the video screen. viewerID is
// empty for anonymous viewers, who are never entitled.
func (s *PlaybackService) Open(ctx context.Context, viewerID, movieID string) (*SessionView, error) {
	if movieID == "" {
		return nil, fmt.Errorf("movie id required: %w", domain.ErrInvalidInput)
	}

	now := s.now()
	id := uuid.NewString()
	player := NewRemotePlayer()
	logger := s.logger.With().Str("session_id", id).Str("movie_id", movieID).Logger()

	sess := &PlaybackSession{
		ID:          id,
		ViewerID:    viewerID,
		MovieID:     movieID,
		CreatedAt:   now,
		player:      player,
		lastTouched: now,
		monitor: paywall.NewMonitor(
			player,
			s.entitlements.CheckerFor(viewerID),
			paywall.WithThreshold(s.cfg.Threshold),
			paywall.WithCheckTimeout(s.cfg.CheckTimeout),
			paywall.WithLogger(log.WithComponent("paywall").With().Str("session_id", id).Logger()),
		),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.PlaybackSessionsActive.Inc()

	logger.Info().Bool("anonymous", viewerID == "").Msg("playback session opened")
	return s.view(sess, false), nil
}

func (s *PlaybackService) lookup(id string) (*PlaybackSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	sess.mu.Lock()
	sess.lastTouched = s.now()
	sess.mu.Unlock()
	return sess, nil
}

// Get returns the session state without consuming queued player commands.
func (s *PlaybackService) Get(id string) (*SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.view(sess, false), nil
}

// Play and Replay forward viewer actions to the player.
func (s *PlaybackService) Play(ctx context.Context, id string) (*SessionView, error) {
	return s.command(ctx, id, func(p *RemotePlayer) error { return p.Play(ctx) })
}

func (s *PlaybackService) Replay(ctx context.Context, id string) (*SessionView, error) {
	return s.command(ctx, id, func(p *RemotePlayer) error { return p.Replay(ctx) })
}

func (s *PlaybackService) command(ctx context.Context, id string, fn func(*RemotePlayer) error) (*SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if sess.monitor.PaywallVisible() {
		// The prompt overlays the player; it has to be dismissed or accepted first.
		return s.view(sess, false), nil
	}
	if err := fn(sess.player); err != nil {
		return nil, err
	}
	return s.view(sess, false), nil
}

// Report feeds a player time update into the session's gate and returns the
// state along with any player commands queued since the last report.
func (s *PlaybackService) Report(ctx context.Context, id string, report domain.PositionReport) (*SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.monitor.OnPositionReport(report)
	s.saveProgress(ctx, sess, report)

	return s.view(sess, true), nil
}

func (s *PlaybackService) saveProgress(ctx context.Context, sess *PlaybackSession, report domain.PositionReport) {
	if s.progress == nil || sess.ViewerID == "" || !report.Known {
		return
	}

	now := s.now()
	sess.mu.Lock()
	due := sess.lastSavedAt.IsZero() || now.Sub(sess.lastSavedAt) >= progressSaveInterval
	if !due || report.Seconds == sess.lastSavedSecs {
		sess.mu.Unlock()
		return
	}
	sess.lastSavedAt = now
	sess.lastSavedSecs = report.Seconds
	sess.mu.Unlock()

	p := &domain.WatchProgress{
		UserID:    sess.ViewerID,
		MovieID:   sess.MovieID,
		Position:  report.Seconds,
		UpdatedAt: now,
	}
	if err := s.progress.SaveProgress(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to save watch progress")
	}
}

// Dismiss hides the paywall prompt. Playback stays paused.
func (s *PlaybackService) Dismiss(id string) (*SessionView, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	sess.monitor.DismissPaywall()
	return s.view(sess, false), nil
}

// Accept hides the prompt and returns the route of the upgrade flow.
func (s *PlaybackService) Accept(ctx context.Context, id string) (string, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	sess.monitor.DismissPaywall()

	route, err := s.navigator.OpenUpgrade(ctx)
	if err != nil {
		return "", fmt.Errorf("open upgrade flow: %w", err)
	}
	s.logger.Info().Str("session_id", id).Str("route", route).Msg("viewer accepted paywall")
	return route, nil
}

// Close ends a session when the viewer leaves the screen. The player is
// paused and released before the gate is torn down, so a pending
// entitlement check resolves into nothing.
func (s *PlaybackService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	s.teardown(ctx, sess)
	return nil
}

func (s *PlaybackService) teardown(ctx context.Context, sess *PlaybackSession) {
	if err := sess.player.Pause(ctx); err != nil {
		s.logger.Debug().Err(err).Str("session_id", sess.ID).Msg("pause on teardown failed")
	}
	sess.player.Release()
	sess.monitor.Close()
	metrics.PlaybackSessionsActive.Dec()

	s.logger.Info().Str("session_id", sess.ID).Msg("playback session closed")
}

// CloseIdle closes every session untouched for longer than idle and returns
// how many were closed.
func (s *PlaybackService) CloseIdle(ctx context.Context, idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	var stale []*PlaybackSession
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		touched := sess.lastTouched
		sess.mu.Unlock()
		if touched.Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		s.teardown(ctx, sess)
	}
	return len(stale)
}

// Shutdown closes all sessions and waits for in-flight checks to settle.
func (s *PlaybackService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	all := make([]*PlaybackSession, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range all {
		s.teardown(ctx, sess)
	}
	for _, sess := range all {
		sess.monitor.Wait()
	}
}

func (s *PlaybackService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *PlaybackService) view(sess *PlaybackSession, drain bool) *SessionView {
	v := &SessionView{
		ID:           sess.ID,
		MovieID:      sess.MovieID,
		GateSnapshot: sess.monitor.Snapshot(),
		Playing:      sess.player.Playing(),
		Commands:     []domain.PlayerCommand{},
	}
	if drain {
		v.Commands = sess.player.Drain()
	}
	return v
}
