package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluxshorts/fluxshorts/src/internal/log"
)

// SessionReaper closes playback sessions whose client stopped reporting,
// e.g. an app killed without leaving the video screen.
type SessionReaper struct {
	playback *PlaybackService
	interval time.Duration
	idle     time.Duration
	logger   zerolog.Logger
}

func NewSessionReaper(playback *PlaybackService, interval, idle time.Duration) *SessionReaper {
	return &SessionReaper{
		playback: playback,
		interval: interval,
		idle:     idle,
		logger:   log.WithComponent("reaper"),
	}
}

// StartMonitoring blocks until ctx is done.
func (r *SessionReaper) StartMonitoring(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Dur("idle_timeout", r.idle).Msg("starting session reaper")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.playback.CloseIdle(ctx, r.idle); n > 0 {
				r.logger.Info().Int("closed", n).Msg("reaped idle playback sessions")
			}
		}
	}
}
