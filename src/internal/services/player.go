package services

import (
	"context"
	"sync"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
)

// RemotePlayer stands in for the client-side video engine. Commands are
// queued and handed to the client on its next report.
type RemotePlayer struct {
	mu       sync.Mutex
	pending  []domain.PlayerCommand
	playing  bool
	released bool
}

func NewRemotePlayer() *RemotePlayer {
	return &RemotePlayer{}
}

func (p *RemotePlayer) Play(ctx context.Context) error {
	return p.push(domain.CommandPlay, true)
}

func (p *RemotePlayer) Pause(ctx context.Context) error {
	return p.push(domain.CommandPause, false)
}

func (p *RemotePlayer) Replay(ctx context.Context) error {
	return p.push(domain.CommandReplay, true)
}

func (p *RemotePlayer) push(cmd domain.PlayerCommand, playing bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return domain.ErrSessionClosed
	}
	p.pending = append(p.pending, cmd)
	p.playing = playing
	return nil
}

// Drain returns and clears the queued commands.
func (p *RemotePlayer) Drain() []domain.PlayerCommand {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmds := p.pending
	p.pending = nil
	if cmds == nil {
		cmds = []domain.PlayerCommand{}
	}
	return cmds
}

func (p *RemotePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Release detaches the player; later commands fail with ErrSessionClosed.
func (p *RemotePlayer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released = true
	p.playing = false
	p.pending = nil
}

// RouteNavigator sends the viewer to a fixed upgrade route.
type RouteNavigator struct {
	Route string
}

func (n RouteNavigator) OpenUpgrade(ctx context.Context) (string, error) {
	return n.Route, nil
}
