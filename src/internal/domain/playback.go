package domain

// GateState is the position of a playback session in the paywall state machine.
type GateState string

const (
	GateWatching            GateState = "Watching"
	GateCheckingEntitlement GateState = "CheckingEntitlement"
	GateWatchingPastGate    GateState = "WatchingPastGate"
	GatePausedPromptShown   GateState = "PausedPromptShown"
)

// DefaultPreviewSeconds is the free-preview length before entitlement is checked.
const DefaultPreviewSeconds = 45.0

// PositionReport is one time update from the player. Known is false when the
// player event carried no usable position.
type PositionReport struct {
	Seconds float64
	Known   bool
}

func At(seconds float64) PositionReport {
	return PositionReport{Seconds: seconds, Known: true}
}

// ParsePositionEvent extracts the playback position from a player time-update
// payload. Players disagree on the field: currentTime and position are seconds,
// positionMillis is milliseconds. The first numeric field in that order wins.
func ParsePositionEvent(evt map[string]any) PositionReport {
	if v, ok := number(evt["currentTime"]); ok {
		return At(v)
	}
	if v, ok := number(evt["positionMillis"]); ok {
		return At(v / 1000)
	}
	if v, ok := number(evt["position"]); ok {
		return At(v)
	}
	return PositionReport{}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// PlayerCommand is an instruction the server issues to the client-side player.
type PlayerCommand string

const (
	CommandPlay   PlayerCommand = "play"
	CommandPause  PlayerCommand = "pause"
	CommandReplay PlayerCommand = "replay"
)

// GateSnapshot is a point-in-time view of a monitor's state.
type GateSnapshot struct {
	State            GateState `json:"state"`
	PositionSeconds  *float64  `json:"positionSeconds"`
	ThresholdSeconds float64   `json:"thresholdSeconds"`
	PaywallTriggered bool      `json:"paywallTriggered"`
	PaywallVisible   bool      `json:"paywallVisible"`
}
