package playback

// State is a step of the playback state machine.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateExtracting
	StatePostProcessing
	StateDisplaying
	StateAdvancing
	StateSleeping
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateResolving:      "resolving",
	StateExtracting:     "extracting",
	StatePostProcessing: "post_processing",
	StateDisplaying:     "displaying",
	StateAdvancing:      "advancing",
	StateSleeping:       "sleeping",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
