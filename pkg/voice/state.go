package voice

// State is the voice loop's externally visible state.
type State string

const (
	StateIdle      State = "IDLE"
	StateListening State = "LISTENING"
	StateWaiting   State = "WAITING"
)

func (s State) String() string {
	return string(s)
}
