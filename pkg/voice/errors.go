package voice

import "errors"

var (
	// ErrNoSpeech is returned by Record when the session heard nothing usable.
	ErrNoSpeech = errors.New("voice: no speech detected")

	// ErrMissingDependency is returned by NewController when a collaborator is nil.
	ErrMissingDependency = errors.New("voice: missing dependency")
)
