// Package protocol defines the JSON messages exchanged with hologram clients
// over the websocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType identifies the type of websocket message
type MessageType string

const (
	// Client → server
	TypeMode         MessageType = "mode"          // Perception mode switch
	TypeVoiceControl MessageType = "voice_control" // Pause/resume the voice loop

	// Server → client
	TypeAction     MessageType = "action"     // Detected gesture or speech playback
	TypeState      MessageType = "state"      // Voice turn state
	TypeTranscribe MessageType = "transcribe" // Recognised user speech
	TypeError      MessageType = "error"      // Device or pipeline failure
)

// Actions carried by TypeAction messages.
const (
	ActionMotionDetected = "motion_detected"
	ActionWave           = "wave"
	ActionSpeak          = "speak"
)

// Inbound is a message received from a client.
type Inbound struct {
	Type   MessageType `json:"type"`
	Value  string      `json:"value,omitempty"`
	Action string      `json:"action,omitempty"`
}

// ParseInbound parses a client message.
func ParseInbound(data []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// EventName returns the router event for the message: the bare type, or
// "<type>:<action>" when an action is present.
func (m *Inbound) EventName() string {
	action := strings.TrimSpace(m.Action)
	if action == "" {
		return string(m.Type)
	}
	return string(m.Type) + ":" + strings.ToLower(action)
}

// Payload returns the event payload for the message.
func (m *Inbound) Payload() map[string]any {
	p := make(map[string]any)
	if m.Value != "" {
		p["value"] = m.Value
	}
	return p
}

// Action is {type:"action", action:<name>}.
type Action struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

// Speak tells clients to play synthesized audio.
type Speak struct {
	Type      MessageType `json:"type"`
	Action    string      `json:"action"`
	AudioPath string      `json:"audio_path"`
	Duration  float64     `json:"duration"` // seconds
	Text      string      `json:"text"`
}

// State reports the voice turn state.
type State struct {
	Type  MessageType `json:"type"`
	Value string      `json:"value"`
}

// Transcribe carries recognised user speech.
type Transcribe struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// Error reports a failure to clients.
type Error struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewAction creates an action message
func NewAction(action string) Action {
	return Action{Type: TypeAction, Action: action}
}

// NewSpeak creates a speak message
func NewSpeak(audioPath string, duration float64, text string) Speak {
	return Speak{
		Type:      TypeAction,
		Action:    ActionSpeak,
		AudioPath: audioPath,
		Duration:  duration,
		Text:      text,
	}
}

// NewState creates a state message
func NewState(value string) State {
	return State{Type: TypeState, Value: value}
}

// NewTranscribe creates a transcribe message
func NewTranscribe(text string) Transcribe {
	return Transcribe{Type: TypeTranscribe, Text: text}
}

// NewError creates an error message
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
