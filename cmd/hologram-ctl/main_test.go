package main

import (
	"testing"

	"github.com/teslashibe/go-hologram/pkg/protocol"
)

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		args      []string
		wantEvent string
		wantValue string
		wantWatch bool
		wantErr   bool
	}{
		{args: []string{"mode", "vision"}, wantEvent: "mode", wantValue: "VISION"},
		{args: []string{"MODE", "VOICE"}, wantEvent: "mode", wantValue: "VOICE"},
		{args: []string{"voice", "start"}, wantEvent: "voice_control:start"},
		{args: []string{"voice", "stop"}, wantEvent: "voice_control:stop"},
		{args: []string{"watch"}, wantWatch: true},
		{args: nil, wantErr: true},
		{args: []string{"mode"}, wantErr: true},
		{args: []string{"voice", "pause"}, wantErr: true},
		{args: []string{"dance"}, wantErr: true},
	}
	for _, tt := range tests {
		msg, watch, err := buildMessage(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("buildMessage(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if watch != tt.wantWatch {
			t.Errorf("buildMessage(%v) watch = %v", tt.args, watch)
		}
		if tt.wantEvent == "" {
			if msg != nil && !tt.wantErr {
				t.Errorf("buildMessage(%v) = %+v, want no message", tt.args, msg)
			}
			continue
		}
		if got := msg.EventName(); got != tt.wantEvent {
			t.Errorf("buildMessage(%v) event = %q, want %q", tt.args, got, tt.wantEvent)
		}
		if msg.Value != tt.wantValue {
			t.Errorf("buildMessage(%v) value = %q, want %q", tt.args, msg.Value, tt.wantValue)
		}
	}

	// The server must accept what the CLI sends.
	msg, _, _ := buildMessage([]string{"mode", "voice"})
	if msg.Type != protocol.TypeMode {
		t.Errorf("type = %q", msg.Type)
	}
}
