package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantEvent string
		wantValue string
		wantErr   bool
	}{
		{
			name:      "mode message",
			input:     `{"type":"mode","value":"VISION"}`,
			wantEvent: "mode",
			wantValue: "VISION",
		},
		{
			name:      "voice control start",
			input:     `{"type":"voice_control","action":"start"}`,
			wantEvent: "voice_control:start",
		},
		{
			name:      "voice control stop uppercase",
			input:     `{"type":"voice_control","action":"STOP"}`,
			wantEvent: "voice_control:stop",
		},
		{
			name:    "invalid json",
			input:   `{"type":`,
			wantErr: true,
		},
		{
			name:    "missing type",
			input:   `{"value":"VOICE"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseInbound([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInbound() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := msg.EventName(); got != tt.wantEvent {
				t.Errorf("EventName() = %q, want %q", got, tt.wantEvent)
			}
			value, _ := msg.Payload()["value"].(string)
			if value != tt.wantValue {
				t.Errorf("Payload value = %q, want %q", value, tt.wantValue)
			}
		})
	}
}

func TestOutboundShapes(t *testing.T) {
	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"motion", NewAction(ActionMotionDetected), `{"type":"action","action":"motion_detected"}`},
		{"wave", NewAction(ActionWave), `{"type":"action","action":"wave"}`},
		{"state", NewState("LISTENING"), `{"type":"state","value":"LISTENING"}`},
		{"transcribe", NewTranscribe("merhaba"), `{"type":"transcribe","text":"merhaba"}`},
		{"error", NewError("camera unavailable"), `{"type":"error","message":"camera unavailable"}`},
		{
			"speak",
			NewSpeak("http://localhost:8765/audio/a.mp3", 2.5, "Merhaba!"),
			`{"type":"action","action":"speak","audio_path":"http://localhost:8765/audio/a.mp3","duration":2.5,"text":"Merhaba!"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}
