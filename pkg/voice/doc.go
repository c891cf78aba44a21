// Package voice runs the hands-free conversation loop.
//
// Each turn listens on the microphone until the speaker goes quiet, sends the
// recording for transcription, picks a reply (a greeting on the first turn, a
// refusal for blocked words, otherwise a generated answer), synthesizes it and
// tells clients to play it. The loop runs as a single named task and reports
// its state (LISTENING, WAITING, IDLE) to clients as it goes.
//
// Architecture:
//
//	Microphone → Session (energy VAD) → WAV → Transcriber
//	                                              ↓
//	Clients ← speak ← AudioStore ← tts.Provider ← reply (greeting | refusal | Generator)
package voice
