package voice

import (
	"sync"
	"time"
)

// TurnTiming is the latency of each stage of one conversation turn.
type TurnTiming struct {
	Listen     time.Duration // microphone open until the recording ended
	Transcribe time.Duration
	Generate   time.Duration // zero for canned replies
	Synthesize time.Duration
	Total      time.Duration // speech end until the speak message went out
}

// Metrics summarizes the loop's activity since the process started.
type Metrics struct {
	Turns      int // listening attempts
	Silent     int // attempts that heard nothing usable
	Replies    int // speak messages sent
	Refusals   int // replies replaced by the refusal text
	Failures   int // turns abandoned on a transcription or synthesis error
	LastTurn   TurnTiming
	LastSpoken time.Time
}

// metricsCollector is goroutine-safe; the loop writes and status readers read.
type metricsCollector struct {
	mu sync.Mutex
	m  Metrics
}

func (c *metricsCollector) update(fn func(*Metrics)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.m)
}

func (c *metricsCollector) snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m
}
