package stats

import "time"

// Backoff is a linear retry schedule: attempt N waits N*Step, capped at Max
// when Max is set.
type Backoff struct {
	Step time.Duration
	Max  time.Duration
}

// Delay returns the wait after failed attempt N (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Step <= 0 {
		return 0
	}
	d := time.Duration(attempt) * b.Step
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
