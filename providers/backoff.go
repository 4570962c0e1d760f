package providers

import "time"

// linearBackOff waits step, 2*step, 3*step, ... between attempts.
// A new instance is created for every logical call.
type linearBackOff struct {
	step    time.Duration
	attempt int64
}

func newLinearBackOff(step time.Duration) *linearBackOff {
	return &linearBackOff{step: step}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
