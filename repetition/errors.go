package repetition

import "errors"

// Protocol violations. They move the tester into the Error state; the loop
// stops but the host process keeps running.
var (
	// ErrUnbalancedBlocks is reported when an iteration had a different number
	// of Begin and End calls.
	ErrUnbalancedBlocks = errors.New("perfaware/repetition: unbalanced begin/end")

	// ErrByteCountMismatch is reported when an iteration's CountBytes total
	// differs from the target byte count.
	ErrByteCountMismatch = errors.New("perfaware/repetition: processed byte count mismatch")

	// ErrWaveMismatch is reported when NewWave is called with a different
	// target byte count or timer frequency.
	ErrWaveMismatch = errors.New("perfaware/repetition: wave parameters changed")
)
