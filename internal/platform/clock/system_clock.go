package clock

import "time"

// SystemClock reads the wall clock, always in UTC so stored timestamps
// compare cleanly across adapters.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
