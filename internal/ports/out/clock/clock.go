package clock

import "time"

// Clock supplies the current time to services that stamp ledger records.
// Tests substitute a manual implementation to pin timestamps.
type Clock interface {
	Now() time.Time
}
