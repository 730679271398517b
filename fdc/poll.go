package fdc

import "fdboot/hw"

// PollUntil checks cond up to attempts times, sleeping intervalMs between
// checks. It reports whether cond became true.
func PollUntil(clock hw.Clock, attempts, intervalMs int, cond func() bool) bool {
	for i := 0; i < attempts; i++ {
		if cond() {
			return true
		}
		clock.Sleep(intervalMs)
	}
	return false
}
