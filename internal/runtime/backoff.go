// Package runtime implements the common sink (C8) and filter (C9)
// consumer loops shared by every stage with a receive end: poll the
// channel with exponential backoff when it's empty, dispatch on Event
// kind, honor the TimerFlush/flush_interval contract, and terminate on
// Shutdown.
package runtime

import "time"

const maxBackoff = 60 * time.Second

// Backoff returns min(60s, 2^attempts * ms), the sleep schedule spec.md
// §4.3 specifies for a stage whose receive end came back empty.
func Backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if attempts > 16 { // 2^16ms already exceeds the 60s cap
		return maxBackoff
	}
	d := time.Duration(1<<uint(attempts)) * time.Millisecond
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
