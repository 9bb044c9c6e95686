package app

import "time"

// defaultRetryDelay is used when the rate file has never loaded so loop_seconds is unknown.
const defaultRetryDelay = time.Minute

func (a *App) retryDelay() time.Duration {
	if a.interval > 0 {
		return a.interval
	}
	return defaultRetryDelay
}
