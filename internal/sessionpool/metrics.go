package sessionpool

// Metrics provides observability for pool-level authentication and sizing
// events.
type Metrics interface {
	// ObserveAuthenticate records a fresh authentication exchange
	// (not a credential replay).
	ObserveAuthenticate()

	// ObserveRateLimitWaitSeconds records the pool absorbing a rate-limit response,
	// with the wait it's honoring.
	ObserveRateLimitWaitSeconds(seconds float64)

	// SetPoolSize reports the current number of live sessions.
	SetPoolSize(size int)
}
