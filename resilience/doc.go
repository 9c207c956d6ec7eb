// Package resilience provides the reconnect backoff policy and a small
// retry helper built on it.
//
// The delay for attempt n (zero-based) is
//
//	min(base * 2^n, cap) + U(0, jitter * that)
//
// so each attempt waits at least the un-jittered exponential value and at
// most ten percent more with the default jitter.
//
//	b := resilience.DefaultBackoff()
//	time.AfterFunc(b.Delay(attempts), reconnect)
package resilience
