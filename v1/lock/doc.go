// Package lock implements mutual exclusion across processes on top of a
// shared key-value store. A Locker claims a key atomically, optionally
// arms a lease so a crashed holder cannot pin the key forever, and hands
// back a Guard that releases the claim on every exit path. Acquisition
// is either non-blocking (Acquire reports contention immediately) or
// blocking (AcquireBlocking polls on a fixed interval until the key
// frees up).
//
// Release is gated only by the Guard's held flag: there is no
// per-acquisition token checked at release time, so a lease that expires
// mid-hold can be reclaimed by a peer and later deleted by the original
// holder. The package assumes a single cooperating deployment where that
// risk is accepted.
package lock
