// Package store defines the key-value capability surface lockers acquire
// against, together with in-memory, Redis and Postgres implementations.
// A Store only needs three atomic operations: claim a key if absent, arm
// an expiry on a claimed key, and delete a key. Everything else about the
// backing service (pooling, auth, transport retries) belongs to the
// client library handed to the constructor.
package store
