// Package poller keeps the shared register cache fresh.
//
// One Poller owns one device connection and one goroutine. On each scheduler
// tick it pops the registers whose poll interval has elapsed, batches
// contiguous same-class addresses into single block reads where possible,
// decodes the words through the fieldbus codec, applies scale factors, and
// upserts the results into the Cache. Changed values fan out to registered
// subscribers (trigger collaborator, telemetry sink).
//
// Failure policy: a device I/O failure marks the device's poll status,
// retains all previously-cached values, and delays the next attempt by a
// fixed backoff. A register that has never been read successfully is simply
// absent from the cache; it is never defaulted to zero.
//
// The Cache is the only state shared across pollers and arbitrary readers.
// Every entry is replaced whole (value-at-a-time swap), so readers never see
// a partially-written multi-register value.
package poller
