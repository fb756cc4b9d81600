// Package poller drives periodic temperature acquisition for ThermoBoard.
//
// This package is internal to ThermoBoard. A [Loop] fetches a reading when it
// starts, on every interval tick and on explicit refresh, keeps a bounded
// history of successful readings and publishes an [Update] after every
// settled fetch.
//
// The main components are:
//
//   - [Fetcher]: source of readings (the device client, or a fake in tests)
//   - [Loop]: timer-driven acquisition state machine
//   - [Snapshot]: read-only view of the acquisition state
//   - [Update]: one settled fetch together with the resulting snapshot
//
// All state lives on the loop goroutine. Fetches run on their own goroutine
// and hand their result back over a channel, so transitions are applied one
// at a time and a result that arrives after the loop stopped is dropped.
//
// At most one fetch is in flight. A tick or refresh that fires while a fetch
// is outstanding is skipped rather than queued.
package poller
