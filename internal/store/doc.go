// Package store holds the published acquisition state and fans it out to
// frontends.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [State]: JSON representation of the acquisition state
//   - [FromSnapshot]: Conversion from the polling loop's snapshot
//
// Subscribers receive updates via channels with non-blocking sends. A slow
// subscriber misses intermediate states rather than blocking the poller;
// since every State is complete, the next one it receives is current.
package store
