// Package store provides storage and pub/sub functionality for outcomes.
//
// This package is internal to fanfetch and keeps, in memory, the latest
// outcome per descriptor seen while serving. It implements a
// publish-subscribe pattern so outcomes reach connected clients while a
// dispatch is still draining.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [OutcomeRecord]: Storage representation of one outcome
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the collector).
// Nothing is persisted; a restart starts empty.
package store
