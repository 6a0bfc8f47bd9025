// Package kv provides the durable key-value store gapchat persists into.
//
// # Overview
//
// Every application store (accounts, news, chat history, theme) owns a slice
// of a flat string-keyed namespace with JSON-encoded values:
//
//   - users                  account list
//   - currentUser            active session record
//   - news                   news article list
//   - theme                  theme override
//   - chatHistory:<username> per-user chat transcript
//
// The Store interface is deliberately narrow: synchronous get/set/remove of
// opaque blobs. There is no indexing and no transaction spanning keys;
// concurrent writers to the same key are last-writer-wins.
//
// # Implementations
//
// SQLiteStore persists into a single kv table using modernc.org/sqlite with
// WAL mode enabled. MemoryStore is a map-backed implementation for tests.
//
// # Error Handling
//
// Get returns ErrNotFound for absent keys. Delete of an absent key is not an
// error. All methods accept context.Context for cancellation support.
package kv
