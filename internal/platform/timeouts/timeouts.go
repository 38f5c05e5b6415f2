// Package timeouts defines shared timeout constants used across soulbound
// processes so HTTP, storage, and shutdown budgets stay consistent.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps the time a single registry API request may run, including the
// storage transaction and any receiver callbacks.
const Request = 10 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// SQLiteBusy is the busy timeout handed to SQLite for lock contention.
const SQLiteBusy = 5 * time.Second
