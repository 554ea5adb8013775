// Package timeouts defines the timeouts shared by the runtime's servers.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during graceful
// shutdown.
const Shutdown = 5 * time.Second

// Drain limits how long shutdown waits for queued events to be routed.
const Drain = 3 * time.Second

// FrameWrite caps a single websocket response write.
const FrameWrite = 10 * time.Second

// Probe bounds a command-line health probe.
const Probe = 3 * time.Second
