package server

import "time"

// Server configuration constants
const (
	// Per-connection command rate limit on the WebSocket
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Slow WebSocket clients are dropped after this write timeout
	WriteTimeout = 5 * time.Second

	// Request bodies are small JSON documents
	MaxBodyBytes = 1 << 16

	// Upper end of the UI threshold slider (?scale=slider)
	SliderMax = 100.0
)
