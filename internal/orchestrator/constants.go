package orchestrator

// Event hub sizing
const (
	// Per-subscriber buffer; a WebSocket client that falls further behind
	// misses events.
	EventBuffer = 64

	// Notices retained for GET /api/notices.
	MaxNotices = 50
)
