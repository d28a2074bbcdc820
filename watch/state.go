package watch

import "time"

// State is the lifecycle state of a tracked path.
type State string

const (
	StateUnseen     State = "unseen"
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateIndexed    State = "indexed"
	StateFailed     State = "failed"
	StateRemoved    State = "removed"
)

// tracked holds the per-path state. All fields are guarded by Service.mu.
type tracked struct {
	state    State
	timer    *time.Timer // Pending debounce or retry
	running  bool        // A processing pass is in flight
	rerun    bool        // Timer fired while running
	deleted  bool        // Last observed event removed the path
	attempts int         // Consecutive retryable failures
}
