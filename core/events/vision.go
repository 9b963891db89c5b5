package events

const (
	// KindSnapshotCaptured identifies a frame attached to a user turn.
	KindSnapshotCaptured Kind = "vision.snapshot_captured"
	// KindSnapshotAbsent identifies a user turn assembled without a frame.
	KindSnapshotAbsent Kind = "vision.snapshot_absent"
)

// SnapshotCaptured describes the frame attached to the user turn.
type SnapshotCaptured struct {
	Base
	TrackID string
	Width   int
	Height  int
}

// NewSnapshotCaptured creates a snapshot captured event.
func NewSnapshotCaptured(trackID string, width, height int) SnapshotCaptured {
	return SnapshotCaptured{Base: NewBase(KindSnapshotCaptured), TrackID: trackID, Width: width, Height: height}
}

// SnapshotAbsent marks a text-only user turn. Err is nil when no video
// track was published.
type SnapshotAbsent struct {
	Base
	Err error
}

// NewSnapshotAbsent creates a snapshot absent event.
func NewSnapshotAbsent(err error) SnapshotAbsent {
	return SnapshotAbsent{Base: NewBase(KindSnapshotAbsent), Err: err}
}
