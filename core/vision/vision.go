package vision

import (
	"context"
	"errors"
	"image"
	"time"
)

var (
	// ErrCaptureTimeout is returned when no frame arrives within the
	// snapshot timeout.
	ErrCaptureTimeout = errors.New("frame capture timed out")
	// ErrStreamEnded is returned when a frame stream closes before a frame
	// was delivered.
	ErrStreamEnded = errors.New("frame stream ended before first frame")
)

// Snapshot is a single encoded frame captured on demand. A nil *Snapshot
// means no frame is available for the turn.
type Snapshot struct {
	CapturedAt time.Time
	TrackID    string
	Data       []byte
	MIMEType   string
	Width      int
	Height     int
}

// VideoSource exposes the remote participant's published video, if any.
type VideoSource interface {
	// VideoTrack returns the first published video track. The boolean is
	// false when the participant is not publishing video.
	VideoTrack(ctx context.Context) (VideoTrack, bool)
}

type VideoTrack interface {
	ID() string
	OpenStream(ctx context.Context) (FrameStream, error)
}

// FrameStream delivers decoded frames from a track. Close must be safe to
// call after Next has failed.
type FrameStream interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

type Frame struct {
	Image     image.Image
	Timestamp time.Time
}
