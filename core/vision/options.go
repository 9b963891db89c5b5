package vision

import "time"

const (
	DefaultSnapshotTimeout = 2 * time.Second
	DefaultMaxWidth        = 1024
	DefaultMaxHeight       = 1024
	DefaultJPEGQuality     = 80
)

type ServiceOption func(*Service)

// WithSnapshotTimeout bounds the wait for the first frame of a capture.
func WithSnapshotTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.snapshotTimeout = timeout
		}
	}
}

// WithMaxSize sets the bounding box frames are downscaled into. Zero leaves
// the corresponding dimension unbounded.
func WithMaxSize(width, height int) ServiceOption {
	return func(s *Service) {
		s.maxWidth = width
		s.maxHeight = height
	}
}

func WithJPEGQuality(quality int) ServiceOption {
	return func(s *Service) {
		if quality > 0 && quality <= 100 {
			s.jpegQuality = quality
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
