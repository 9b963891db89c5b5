package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/image/draw"
)

const mimeTypeJPEG = "image/jpeg"

// Service captures a single fresh frame from a video source on demand.
type Service struct {
	source VideoSource

	snapshotTimeout time.Duration
	maxWidth        int
	maxHeight       int
	jpegQuality     int
	now             func() time.Time

	captureMu sync.Mutex
}

func NewService(source VideoSource, opts ...ServiceOption) *Service {
	s := &Service{
		source:          source,
		snapshotTimeout: DefaultSnapshotTimeout,
		maxWidth:        DefaultMaxWidth,
		maxHeight:       DefaultMaxHeight,
		jpegQuality:     DefaultJPEGQuality,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture reads exactly one frame from the first published video track.
//
// It returns (nil, nil) when no video track is published. Capture ignores
// cancellation of ctx and is bounded only by the snapshot timeout, so a
// started capture always completes or times out. Concurrent calls are
// serialized.
func (s *Service) Capture(ctx context.Context) (*Snapshot, error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	ctx, span := tracer.Start(ctx, "capture snapshot")
	defer span.End()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.snapshotTimeout)
	defer cancel()

	if s.source == nil {
		span.SetAttributes(attribute.Bool("vision.track_present", false))
		return nil, nil
	}

	track, ok := s.source.VideoTrack(ctx)
	if !ok || track == nil {
		span.SetAttributes(attribute.Bool("vision.track_present", false))
		return nil, nil
	}
	span.SetAttributes(
		attribute.Bool("vision.track_present", true),
		attribute.String("vision.track_id", track.ID()),
	)

	snapshot, err := s.readOne(ctx, track)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot capture failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("vision.width", snapshot.Width),
		attribute.Int("vision.height", snapshot.Height),
		attribute.Int("vision.bytes", len(snapshot.Data)),
	)
	return snapshot, nil
}

func (s *Service) readOne(ctx context.Context, track VideoTrack) (*Snapshot, error) {
	stream, err := track.OpenStream(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrCaptureTimeout
		}
		return nil, fmt.Errorf("failed to open video stream: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close video stream", "track_id", track.ID(), "error", err)
		}
	}()

	type result struct {
		frame Frame
		err   error
	}
	next := make(chan result, 1)
	go func() {
		frame, err := stream.Next(ctx)
		next <- result{frame: frame, err: err}
	}()

	var frame Frame
	select {
	case <-ctx.Done():
		return nil, ErrCaptureTimeout
	case r := <-next:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, ErrCaptureTimeout
			}
			return nil, fmt.Errorf("failed to read video frame: %w", r.err)
		}
		frame = r.frame
	}
	if frame.Image == nil {
		return nil, ErrStreamEnded
	}

	img := fit(frame.Image, s.maxWidth, s.maxHeight)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode video frame: %w", err)
	}

	capturedAt := frame.Timestamp
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}
	bounds := img.Bounds()
	return &Snapshot{
		CapturedAt: capturedAt,
		TrackID:    track.ID(),
		Data:       buf.Bytes(),
		MIMEType:   mimeTypeJPEG,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
	}, nil
}

// fit downscales img to fit within maxWidth x maxHeight while preserving
// the aspect ratio. Images that already fit are returned unchanged.
func fit(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return img
	}

	scale := 1.0
	if maxWidth > 0 && width > maxWidth {
		scale = min(scale, float64(maxWidth)/float64(width))
	}
	if maxHeight > 0 && height > maxHeight {
		scale = min(scale, float64(maxHeight)/float64(height))
	}
	if scale >= 1 {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0,
		max(1, int(float64(width)*scale)),
		max(1, int(float64(height)*scale)),
	))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
