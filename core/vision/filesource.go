package vision

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// FileSource is a VideoSource backed by an image file that an external
// camera process keeps overwriting. The track is considered published while
// the file exists.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) VideoTrack(_ context.Context) (VideoTrack, bool) {
	if s.path == "" {
		return nil, false
	}
	info, err := os.Stat(s.path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return &fileTrack{path: s.path}, true
}

type fileTrack struct {
	path string
}

func (t *fileTrack) ID() string { return "file:" + t.path }

func (t *fileTrack) OpenStream(_ context.Context) (FrameStream, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	return &fileStream{file: f}, nil
}

type fileStream struct {
	file *os.File
	read atomic.Bool
}

func (s *fileStream) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.read.Swap(true) {
		return Frame{}, ErrStreamEnded
	}

	info, err := s.file.Stat()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to stat frame file: %w", err)
	}
	img, _, err := image.Decode(s.file)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame file: %w", err)
	}
	return Frame{Image: img, Timestamp: info.ModTime()}, nil
}

func (s *fileStream) Close() error {
	return s.file.Close()
}
