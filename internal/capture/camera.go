package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Frame is a single still taken from a stream.
type Frame struct {
	MIMEType string
	Data     []byte
}

// Stream is an acquired capture resource. Stop releases it and must be safe
// to call after Frame fails.
type Stream interface {
	Frame(ctx context.Context) (Frame, error)
	Stop() error
}

// Camera hands out streams. Implementations wrap a platform capture API.
type Camera interface {
	Start(ctx context.Context) (Stream, error)
}

// Capture acquires a stream, takes one frame and releases the stream on every
// exit path. The frame is returned as a data URL.
func Capture(ctx context.Context, cam Camera, limit int64) (dataURL string, err error) {
	stream, err := cam.Start(ctx)
	if err != nil {
		return "", fmt.Errorf("start capture: %w", err)
	}
	defer func() {
		if stopErr := stream.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("stop capture: %w", stopErr))
		}
	}()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return "", fmt.Errorf("capture frame: %w", err)
	}
	if int64(len(frame.Data)) > limit {
		return "", ErrTooLarge
	}
	if len(frame.Data) == 0 {
		return "", ErrEmpty
	}
	mimeType, err := imageType(frame.MIMEType, frame.Data)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(mimeType, frame.Data), nil
}

// FileSource is the file-picker path: a Camera whose single frame is the
// contents of a file on disk.
type FileSource struct {
	Path string
}

func (s FileSource) Start(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(s.Path))
	if err != nil {
		return nil, err
	}
	return &fileStream{file: f}, nil
}

type fileStream struct {
	file *os.File
}

func (s *fileStream) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	info, err := s.file.Stat()
	if err != nil {
		return Frame{}, err
	}
	data := make([]byte, info.Size())
	if _, err := s.file.ReadAt(data, 0); err != nil && info.Size() > 0 {
		return Frame{}, err
	}
	return Frame{Data: data}, nil
}

func (s *fileStream) Stop() error {
	return s.file.Close()
}
