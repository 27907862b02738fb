package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

var (
	ErrUnsupportedMediaType = errors.New("capture: file is not an image")
	ErrTooLarge             = errors.New("capture: image exceeds upload limit")
	ErrEmpty                = errors.New("capture: image is empty")
)

// FromUpload reads a multipart file and returns it as a data URL. The declared
// content type is trusted when present; otherwise the bytes are sniffed.
func FromUpload(file *multipart.FileHeader, limit int64) (string, error) {
	if file.Size > limit {
		return "", ErrTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := readLimited(src, limit)
	if err != nil {
		return "", err
	}

	mimeType, err := imageType(file.Header.Get("Content-Type"), data)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(mimeType, data), nil
}

// FromDataURL validates a caller supplied data URL and returns it in
// canonical form.
func FromDataURL(s string, limit int64) (string, error) {
	mimeType, payload, err := ParseDataURL(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", ErrUnsupportedMediaType
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > limit+2 {
		return "", ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > limit {
		return "", ErrTooLarge
	}
	return EncodeDataURL(mimeType, data), nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return data, nil
}

func imageType(declared string, data []byte) (string, error) {
	mimeType := ""
	if declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil {
			mimeType = strings.ToLower(parsed)
		}
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", ErrUnsupportedMediaType
	}
	return mimeType, nil
}
