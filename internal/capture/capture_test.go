package capture

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestParseDataURL(t *testing.T) {
	mimeType, payload, err := ParseDataURL("data:image/jpeg;base64,QUJD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mimeType != "image/jpeg" || payload != "QUJD" {
		t.Fatalf("unexpected parse: %q %q", mimeType, payload)
	}

	for _, bad := range []string{"QUJD", "data:image/jpeg,QUJD", "data:image/png;base64"} {
		if _, _, err := ParseDataURL(bad); !errors.Is(err, ErrInvalidDataURL) {
			t.Fatalf("expected ErrInvalidDataURL for %q, got %v", bad, err)
		}
	}
}

func TestStripPrefix(t *testing.T) {
	cases := map[string]string{
		"data:image/png;base64,AAAA": "AAAA",
		"AAAA":                       "AAAA",
		"":                           "",
	}
	for in, want := range cases {
		if got := StripPrefix(in); got != want {
			t.Fatalf("StripPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromDataURL(t *testing.T) {
	url := EncodeDataURL("image/png", pngHeader)

	got, err := FromDataURL(" "+url+" ", 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != url {
		t.Fatalf("expected canonical url %q, got %q", url, got)
	}

	if _, err := FromDataURL(EncodeDataURL("text/plain", []byte("hi")), 1024); !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
	if _, err := FromDataURL(url, 4); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := FromDataURL("data:image/png;base64,!!!", 1024); !errors.Is(err, ErrInvalidDataURL) {
		t.Fatalf("expected ErrInvalidDataURL, got %v", err)
	}
}

func TestFromUpload(t *testing.T) {
	file := uploadHeader(t, "image/png", pngHeader)
	got, err := FromUpload(file, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != EncodeDataURL("image/png", pngHeader) {
		t.Fatalf("unexpected data url: %s", got)
	}

	sniffed, err := FromUpload(uploadHeader(t, "", pngHeader), 1024)
	if err != nil {
		t.Fatalf("unexpected error for sniffed upload: %v", err)
	}
	if MIMEType(sniffed) != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", MIMEType(sniffed))
	}

	if _, err := FromUpload(uploadHeader(t, "text/plain", []byte("hello")), 1024); !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
	if _, err := FromUpload(uploadHeader(t, "image/png", pngHeader), 4); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

type stubStream struct {
	frame    Frame
	frameErr error
	stopped  int
}

func (s *stubStream) Frame(context.Context) (Frame, error) { return s.frame, s.frameErr }
func (s *stubStream) Stop() error {
	s.stopped++
	return nil
}

type stubCamera struct {
	stream *stubStream
	err    error
}

func (c *stubCamera) Start(context.Context) (Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func TestCaptureReleasesStreamOnEveryPath(t *testing.T) {
	ok := &stubStream{frame: Frame{MIMEType: "image/png", Data: pngHeader}}
	if _, err := Capture(context.Background(), &stubCamera{stream: ok}, 1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.stopped != 1 {
		t.Fatalf("expected stream stopped once, got %d", ok.stopped)
	}

	failing := &stubStream{frameErr: errors.New("sensor unplugged")}
	if _, err := Capture(context.Background(), &stubCamera{stream: failing}, 1024); err == nil {
		t.Fatal("expected frame error")
	}
	if failing.stopped != 1 {
		t.Fatalf("expected stream stopped after failure, got %d", failing.stopped)
	}

	wrongType := &stubStream{frame: Frame{MIMEType: "video/mp4", Data: []byte("....")}}
	if _, err := Capture(context.Background(), &stubCamera{stream: wrongType}, 1024); !errors.Is(err, ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
	if wrongType.stopped != 1 {
		t.Fatalf("expected stream stopped after validation failure, got %d", wrongType.stopped)
	}
}

func TestCaptureFromFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bug.png")
	if err := os.WriteFile(path, pngHeader, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, err := Capture(context.Background(), FileSource{Path: path}, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != EncodeDataURL("image/png", pngHeader) {
		t.Fatalf("unexpected data url: %s", got)
	}

	if _, err := Capture(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "missing")}, 1024); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func uploadHeader(t *testing.T, contentType string, payload []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("failed to parse multipart form: %v", err)
	}
	return req.MultipartForm.File["image"][0]
}
