// Package capture acquires images from uploads, data URLs, and cameras and
// normalizes them to a single base64 data URL representation.
package capture

import (
	"encoding/base64"
	"errors"
	"strings"
)

const dataURLScheme = "data:"

var ErrInvalidDataURL = errors.New("capture: not a base64 data URL")

// EncodeDataURL renders data as a data URL with the given media type.
func EncodeDataURL(mimeType string, data []byte) string {
	return dataURLScheme + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its media type and payload. The
// payload is returned still encoded.
func ParseDataURL(s string) (mimeType, payload string, err error) {
	if !strings.HasPrefix(s, dataURLScheme) {
		return "", "", ErrInvalidDataURL
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return "", "", ErrInvalidDataURL
	}
	meta := s[len(dataURLScheme):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", ErrInvalidDataURL
	}
	mimeType = strings.TrimSuffix(meta, ";base64")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType)), s[comma+1:], nil
}

// StripPrefix drops a leading "data:...," scheme prefix. Input without one is
// returned unchanged.
func StripPrefix(s string) string {
	if !strings.HasPrefix(s, dataURLScheme) {
		return s
	}
	if comma := strings.IndexByte(s, ','); comma >= 0 {
		return s[comma+1:]
	}
	return s
}

// MIMEType returns the media type of a data URL, or "" when s is not one.
func MIMEType(s string) string {
	mimeType, _, err := ParseDataURL(s)
	if err != nil {
		return ""
	}
	return mimeType
}
