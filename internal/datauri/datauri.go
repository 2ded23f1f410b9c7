// Package datauri encodes and decodes base64 data URIs of the form
// data:<mime>;base64,<payload>.
package datauri

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrInvalid = errors.New("invalid image data format")
	// ErrUnsupportedImage means the bytes are not a PNG, JPEG, GIF or WebP image.
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// IsDataURI reports whether ref is a data URI rather than a remote URL.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// Decode splits a base64 data URI into its MIME type and decoded bytes.
func Decode(uri string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalid
	}
	// The MIME type may itself carry parameters, so split on the last marker.
	idx := strings.LastIndex(rest, ";base64,")
	if idx <= 0 || idx+len(";base64,") == len(rest) {
		return "", nil, ErrInvalid
	}
	mimeType = rest[:idx]
	data, err = base64.StdEncoding.DecodeString(rest[idx+len(";base64,"):])
	if err != nil {
		return "", nil, ErrInvalid
	}
	return mimeType, data, nil
}

func Encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ImageType names the image format of data from its leading bytes. Only
// formats the vision and image generation providers accept are recognised.
func ImageType(data []byte) (string, bool) {
	// http.DetectContentType has no WebP signature.
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp", true
	}
	switch mimeType := http.DetectContentType(data); mimeType {
	case "image/png", "image/jpeg", "image/gif":
		return mimeType, true
	}
	return "", false
}

// EncodeImage builds a data URI for raw image bytes, taking the MIME type
// from the content rather than from whatever the sender declared.
func EncodeImage(data []byte) (uri, mimeType string, err error) {
	mimeType, ok := ImageType(data)
	if !ok {
		return "", "", ErrUnsupportedImage
	}
	return Encode(mimeType, data), mimeType, nil
}
