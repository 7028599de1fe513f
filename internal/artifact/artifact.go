// Package artifact loads and validates the sketch image submitted for
// conversion. Only JPEG, PNG, and WebP payloads up to MaxSize are accepted;
// everything else is rejected before the conversion session changes state.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// MaxSize is the largest accepted payload (10 MiB).
const MaxSize = 10 * 1024 * 1024

// AllowedTypes is the media-type allow-list. image/jpg is accepted as an
// alias and normalized to image/jpeg.
var AllowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// extensionTypes maps file extensions to media types when none is declared.
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Artifact is an image payload plus its declared media type.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the payload length in bytes.
func (a *Artifact) Size() int64 {
	return int64(len(a.Data))
}

// Clone returns a deep copy of the artifact.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Artifact{Name: a.Name, MIMEType: a.MIMEType, Data: data}
}

// FromBytes builds and validates an artifact from an in-memory payload.
// declaredType may be empty; it is then derived from the name or the content.
func FromBytes(name, declaredType string, data []byte) (*Artifact, error) {
	a := &Artifact{
		Name:     name,
		MIMEType: resolveType(name, declaredType, data),
		Data:     data,
	}
	if err := Validate(a); err != nil {
		return nil, err
	}
	return a, nil
}

// FromReader reads at most MaxSize+1 bytes from r so that oversized inputs
// are detected without buffering them entirely.
func FromReader(name, declaredType string, r io.Reader) (*Artifact, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return FromBytes(name, declaredType, data)
}

// FromFile loads an artifact from disk. The size limit is checked against the
// file's stat before any bytes are read.
func FromFile(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	name := filepath.Base(path)
	declared := extensionTypes[strings.ToLower(filepath.Ext(path))]
	if info.Size() > MaxSize {
		return nil, &ValidationError{Kind: KindTooLarge, MIMEType: declared, Size: info.Size()}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	a, err := FromReader(name, declared, f)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("path", path).
		Str("mime_type", a.MIMEType).
		Int64("size_bytes", a.Size()).
		Msg("Artifact loaded")
	return a, nil
}

// resolveType picks the media type in priority order: declared, extension,
// content sniffing. Generic declarations are treated as missing.
func resolveType(name, declared string, data []byte) string {
	t := normalizeType(declared)
	if t == "" || t == "application/octet-stream" {
		t = extensionTypes[strings.ToLower(filepath.Ext(name))]
	}
	if t == "" && len(data) > 0 {
		t = normalizeType(mimetype.Detect(data).String())
	}
	return t
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "image/jpg" {
		return "image/jpeg"
	}
	return t
}
