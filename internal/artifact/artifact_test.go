package artifact

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func requireKind(t *testing.T, err error, kind ValidationErrorKind) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	assert.Equal(t, kind, verr.Kind)
}

func TestFromBytesAcceptsAllowedTypes(t *testing.T) {
	for _, mt := range []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "IMAGE/PNG; charset=binary"} {
		a, err := FromBytes("sketch", mt, []byte{1, 2, 3})
		require.NoError(t, err, mt)
		assert.True(t, AllowedTypes[a.MIMEType], mt)
	}
}

func TestFromBytesPreservesPayload(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 2*1024*1024)
	a, err := FromBytes("board.png", "image/png", data)
	require.NoError(t, err)
	assert.Equal(t, data, a.Data)
	assert.Equal(t, int64(len(data)), a.Size())
	assert.Equal(t, "board.png", a.Name)
}

func TestFromBytesRejectsType(t *testing.T) {
	for _, mt := range []string{"image/gif", "application/pdf", "text/plain"} {
		_, err := FromBytes("x", mt, []byte("data"))
		requireKind(t, err, KindUnsupportedType)
	}
}

func TestFromBytesRejectsSize(t *testing.T) {
	_, err := FromBytes("big.jpg", "image/jpeg", make([]byte, 15*1024*1024))
	requireKind(t, err, KindTooLarge)
	assert.Contains(t, err.Error(), "10 MB")

	_, err = FromBytes("edge.jpg", "image/jpeg", make([]byte, MaxSize))
	assert.NoError(t, err)

	_, err = FromBytes("over.jpg", "image/jpeg", make([]byte, MaxSize+1))
	requireKind(t, err, KindTooLarge)
}

func TestFromBytesRejectsEmpty(t *testing.T) {
	_, err := FromBytes("empty.png", "image/png", nil)
	requireKind(t, err, KindEmpty)
}

func TestResolveTypeFallbacks(t *testing.T) {
	data := pngBytes(t, 2, 2)
	assert.Equal(t, "image/png", resolveType("noext", "", data), "sniffed")
	assert.Equal(t, "image/png", resolveType("noext", "application/octet-stream", data), "generic declaration")
	assert.Equal(t, "image/webp", resolveType("photo.WEBP", "", nil), "extension")
	assert.Equal(t, "image/jpeg", resolveType("x", "image/jpg", nil), "alias")
}

func TestFromReaderStopsAtLimit(t *testing.T) {
	r := strings.NewReader(strings.Repeat("a", MaxSize+100))
	_, err := FromReader("big.png", "image/png", r)
	requireKind(t, err, KindTooLarge)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sketch.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 4, 3), 0o600))

	a, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.MIMEType)
	assert.Equal(t, "sketch.png", a.Name)
}

func TestFromFileTooLargeWithoutReading(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(15*1024*1024))
	require.NoError(t, f.Close())

	_, err = FromFile(path)
	requireKind(t, err, KindTooLarge)
}

func TestFromFileMissingAndDirectory(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorContains(t, err, "file not found")

	_, err = FromFile(t.TempDir())
	assert.ErrorContains(t, err, "directory")
}

func TestInspect(t *testing.T) {
	a, err := FromBytes("s.png", "", pngBytes(t, 7, 5))
	require.NoError(t, err)

	info := Inspect(a)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 7, info.Width)
	assert.Equal(t, 5, info.Height)
}

func TestInspectGarbage(t *testing.T) {
	info := Inspect(&Artifact{MIMEType: "image/jpeg", Data: []byte("not an image")})
	assert.Zero(t, info.Width)
	assert.Empty(t, info.Format)
}

func TestClone(t *testing.T) {
	a := &Artifact{Name: "a", MIMEType: "image/png", Data: []byte{1, 2}}
	c := a.Clone()
	c.Data[0] = 9
	assert.Equal(t, byte(1), a.Data[0])
	assert.Nil(t, (*Artifact)(nil).Clone())
}
