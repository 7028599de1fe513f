package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"

	"github.com/klauspost/compress/flate"
)

const plantumlAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// plantumlEncoding is base64 over the PlantUML text-encoding alphabet.
var plantumlEncoding = base64.NewEncoding(plantumlAlphabet).WithPadding(base64.NoPadding)

// deflateTo raw-deflates data into an encoder writing to w. The base64
// encoder consumes the compressed stream in chunks, so payload size is
// bounded only by memory.
func deflateTo(w io.Writer, enc *base64.Encoding, data []byte) error {
	b64 := base64.NewEncoder(enc, w)
	fw, err := flate.NewWriter(b64, flate.BestCompression)
	if err != nil {
		return fmt.Errorf("create deflate writer: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("deflate: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("finish deflate: %w", err)
	}
	if err := b64.Close(); err != nil {
		return fmt.Errorf("finish base64: %w", err)
	}
	return nil
}

// EncodeDrawio produces the draw.io "#R" payload: raw deflate of the UTF-8
// XML, standard base64.
func EncodeDrawio(xml string) (string, error) {
	var buf bytes.Buffer
	if err := deflateTo(&buf, base64.StdEncoding, []byte(xml)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DecodeDrawio reverses EncodeDrawio.
func DecodeDrawio(encoded string) (string, error) {
	return inflate(base64.StdEncoding, encoded)
}

// EncodePlantUML produces the path segment understood by PlantUML servers.
func EncodePlantUML(source string) (string, error) {
	var buf bytes.Buffer
	if err := deflateTo(&buf, plantumlEncoding, []byte(source)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DecodePlantUML reverses EncodePlantUML.
func DecodePlantUML(encoded string) (string, error) {
	return inflate(plantumlEncoding, encoded)
}

func inflate(enc *base64.Encoding, encoded string) (string, error) {
	raw, err := enc.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("inflate: %w", err)
	}
	return string(out), nil
}

// drawioURL appends the encoded payload as a "#R" fragment to base.
func drawioURL(base, encoded string) string {
	return base + "#R" + url.QueryEscape(encoded)
}
