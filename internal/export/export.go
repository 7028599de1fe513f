// Package export writes generated diagram source to a local path or to S3.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the S3 call export needs. *s3.Client implements it.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Exporter writes exports. S3 is resolved only for s3:// destinations.
type Exporter struct {
	S3 func(ctx context.Context) (ObjectPutter, error)
}

// Destination is a parsed export target.
type Destination struct {
	Bucket string
	Prefix string
	Path   string
}

// IsS3 reports whether the destination is an S3 location.
func (d Destination) IsS3() bool { return d.Bucket != "" }

// ParseDestination accepts a filesystem path or s3://bucket[/prefix].
func ParseDestination(dest string) (Destination, error) {
	if !strings.HasPrefix(dest, "s3://") {
		if dest == "" {
			return Destination{}, fmt.Errorf("export destination is required")
		}
		return Destination{Path: dest}, nil
	}
	rest := strings.TrimPrefix(dest, "s3://")
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Destination{}, fmt.Errorf("invalid S3 destination %q: missing bucket", dest)
	}
	return Destination{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// Write stores data named name under dest and returns where it went. A
// filesystem dest that is an existing directory or ends in a separator gets
// name appended; any other path is written as given.
func (e *Exporter) Write(ctx context.Context, dest, name string, data []byte, contentType string) (string, error) {
	d, err := ParseDestination(dest)
	if err != nil {
		return "", err
	}
	if d.IsS3() {
		return e.writeS3(ctx, d, name, data, contentType)
	}
	return writeFile(d.Path, name, data)
}

func (e *Exporter) writeS3(ctx context.Context, d Destination, name string, data []byte, contentType string) (string, error) {
	if e.S3 == nil {
		return "", fmt.Errorf("S3 export is not configured")
	}
	client, err := e.S3(ctx)
	if err != nil {
		return "", fmt.Errorf("S3 client: %w", err)
	}

	key := name
	if d.Prefix != "" {
		key = path.Join(d.Prefix, name)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &d.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject: %w", err)
	}

	loc := "s3://" + d.Bucket + "/" + key
	log.Info().Str("location", loc).Int("bytes", len(data)).Msg("Export uploaded to S3")
	return loc, nil
}

func writeFile(dest, name string, data []byte) (string, error) {
	target := dest
	if strings.HasSuffix(dest, string(os.PathSeparator)) || strings.HasSuffix(dest, "/") {
		target = filepath.Join(dest, name)
	} else if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		target = filepath.Join(dest, name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	log.Info().Str("location", target).Int("bytes", len(data)).Msg("Export written")
	return target, nil
}
