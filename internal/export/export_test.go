package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket, f.key, f.contentType = *in.Bucket, *in.Key, *in.ContentType
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestParseDestination(t *testing.T) {
	d, err := ParseDestination("s3://diagrams/team/a/")
	require.NoError(t, err)
	assert.Equal(t, Destination{Bucket: "diagrams", Prefix: "team/a"}, d)
	assert.True(t, d.IsS3())

	d, err = ParseDestination("s3://diagrams")
	require.NoError(t, err)
	assert.Equal(t, "", d.Prefix)

	_, err = ParseDestination("s3:///key")
	assert.Error(t, err)
	_, err = ParseDestination("")
	assert.Error(t, err)

	d, err = ParseDestination("out/diagram.mmd")
	require.NoError(t, err)
	assert.False(t, d.IsS3())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	e := &Exporter{}

	loc, err := e.Write(context.Background(), filepath.Join(dir, "x", "d.mmd"), "ignored.mmd", []byte("graph TD"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x", "d.mmd"), loc)
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "graph TD", string(data))

	loc, err = e.Write(context.Background(), dir, "job.drawio", []byte("<mxfile/>"), "application/xml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "job.drawio"), loc)

	loc, err = e.Write(context.Background(), filepath.Join(dir, "new")+"/", "job.puml", []byte("@startuml"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new", "job.puml"), loc)
}

func TestWriteS3(t *testing.T) {
	fake := &fakePutter{}
	e := &Exporter{S3: func(context.Context) (ObjectPutter, error) { return fake, nil }}

	loc, err := e.Write(context.Background(), "s3://bucket/exports", "abc.mmd", []byte("graph LR"), "text/vnd.mermaid")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/exports/abc.mmd", loc)
	assert.Equal(t, "bucket", fake.bucket)
	assert.Equal(t, "exports/abc.mmd", fake.key)
	assert.Equal(t, "text/vnd.mermaid", fake.contentType)
	assert.Equal(t, "graph LR", string(fake.body))
}

func TestWriteS3Errors(t *testing.T) {
	_, err := (&Exporter{}).Write(context.Background(), "s3://b", "a", nil, "text/plain")
	assert.Error(t, err)

	e := &Exporter{S3: func(context.Context) (ObjectPutter, error) { return nil, errors.New("no credentials") }}
	_, err = e.Write(context.Background(), "s3://b", "a", nil, "text/plain")
	assert.ErrorContains(t, err, "no credentials")

	e = &Exporter{S3: func(context.Context) (ObjectPutter, error) { return &fakePutter{err: errors.New("denied")}, nil }}
	_, err = e.Write(context.Background(), "s3://b", "a", nil, "text/plain")
	assert.ErrorContains(t, err, "denied")
}
