// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = "A\tB\n1\t2\n"

func readAll(t *testing.T, in *Input, wrap func(io.Reader, int64) io.Reader) string {
	t.Helper()
	r, err := in.Reader(wrap)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, in.Close())
	return string(b)
}

func TestOpen_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0o644))

	in, err := Open(context.Background(), path, OpenOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(sampleExport)), in.Size)
	assert.False(t, in.Compressed)

	var seen int64
	got := readAll(t, in, func(r io.Reader, size int64) io.Reader {
		seen = size
		return r
	})
	assert.Equal(t, sampleExport, got)
	assert.Equal(t, int64(len(sampleExport)), seen)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), OpenOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpen_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleExport))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "dump.txt.GZ")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	in, err := Open(context.Background(), path, OpenOptions{})
	require.NoError(t, err)
	assert.True(t, in.Compressed)

	var raw int64
	got := readAll(t, in, func(r io.Reader, size int64) io.Reader {
		raw = size
		return r
	})
	assert.Equal(t, sampleExport, got)
	assert.Equal(t, int64(buf.Len()), raw, "the hook sees compressed bytes")
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestInput_CloseReleasesGzipStream(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleExport))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	body := &closeRecorder{Reader: &buf}
	in := &Input{Name: "dump.txt.gz", Size: -1, Compressed: true, Body: body}
	r, err := in.Reader(nil)
	require.NoError(t, err)
	require.NotNil(t, in.gz)

	_, err = io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, in.Close())
	assert.Nil(t, in.gz)
	assert.True(t, body.closed)
}

func TestOpen_GzipCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))

	in, err := Open(context.Background(), path, OpenOptions{})
	require.NoError(t, err)
	defer func() { _ = in.Close() }()
	_, err = in.Reader(nil)
	assert.Error(t, err)
}

type fakeS3 struct {
	bucket, key string
	body        string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestOpen_S3(t *testing.T) {
	client := &fakeS3{body: sampleExport}
	in, err := Open(context.Background(), "s3://ebird-dumps/2016/dump.txt", OpenOptions{S3Client: client})
	require.NoError(t, err)

	assert.Equal(t, "ebird-dumps", client.bucket)
	assert.Equal(t, "2016/dump.txt", client.key)
	assert.Equal(t, int64(len(sampleExport)), in.Size)
	assert.Equal(t, sampleExport, readAll(t, in, nil))
}

func TestOpen_S3BadLocation(t *testing.T) {
	_, err := Open(context.Background(), "s3://bucket-only", OpenOptions{S3Client: &fakeS3{}})
	assert.Error(t, err)
}

func TestOpen_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dump.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, sampleExport)
	}))
	defer srv.Close()

	in, err := Open(context.Background(), srv.URL+"/dump.txt", OpenOptions{HTTPClient: srv.Client()})
	require.NoError(t, err)
	assert.Equal(t, sampleExport, readAll(t, in, nil))

	_, err = Open(context.Background(), srv.URL+"/missing.txt", OpenOptions{HTTPClient: srv.Client()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, srv.URL+"/missing.txt", re.Location)
}
