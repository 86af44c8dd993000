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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// ObjectGetter is the subset of the S3 client used to read an export.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// OpenOptions configures remote inputs.
type OpenOptions struct {
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	// S3Client overrides the client built from the options above.
	S3Client ObjectGetter
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Input is an opened export.
type Input struct {
	Name string
	// Size is the byte length of Body, or -1 if unknown.
	Size       int64
	Compressed bool
	Body       io.ReadCloser

	gz *gzip.Reader
}

// Open opens location, which may be a local path, "-" for stdin, an
// http(s) URL, or s3://bucket/key. A ".gz" suffix marks gzip input.
func Open(ctx context.Context, location string, opts OpenOptions) (*Input, error) {
	in := &Input{Name: location, Size: -1, Compressed: strings.HasSuffix(strings.ToLower(location), ".gz")}

	switch {
	case location == "-":
		in.Name = "stdin"
		in.Body = io.NopCloser(os.Stdin)
	case strings.HasPrefix(location, "s3://"):
		body, size, err := openS3(ctx, location, opts)
		if err != nil {
			return nil, &RemoteError{Location: location, Err: err}
		}
		in.Body, in.Size = body, size
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		body, size, err := openHTTP(ctx, location, opts.HTTPClient)
		if err != nil {
			return nil, &RemoteError{Location: location, Err: err}
		}
		in.Body, in.Size = body, size
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		if st, err := f.Stat(); err == nil {
			in.Size = st.Size()
		}
		in.Body = f
	}
	return in, nil
}

// Reader returns the decoded stream. wrap, if non-nil, sees the raw bytes
// before decompression, which is where progress is measured.
func (in *Input) Reader(wrap func(r io.Reader, size int64) io.Reader) (io.Reader, error) {
	var r io.Reader = in.Body
	if wrap != nil {
		r = wrap(r, in.Size)
	}
	if !in.Compressed {
		return r, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream %s: %w", in.Name, err)
	}
	in.gz = gz
	return gz, nil
}

// Close closes the gzip stream, if one was opened, and the underlying body.
func (in *Input) Close() error {
	var gzErr error
	if in.gz != nil {
		gzErr = in.gz.Close()
		in.gz = nil
	}
	return errors.Join(gzErr, in.Body.Close())
}

func openHTTP(ctx context.Context, location string, client *http.Client) (io.ReadCloser, int64, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", location, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("fetch %s: unexpected status %s", location, resp.Status)
	}
	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	return resp.Body, size, nil
}

func openS3(ctx context.Context, location string, opts OpenOptions) (io.ReadCloser, int64, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", location, err)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, 0, fmt.Errorf("s3 location %q must be s3://bucket/key", location)
	}

	client := opts.S3Client
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if opts.S3Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, 0, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if opts.S3PathStyle {
				o.UsePathStyle = true
			}
			if opts.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.S3Endpoint)
			}
		})
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", location, err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}
