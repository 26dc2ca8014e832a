// Package loader reads documents for bulk indexing from local files, HTTP
// endpoints or S3 objects. Input is either a JSON array of objects or a
// stream of objects such as NDJSON.
package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrUnsupportedSource = errors.New("loader: unsupported source")

// ProgressFunc reports bytes read so far. total is -1 when unknown.
type ProgressFunc func(read, total int64)

// ObjectGetter is the part of the S3 API the loader uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader opens document sources.
type Loader struct {
	httpClient *http.Client
	s3         ObjectGetter
	progress   ProgressFunc
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client for http and https sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.httpClient = c
		}
	}
}

// WithS3Client sets the client for s3 sources. Without one the default AWS
// configuration is loaded on first use.
func WithS3Client(c ObjectGetter) Option {
	return func(l *Loader) {
		l.s3 = c
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(l *Loader) {
		l.progress = fn
	}
}

// New returns a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every document from source: a path, "-" for stdin, an
// http(s) URL or an s3://bucket/key URL.
func (l *Loader) Load(ctx context.Context, source string) ([]map[string]any, error) {
	rc, total, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	docs, err := Decode(&progressReader{ctx: ctx, r: rc, total: total, fn: l.progress})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	return docs, nil
}

func (l *Loader) open(ctx context.Context, source string) (io.ReadCloser, int64, error) {
	if source == "-" {
		return io.NopCloser(os.Stdin), -1, nil
	}
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, including Windows drive letters
		return openFile(source)
	}
	switch u.Scheme {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		return l.openHTTP(ctx, source)
	case "s3":
		return l.openS3(ctx, u)
	}
	return nil, 0, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
}

func openFile(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open documents: %w", err)
	}
	total := int64(-1)
	if info, err := f.Stat(); err == nil {
		total = info.Size()
	}
	return f, total, nil
}

func (l *Loader) openHTTP(ctx context.Context, source string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch documents: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("fetch documents: unexpected status code %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func (l *Loader) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	if l.s3 == nil {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("load AWS config: %w", err)
		}
		l.s3 = s3.NewFromConfig(cfg)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	out, err := l.s3.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, 0, fmt.Errorf("fetch s3://%s/%s: %w", bucket, key, err)
	}
	total := int64(-1)
	if out.ContentLength != nil {
		total = *out.ContentLength
	}
	return out.Body, total, nil
}

// Decode reads a JSON array of objects or a sequence of objects.
func Decode(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()
	if first == '[' {
		var docs []map[string]any
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		return docs, nil
	}

	var docs []map[string]any
	for n := 1; ; n++ {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", n, err)
		}
		docs = append(docs, doc)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

type progressReader struct {
	ctx   context.Context
	r     io.Reader
	total int64
	read  int64
	fn    ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil {
			p.fn(p.read, p.total)
		}
	}
	return n, err
}
