package loader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ndjson = `{"_id":"a","title":"Jazz night","seats":120}
{"_id":"b","title":"Opera"}
`

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []any
	}{
		{name: "ndjson", input: ndjson, wantIDs: []any{"a", "b"}},
		{name: "array", input: ` [{"_id":"a"},{"_id":"b"}]`, wantIDs: []any{"a", "b"}},
		{name: "pretty stream", input: "{\n  \"_id\": \"a\"\n}\n\n{\"_id\": \"b\"}", wantIDs: []any{"a", "b"}},
		{name: "empty", input: "  \n", wantIDs: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := Decode(strings.NewReader(tc.input))
			require.NoError(t, err)
			var ids []any
			for _, d := range docs {
				ids = append(ids, d["_id"])
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func TestDecode_KeepsNumbers(t *testing.T) {
	docs, err := Decode(strings.NewReader(ndjson))
	require.NoError(t, err)
	assert.Equal(t, json.Number("120"), docs[0]["seats"])
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader("{\"_id\":\"a\"}\n[1]"))
	require.ErrorContains(t, err, "document 2")

	_, err = Decode(strings.NewReader(`[{"_id":`))
	require.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(ndjson), 0o600))

	var last, total int64
	l := New(WithProgress(func(read, size int64) { last, total = read, size }))
	docs, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, int64(len(ndjson)), last)
	assert.Equal(t, int64(len(ndjson)), total)

	docs, err = l.Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs.ndjson" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, ndjson)
	}))
	defer srv.Close()

	l := New(WithHTTPClient(srv.Client()))
	docs, err := l.Load(context.Background(), srv.URL+"/docs.ndjson")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = l.Load(context.Background(), srv.URL+"/missing")
	require.ErrorContains(t, err, "unexpected status code 404")
}

type fakeS3 struct {
	bucket, key string
	body        string
	err         error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestLoad_S3(t *testing.T) {
	fake := &fakeS3{body: ndjson}
	docs, err := New(WithS3Client(fake)).Load(context.Background(), "s3://fixtures/events/docs.ndjson")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "fixtures", fake.bucket)
	assert.Equal(t, "events/docs.ndjson", fake.key)

	denied := errors.New("access denied")
	_, err = New(WithS3Client(&fakeS3{err: denied})).Load(context.Background(), "s3://fixtures/x")
	require.ErrorIs(t, err, denied)
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	_, err := New().Load(context.Background(), "ftp://example.com/docs.json")
	require.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(WithS3Client(&fakeS3{body: ndjson})).Load(ctx, "s3://fixtures/x")
	require.ErrorIs(t, err, context.Canceled)
}
