package backup

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/recall/internal/memory"
)

func sampleRecords() []memory.Record {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	return []memory.Record{
		{ID: 1, Content: "The quarterly report is due Friday", Category: "Work", Model: "nomic-embed-text", Embedding: []float32{1, 0.5}, CreatedAt: created},
		{ID: 2, Content: "Favourite colour is ocean blue", Category: "General", CreatedAt: created.Add(time.Minute)},
	}
}

func TestNewSnapshot(t *testing.T) {
	now := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	snap := NewSnapshot(sampleRecords(), now)

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, now, snap.ExportedAt)
	assert.Equal(t, 2, snap.Count)
	require.Len(t, snap.Memories, 2)
	assert.Equal(t, "2024-05-01 09:30:00", snap.Memories[0].CreatedAt)

	blob, err := base64.StdEncoding.DecodeString(snap.Memories[0].Embedding)
	require.NoError(t, err)
	vec, err := memory.DecodeEmbedding(blob)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0.5}, vec)
	assert.Empty(t, snap.Memories[1].Embedding)
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestExporter_Export(t *testing.T) {
	ctx := context.Background()
	p := &fakePutter{}
	e := NewExporter(p, "bucket", "recall/backups", nil)
	e.now = func() time.Time { return time.Date(2024, 5, 2, 3, 4, 5, 0, time.UTC) }

	key, err := e.Export(ctx, sampleRecords())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "recall/backups/memories-20240502T030405Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".json"))
	assert.Equal(t, "bucket", *p.input.Bucket)
	assert.Equal(t, key, *p.input.Key)
	assert.Equal(t, "application/json", *p.input.ContentType)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(p.body, &snap))
	assert.Equal(t, 2, snap.Count)
	assert.Contains(t, key, snap.ID)

	p.err = errors.New("access denied")
	_, err = e.Export(ctx, nil)
	assert.ErrorContains(t, err, "access denied")
}

// TestS3Exporter_Endpoint runs against a fake S3 endpoint in path-style mode.
func TestS3Exporter_Endpoint(t *testing.T) {
	var (
		mu     sync.Mutex
		path   string
		method string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path, method = r.URL.Path, r.Method
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	e, err := NewS3Exporter(ctx, Config{
		Bucket:          "memories",
		Prefix:          "nightly",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	}, nil)
	require.NoError(t, err)

	key, err := e.Export(ctx, sampleRecords())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/memories/"+key, path)
	assert.Contains(t, string(body), "quarterly report")

	_, err = NewS3Exporter(ctx, Config{}, nil)
	assert.Error(t, err)
}
