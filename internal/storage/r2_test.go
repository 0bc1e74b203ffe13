package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specsharp/internal/apperr"
	"specsharp/internal/taxonomy"
)

// fakeBucket is an in-memory stand-in for the S3 API.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestPutGet(t *testing.T) {
	fake := newFakeBucket()
	store := newClient(fake, "costs", "https://cdn.example.com/")
	ctx := context.Background()

	url, err := store.Put(ctx, "a/b.yaml", "application/yaml", []byte("x: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a/b.yaml", url)
	assert.Equal(t, "application/yaml", fake.types["costs/a/b.yaml"])

	got, err := store.Get(ctx, "a/b.yaml")
	require.NoError(t, err)
	assert.Equal(t, "x: 1\n", string(got))

	_, err = store.Get(ctx, "missing.yaml")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestURLWithoutBase(t *testing.T) {
	store := newClient(newFakeBucket(), "costs", "")
	assert.Equal(t, "https://costs/k", store.URL("k"))
}

func TestPublishThenVerify(t *testing.T) {
	reg, err := taxonomy.Default()
	require.NoError(t, err)
	store := newClient(newFakeBucket(), "costs", "")
	ctx := context.Background()
	const key = "taxonomy/taxonomy_export.yaml"

	_, err = PublishExport(ctx, store, key, reg)
	require.NoError(t, err)

	local, err := taxonomy.MarshalExport(reg.Export())
	require.NoError(t, err)
	assert.NoError(t, VerifyPublished(ctx, store, key, local))

	tampered := bytes.Replace(local, []byte("base_cost_per_sf: 350"), []byte("base_cost_per_sf: 351"), 1)
	require.NotEqual(t, local, tampered)
	err = VerifyPublished(ctx, store, key, tampered)
	assert.True(t, errors.Is(err, taxonomy.ErrExportDrift))
}

func TestNewR2ClientRequiresBucket(t *testing.T) {
	_, err := NewR2Client(context.Background(), Options{Endpoint: "https://r2.example.com"})
	assert.Error(t, err)
}
