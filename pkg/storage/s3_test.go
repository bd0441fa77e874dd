package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBucket_RequiresName(t *testing.T) {
	_, err := NewBucket(context.Background(), Config{})
	assert.Error(t, err)
}

func TestBucket_EmptyKey(t *testing.T) {
	b, err := NewBucket(context.Background(), Config{
		Endpoint:     "localhost:9000",
		Bucket:       "memos",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, b.PutObject(ctx, "", "image/png", []byte("x")), ErrEmptyKey)
	assert.ErrorIs(t, b.DeleteObject(ctx, ""), ErrEmptyKey)
	_, err = b.DownloadURL(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestBucket_DownloadURLIsPathStyle(t *testing.T) {
	b, err := NewBucket(context.Background(), Config{
		Endpoint:     "localhost:9000",
		Bucket:       "memos",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	url, err := b.DownloadURL(context.Background(), "customers/1/a.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/memos/customers/1/a.png"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
}
