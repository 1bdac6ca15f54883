package storage

import (
	"context"
	"testing"

	"github.com/shrimpcod/RealTimeChat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3StoreDisabledWithoutBucket(t *testing.T) {
	store, err := NewS3Store(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com",
		publicBase(&config.Config{S3Bucket: "b", S3PublicURL: "https://cdn.example.com/"}))
	assert.Equal(t, "http://localhost:9000/avatars",
		publicBase(&config.Config{S3Bucket: "avatars", S3Endpoint: "http://localhost:9000"}))
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com",
		publicBase(&config.Config{S3Bucket: "b", S3Region: "eu-west-1"}))
}

func TestObjectURLEscapesSegments(t *testing.T) {
	s := &S3Store{publicURL: "https://cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/avatars/u1/a%20b.png", s.ObjectURL("avatars/u1/a b.png"))
}
