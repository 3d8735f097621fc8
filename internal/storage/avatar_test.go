package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvatarKey(t *testing.T) {
	tests := []struct {
		contentType string
		ext         string
	}{
		{"image/png", ".png"},
		{"image/webp", ".webp"},
		{"image/jpeg", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			key := AvatarKey("user_1", tt.contentType)
			assert.True(t, strings.HasPrefix(key, "avatars/user_1/"))
			assert.True(t, strings.HasSuffix(key, tt.ext))
		})
	}

	assert.NotEqual(t, AvatarKey("u", "image/png"), AvatarKey("u", "image/png"))
}

func TestObjectURL(t *testing.T) {
	aws := Options{Bucket: "avatars", Region: "eu-west-1"}
	assert.Equal(t, "https://avatars.s3.eu-west-1.amazonaws.com/a/b.png", ObjectURL(aws, "a/b.png"))

	minio := Options{Bucket: "avatars", Region: "us-east-1", Endpoint: "http://localhost:9000/"}
	assert.Equal(t, "http://localhost:9000/avatars/a/b.png", ObjectURL(minio, "a/b.png"))
}
