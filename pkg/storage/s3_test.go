package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCDNURL(t *testing.T) {
	withCDN, err := NewS3Client(S3Config{Bucket: "b", Region: "us-east-1", CDNURL: "https://cdn.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/contents/Qm1", withCDN.GetCDNURL(ContentKey("Qm1")))

	plain, err := NewS3Client(S3Config{Bucket: "b", Region: "us-east-1", BasePath: "builder/"})
	require.NoError(t, err)
	assert.Equal(t, "https://b.s3.amazonaws.com/builder/items/i1/content.json", plain.GetCDNURL(ItemManifestKey("i1")))
}

func TestNewS3Client_RequiresBucket(t *testing.T) {
	_, err := NewS3Client(S3Config{})
	assert.Error(t, err)
}
