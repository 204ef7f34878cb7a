package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey(42, "resume.pdf")
	assert.True(t, strings.HasPrefix(key, "media/42/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	noExt := NewObjectKey(42, "README")
	assert.True(t, strings.HasPrefix(noExt, "media/42/"))
	assert.NotContains(t, noExt, ".")
}

func TestFileURL(t *testing.T) {
	c := &Client{cfg: S3Config{Region: "eu-west-1", Bucket: "alumnet-media"}}
	assert.Equal(t, "https://alumnet-media.s3.eu-west-1.amazonaws.com/media/1/x.jpg", c.FileURL("media/1/x.jpg"))
	assert.Equal(t, "", c.FileURL(""))

	c.cfg.PublicBase = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com/media/1/x.jpg", c.FileURL("media/1/x.jpg"))
}
