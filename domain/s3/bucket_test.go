package s3_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"localcloud/domain/s3"
)

func TestValidBucketName(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"my-bucket", true},
		{"bucket.with.dots", true},
		{"abc", true},
		{"a1b2c3", true},
		{strings.Repeat("a", 63), true},

		{"ab", false},                       // too short
		{strings.Repeat("a", 64), false},    // too long
		{"MyBucket", false},                 // uppercase
		{"-bucket", false},                  // leading hyphen
		{"bucket-", false},                  // trailing hyphen
		{".bucket", false},                  // leading dot
		{"my..bucket", false},               // consecutive dots
		{"192.168.0.1", false},              // IP shaped
		{"xn--example", false},              // punycode prefix
		{"sthree-bucket", false},            // reserved prefix
		{"mybucket-s3alias", false},         // reserved suffix
		{"bucket_with_underscores", false},  // invalid character
		{"bucket with spaces", false},       // invalid character
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, s3.ValidBucketName(tc.name))
		})
	}
}

func TestValidObjectKey(t *testing.T) {
	assert.True(t, s3.ValidObjectKey("photos/2024/jan/a.jpg"))
	assert.False(t, s3.ValidObjectKey(""))
	assert.False(t, s3.ValidObjectKey(strings.Repeat("k", s3.MaxKeyBytes+1)))
	assert.True(t, s3.ValidObjectKey(strings.Repeat("k", s3.MaxKeyBytes)))
}

func TestValidateTags(t *testing.T) {
	tags := map[string]string{}
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		tags[key] = "v"
	}
	assert.NoError(t, s3.ValidateTags(tags))

	tags["k"] = "v"
	assert.Error(t, s3.ValidateTags(tags))

	assert.Error(t, s3.ValidateTags(map[string]string{"": "v"}))
	assert.Error(t, s3.ValidateTags(map[string]string{strings.Repeat("k", 129): "v"}))
	assert.Error(t, s3.ValidateTags(map[string]string{"k": strings.Repeat("v", 257)}))
}

func TestValidateMetadata(t *testing.T) {
	assert.NoError(t, s3.ValidateMetadata(map[string]string{"small": "value"}))
	assert.Error(t, s3.ValidateMetadata(map[string]string{"big": strings.Repeat("x", 2049)}))
}
