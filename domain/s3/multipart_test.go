package s3_test

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/domain/s3"
)

func TestSingleETag(t *testing.T) {
	body := []byte("hello world")
	sum := md5.Sum(body)
	expected := `"` + hex.EncodeToString(sum[:]) + `"`

	assert.Equal(t, expected, s3.SingleETag(body))
	// Same bytes always hash to the same etag.
	assert.Equal(t, s3.SingleETag(body), s3.SingleETag([]byte("hello world")))
}

func TestMultipartETag(t *testing.T) {
	part1 := md5.Sum([]byte("part one"))
	part2 := md5.Sum([]byte("part two"))

	concatenated := append(append([]byte{}, part1[:]...), part2[:]...)
	final := md5.Sum(concatenated)
	expected := fmt.Sprintf("%q", hex.EncodeToString(final[:])+"-2")

	etags := []string{
		`"` + hex.EncodeToString(part1[:]) + `"`,
		`"` + hex.EncodeToString(part2[:]) + `"`,
	}
	assert.Equal(t, expected, s3.MultipartETag(etags))

	// Determinism over the same ordered etag list.
	assert.Equal(t, s3.MultipartETag(etags), s3.MultipartETag(etags))
}

func TestMultipartUploadParts(t *testing.T) {
	upload := s3.NewMultipartUpload("uid", "bucket", "key", s3.Owner{ID: "o"}, s3.ObjectMetadata{})

	upload.PutPart(s3.UploadPart{PartNumber: 2, ETag: `"b"`, Size: 2})
	upload.PutPart(s3.UploadPart{PartNumber: 1, ETag: `"a"`, Size: 1})
	upload.PutPart(s3.UploadPart{PartNumber: 1, ETag: `"a2"`, Size: 3})

	parts := upload.SortedParts()
	require.Len(t, parts, 2)
	assert.Equal(t, 1, parts[0].PartNumber)
	assert.Equal(t, `"a2"`, parts[0].ETag)
	assert.Equal(t, 2, parts[1].PartNumber)
}

func TestETagsEqual(t *testing.T) {
	assert.True(t, s3.ETagsEqual(`"abc"`, "abc"))
	assert.True(t, s3.ETagsEqual("abc", "abc"))
	assert.False(t, s3.ETagsEqual(`"abc"`, `"abd"`))
}
