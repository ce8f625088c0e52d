package memory_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/domain/s3"
	"localcloud/infrastructure/persistence/bodystore"
	"localcloud/infrastructure/persistence/memory"
	apperrors "localcloud/pkg/errors"
)

func TestMultipartAssembly(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-m")

	upload, err := store.CreateMultipartUpload("bucket-m", "mp", s3.ObjectMetadata{ContentType: "application/octet-stream"}, "")
	require.NoError(t, err)

	part1 := bytes.Repeat([]byte{0xAA}, 1024)
	part2 := bytes.Repeat([]byte{0xBB}, 1024)

	etag1, err := store.UploadPart("bucket-m", upload.UploadID, 1, part1, nil)
	require.NoError(t, err)
	etag2, err := store.UploadPart("bucket-m", upload.UploadID, 2, part2, nil)
	require.NoError(t, err)

	version, err := store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2048), version.Size)
	assert.True(t, strings.HasSuffix(version.ETag, `-2"`))
	assert.Equal(t, "application/octet-stream", version.Metadata.ContentType,
		"metadata captured at initiation applies to the completed object")

	body, err := store.Bodies().ReadAll(version.BodyID)
	require.NoError(t, err)
	assert.Equal(t, part1, body[:1024])
	assert.Equal(t, part2, body[1024:])

	// The upload id is spent.
	_, err = store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 1, ETag: etag1},
	})
	assert.True(t, apperrors.IsCode(err, "NoSuchUpload"))
}

func TestMultipartETagMatchesContract(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-m")

	upload, err := store.CreateMultipartUpload("bucket-m", "mp", s3.ObjectMetadata{}, "")
	require.NoError(t, err)

	etag1, err := store.UploadPart("bucket-m", upload.UploadID, 1, []byte("part one"), nil)
	require.NoError(t, err)
	etag2, err := store.UploadPart("bucket-m", upload.UploadID, 2, []byte("part two"), nil)
	require.NoError(t, err)

	version, err := store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)
	assert.Equal(t, s3.MultipartETag([]string{etag1, etag2}), version.ETag)
}

func TestCompleteRejectsWrongParts(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-m")

	upload, err := store.CreateMultipartUpload("bucket-m", "mp", s3.ObjectMetadata{}, "")
	require.NoError(t, err)
	etag1, err := store.UploadPart("bucket-m", upload.UploadID, 1, []byte("data"), nil)
	require.NoError(t, err)

	// Unknown part number.
	_, err = store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 3, ETag: etag1},
	})
	assert.True(t, apperrors.IsCode(err, "InvalidPart"))

	// Mismatched etag.
	_, err = store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 1, ETag: `"deadbeef"`},
	})
	assert.True(t, apperrors.IsCode(err, "InvalidPart"))

	// Descending part order.
	etag2, err := store.UploadPart("bucket-m", upload.UploadID, 2, []byte("more"), nil)
	require.NoError(t, err)
	_, err = store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 2, ETag: etag2},
		{PartNumber: 1, ETag: etag1},
	})
	assert.True(t, apperrors.IsCode(err, "InvalidPartOrder"))

	// A failed completion leaves the upload retryable.
	_, err = store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)
}

func TestMinimumPartSize(t *testing.T) {
	bodies, err := bodystore.New(1024, t.TempDir(), nil, nil)
	require.NoError(t, err)
	store := memory.NewObjectStore(bodies, "us-east-1", 16, nil, nil)
	require.NoError(t, store.CreateBucket("bucket-m", "", testOwner))

	upload, err := store.CreateMultipartUpload("bucket-m", "mp", s3.ObjectMetadata{}, "")
	require.NoError(t, err)
	etag1, err := store.UploadPart("bucket-m", upload.UploadID, 1, []byte("tiny"), nil)
	require.NoError(t, err)
	etag2, err := store.UploadPart("bucket-m", upload.UploadID, 2, []byte("also-tiny"), nil)
	require.NoError(t, err)

	_, err = store.CompleteMultipartUpload("bucket-m", upload.UploadID, []memory.CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	assert.True(t, apperrors.IsCode(err, "EntityTooSmall"),
		"every part except the last must meet the minimum size")
}

func TestAbortFreesParts(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-m")

	upload, err := store.CreateMultipartUpload("bucket-m", "mp", s3.ObjectMetadata{}, "")
	require.NoError(t, err)
	_, err = store.UploadPart("bucket-m", upload.UploadID, 1, []byte("data"), nil)
	require.NoError(t, err)

	require.NoError(t, store.AbortMultipartUpload("bucket-m", upload.UploadID))

	err = store.AbortMultipartUpload("bucket-m", upload.UploadID)
	assert.True(t, apperrors.IsCode(err, "NoSuchUpload"))

	_, _, err = store.ListParts("bucket-m", upload.UploadID)
	assert.True(t, apperrors.IsCode(err, "NoSuchUpload"))
}

func TestCompleteAbortRace(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-m")

	upload, err := store.CreateMultipartUpload("bucket-m", "mp", s3.ObjectMetadata{}, "")
	require.NoError(t, err)
	etag, err := store.UploadPart("bucket-m", upload.UploadID, 1, []byte("data"), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := store.CompleteMultipartUpload("bucket-m", upload.UploadID,
			[]memory.CompletedPart{{PartNumber: 1, ETag: etag}})
		results <- err
	}()
	go func() {
		defer wg.Done()
		results <- store.AbortMultipartUpload("bucket-m", upload.UploadID)
	}()
	wg.Wait()
	close(results)

	var succeeded, noSuchUpload int
	for err := range results {
		if err == nil {
			succeeded++
		} else if apperrors.IsCode(err, "NoSuchUpload") {
			noSuchUpload++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one terminal transition wins")
	assert.Equal(t, 1, noSuchUpload)
}

func TestListUploadsAndParts(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-m")

	first, err := store.CreateMultipartUpload("bucket-m", "b-key", s3.ObjectMetadata{}, "")
	require.NoError(t, err)
	_, err = store.CreateMultipartUpload("bucket-m", "a-key", s3.ObjectMetadata{}, "")
	require.NoError(t, err)

	uploads, err := store.ListMultipartUploads("bucket-m", "")
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "a-key", uploads[0].Key, "uploads sort by key")

	_, err = store.UploadPart("bucket-m", first.UploadID, 2, []byte("two"), nil)
	require.NoError(t, err)
	_, err = store.UploadPart("bucket-m", first.UploadID, 1, []byte("one"), nil)
	require.NoError(t, err)

	_, parts, err := store.ListParts("bucket-m", first.UploadID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 1, parts[0].PartNumber)
}
