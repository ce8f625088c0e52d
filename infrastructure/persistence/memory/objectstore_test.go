package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/domain/s3"
	"localcloud/infrastructure/persistence/bodystore"
	"localcloud/infrastructure/persistence/memory"
	apperrors "localcloud/pkg/errors"
)

var testOwner = s3.Owner{ID: "owner-1", DisplayName: "owner"}

func newObjectStore(t *testing.T) *memory.ObjectStore {
	t.Helper()
	bodies, err := bodystore.New(1024, t.TempDir(), nil, nil)
	require.NoError(t, err)
	return memory.NewObjectStore(bodies, "us-east-1", 0, nil, nil)
}

func mustCreateBucket(t *testing.T, store *memory.ObjectStore, name string) {
	t.Helper()
	require.NoError(t, store.CreateBucket(name, "", testOwner))
}

func TestBucketLifecycle(t *testing.T) {
	store := newObjectStore(t)

	mustCreateBucket(t, store, "bucket-a")
	assert.True(t, store.BucketExists("bucket-a"))

	bucket, err := store.Bucket("bucket-a")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", bucket.Region)

	require.NoError(t, store.DeleteBucket("bucket-a"))
	assert.False(t, store.BucketExists("bucket-a"))
}

func TestCreateBucketRejectsInvalidName(t *testing.T) {
	store := newObjectStore(t)
	err := store.CreateBucket("ab", "", testOwner)
	assert.True(t, apperrors.IsCode(err, "InvalidBucketName"))
}

func TestBucketNameUniqueness(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "shared-name")

	err := store.CreateBucket("shared-name", "", testOwner)
	assert.True(t, apperrors.IsCode(err, "BucketAlreadyOwnedByYou"))

	err = store.CreateBucket("shared-name", "", s3.Owner{ID: "other-account"})
	assert.True(t, apperrors.IsCode(err, "BucketAlreadyExists"),
		"bucket names are globally unique across accounts")
}

func TestDeleteBucketRequiresEmpty(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "busy")

	_, err := store.PutObject("busy", "key", []byte("data"), s3.ObjectMetadata{})
	require.NoError(t, err)

	err = store.DeleteBucket("busy")
	assert.True(t, apperrors.IsCode(err, "BucketNotEmpty"))

	_, err = store.DeleteObject("busy", "key", "")
	require.NoError(t, err)
	assert.NoError(t, store.DeleteBucket("busy"))
}

func TestDeleteBucketRejectsInProgressUploads(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "uploads")

	_, err := store.CreateMultipartUpload("uploads", "staged", s3.ObjectMetadata{}, "")
	require.NoError(t, err)

	err = store.DeleteBucket("uploads")
	assert.True(t, apperrors.IsCode(err, "BucketNotEmpty"))
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "data")

	version, err := store.PutObject("data", "k", []byte("value"), s3.ObjectMetadata{ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, s3.NullVersionID, version.VersionID)
	assert.Equal(t, s3.SingleETag([]byte("value")), version.ETag)

	result, err := store.GetObject("data", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", result.Object.Metadata.ContentType)

	body, err := store.Bodies().ReadAll(result.Object.BodyID)
	require.NoError(t, err)
	assert.Equal(t, "value", string(body))
}

func TestUnversionedOverwrite(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "data")

	_, err := store.PutObject("data", "k", []byte("v1"), s3.ObjectMetadata{})
	require.NoError(t, err)
	_, err = store.PutObject("data", "k", []byte("v2"), s3.ObjectMetadata{})
	require.NoError(t, err)

	result, err := store.GetObject("data", "k", "")
	require.NoError(t, err)
	body, err := store.Bodies().ReadAll(result.Object.BodyID)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))

	listing, err := store.ListObjectVersions("data", "", "", "", "", 1000)
	require.NoError(t, err)
	assert.Len(t, listing.Items, 1, "unversioned buckets keep a single entry per key")
}

func TestDeleteObjectIdempotentUnversioned(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "data")

	_, err := store.PutObject("data", "k", []byte("v"), s3.ObjectMetadata{})
	require.NoError(t, err)

	first, err := store.DeleteObject("data", "k", "")
	require.NoError(t, err)
	assert.False(t, first.DeleteMarker)

	second, err := store.DeleteObject("data", "k", "")
	require.NoError(t, err, "deleting an absent key succeeds")
	assert.False(t, second.DeleteMarker)

	_, err = store.GetObject("data", "k", "")
	assert.True(t, apperrors.IsCode(err, "NoSuchKey"))
}

func enableVersioning(t *testing.T, store *memory.ObjectStore, bucket string) {
	t.Helper()
	require.NoError(t, store.UpdateBucket(bucket, func(b *s3.Bucket) error {
		b.Versioning = s3.VersioningEnabled
		return nil
	}))
}

func TestVersionedPutPrepends(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-v")
	enableVersioning(t, store, "bucket-v")

	v1, err := store.PutObject("bucket-v", "k", []byte("v1"), s3.ObjectMetadata{})
	require.NoError(t, err)
	v2, err := store.PutObject("bucket-v", "k", []byte("v2"), s3.ObjectMetadata{})
	require.NoError(t, err)
	require.NotEqual(t, v1.VersionID, v2.VersionID)

	// Latest read returns v2, explicit version returns v1.
	latest, err := store.GetObject("bucket-v", "k", "")
	require.NoError(t, err)
	body, err := store.Bodies().ReadAll(latest.Object.BodyID)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))

	old, err := store.GetObject("bucket-v", "k", v1.VersionID)
	require.NoError(t, err)
	body, err = store.Bodies().ReadAll(old.Object.BodyID)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(body))

	listing, err := store.ListObjectVersions("bucket-v", "", "", "", "", 1000)
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	assert.True(t, listing.Items[0].IsLatest)
	assert.Equal(t, v2.VersionID, listing.Items[0].Entry.VersionID())
	assert.False(t, listing.Items[1].IsLatest)
}

func TestVersionedDeleteAppendsMarker(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-v")
	enableVersioning(t, store, "bucket-v")

	put, err := store.PutObject("bucket-v", "k", []byte("v1"), s3.ObjectMetadata{})
	require.NoError(t, err)

	deleted, err := store.DeleteObject("bucket-v", "k", "")
	require.NoError(t, err)
	assert.True(t, deleted.DeleteMarker)

	// GET fails NoSuchKey but surfaces the marker.
	result, err := store.GetObject("bucket-v", "k", "")
	assert.True(t, apperrors.IsCode(err, "NoSuchKey"))
	assert.NotNil(t, result.DeleteMarker)

	// Older versions stay reachable.
	old, err := store.GetObject("bucket-v", "k", put.VersionID)
	require.NoError(t, err)
	assert.NotNil(t, old.Object)

	// Removing the marker by version id restores the key.
	_, err = store.DeleteObject("bucket-v", "k", deleted.VersionID)
	require.NoError(t, err)
	restored, err := store.GetObject("bucket-v", "k", "")
	require.NoError(t, err)
	assert.NotNil(t, restored.Object)
}

func TestSuspendedVersioningReplacesNull(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-s")

	_, err := store.PutObject("bucket-s", "k", []byte("null-v"), s3.ObjectMetadata{})
	require.NoError(t, err)

	enableVersioning(t, store, "bucket-s")
	enabled, err := store.PutObject("bucket-s", "k", []byte("real-v"), s3.ObjectMetadata{})
	require.NoError(t, err)

	require.NoError(t, store.UpdateBucket("bucket-s", func(b *s3.Bucket) error {
		b.Versioning = s3.VersioningSuspended
		return nil
	}))

	suspended, err := store.PutObject("bucket-s", "k", []byte("suspended-v"), s3.ObjectMetadata{})
	require.NoError(t, err)
	assert.Equal(t, s3.NullVersionID, suspended.VersionID)

	listing, err := store.ListObjectVersions("bucket-s", "", "", "", "", 1000)
	require.NoError(t, err)
	require.Len(t, listing.Items, 2, "the null entry was replaced, the real version preserved")
	assert.Equal(t, s3.NullVersionID, listing.Items[0].Entry.VersionID())
	assert.Equal(t, enabled.VersionID, listing.Items[1].Entry.VersionID())
}

func TestCopyObjectSharesBody(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "src")
	mustCreateBucket(t, store, "dst")

	original, err := store.PutObject("src", "k", []byte("payload"), s3.ObjectMetadata{ContentType: "text/plain"})
	require.NoError(t, err)

	copied, err := store.CopyObject("src", "k", "", "dst", "k2", "COPY", s3.ObjectMetadata{})
	require.NoError(t, err)
	assert.Equal(t, original.ETag, copied.ETag)
	assert.Equal(t, original.BodyID, copied.BodyID)
	assert.Equal(t, "text/plain", copied.Metadata.ContentType)

	// Deleting the source leaves the copy readable.
	_, err = store.DeleteObject("src", "k", "")
	require.NoError(t, err)
	body, err := store.Bodies().ReadAll(copied.BodyID)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestCopyObjectReplaceDirective(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "src")

	_, err := store.PutObject("src", "k", []byte("x"), s3.ObjectMetadata{ContentType: "text/plain"})
	require.NoError(t, err)

	copied, err := store.CopyObject("src", "k", "", "src", "k2", "REPLACE",
		s3.ObjectMetadata{ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", copied.Metadata.ContentType)
}

func TestReset(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "gone")
	store.Reset()
	assert.False(t, store.BucketExists("gone"))
	assert.Empty(t, store.ListBuckets())
}
