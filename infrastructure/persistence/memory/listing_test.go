package memory_test

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/domain/s3"
	"localcloud/infrastructure/persistence/memory"
	apperrors "localcloud/pkg/errors"
)

func putKeys(t *testing.T, store *memory.ObjectStore, bucket string, keys ...string) {
	t.Helper()
	for _, key := range keys {
		_, err := store.PutObject(bucket, key, []byte(key), s3.ObjectMetadata{})
		require.NoError(t, err)
	}
}

func TestListWithDelimiter(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "tree")
	putKeys(t, store, "tree",
		"photos/2024/jan/a",
		"photos/2024/feb/b",
		"documents/c",
		"root.txt",
	)

	listing, err := store.ListObjects("tree", "", "/", "", 1000)
	require.NoError(t, err)

	keys := objectKeys(listing.Objects)
	assert.Equal(t, []string{"root.txt"}, keys)
	assert.Equal(t, []string{"documents/", "photos/"}, listing.CommonPrefixes)

	listing, err = store.ListObjects("tree", "photos/2024/", "/", "", 1000)
	require.NoError(t, err)
	assert.Empty(t, listing.Objects)
	assert.Equal(t, []string{"photos/2024/feb/", "photos/2024/jan/"}, listing.CommonPrefixes)
}

func TestListPrefixFiltering(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "tree")
	putKeys(t, store, "tree", "a/1", "a/2", "b/1")

	listing, err := store.ListObjects("tree", "a/", "", "", 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, objectKeys(listing.Objects))
	assert.False(t, listing.IsTruncated)
}

func TestListTotalityViaContinuation(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "pages")

	var expected []string
	for i := 0; i < 25; i++ {
		expected = append(expected, fmt.Sprintf("key-%03d", i))
	}
	putKeys(t, store, "pages", expected...)
	sort.Strings(expected)

	var collected []string
	after := ""
	for {
		listing, err := store.ListObjects("pages", "", "", after, 7)
		require.NoError(t, err)
		collected = append(collected, objectKeys(listing.Objects)...)
		if !listing.IsTruncated {
			break
		}
		after = listing.NextMarker
	}

	assert.Equal(t, expected, collected,
		"chained pages cover every key exactly once in lexicographic order")
}

func TestListSkipsDeleteMarkedKeys(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-v")
	enableVersioning(t, store, "bucket-v")
	putKeys(t, store, "bucket-v", "kept", "removed")

	_, err := store.DeleteObject("bucket-v", "removed", "")
	require.NoError(t, err)

	listing, err := store.ListObjects("bucket-v", "", "", "", 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, objectKeys(listing.Objects))

	// The versions listing still shows the marker.
	versions, err := store.ListObjectVersions("bucket-v", "", "", "", "", 1000)
	require.NoError(t, err)
	markers := 0
	for _, item := range versions.Items {
		if item.Entry.IsDeleteMarker() {
			markers++
		}
	}
	assert.Equal(t, 1, markers)
}

func TestListRejectsNegativeMaxKeys(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket")

	_, err := store.ListObjects("bucket", "", "", "", -1)
	assert.True(t, apperrors.IsCode(err, "InvalidArgument"))
	_, err = store.ListObjectVersions("bucket", "", "", "", "", -1)
	assert.True(t, apperrors.IsCode(err, "InvalidArgument"))
}

func TestListVersionsPagination(t *testing.T) {
	store := newObjectStore(t)
	mustCreateBucket(t, store, "bucket-v")
	enableVersioning(t, store, "bucket-v")

	// Three versions across two keys.
	putKeys(t, store, "bucket-v", "a", "a", "b")

	var seen int
	keyMarker, versionMarker := "", ""
	for {
		listing, err := store.ListObjectVersions("bucket-v", "", "", keyMarker, versionMarker, 2)
		require.NoError(t, err)
		seen += len(listing.Items)
		if !listing.IsTruncated {
			break
		}
		keyMarker, versionMarker = listing.NextKeyMarker, listing.NextVersionIDMarker
	}
	assert.Equal(t, 3, seen)
}

func objectKeys(objects []s3.ObjectVersion) []string {
	keys := make([]string, len(objects))
	for i, object := range objects {
		keys[i] = object.Key
	}
	return keys
}
