package memory

import (
	"sort"
	"strings"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

// ObjectListing is the engine-level result of a ListObjects call. Outputs
// (objects plus common prefixes) are capped at MaxKeys.
type ObjectListing struct {
	Objects        []s3.ObjectVersion
	CommonPrefixes []string
	IsTruncated    bool
	NextMarker     string
}

// VersionItem is one entry of a version listing with its chain position.
type VersionItem struct {
	Key      string
	IsLatest bool
	Entry    s3.VersionEntry
}

// VersionListing is the engine-level result of a ListObjectVersions call.
type VersionListing struct {
	Items               []VersionItem
	CommonPrefixes      []string
	IsTruncated         bool
	NextKeyMarker       string
	NextVersionIDMarker string
}

// ListObjects walks the sorted key space. after is the exclusive lower bound
// (marker, start-after or decoded continuation token). Keys whose latest
// entry is a delete marker are invisible here.
func (s *ObjectStore) ListObjects(bucketName, prefix, delimiter, after string, maxKeys int) (ObjectListing, error) {
	if maxKeys < 0 {
		return ObjectListing{}, apperrors.InvalidArgument("max-keys must not be negative")
	}
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return ObjectListing{}, err
	}
	if maxKeys == 0 {
		return ObjectListing{}, nil
	}

	bucket.mu.RLock()
	defer bucket.mu.RUnlock()

	var listing ObjectListing
	emitted := 0
	lastCommonPrefix := ""

	start := sort.SearchStrings(bucket.keys, prefix)
	for _, key := range bucket.keys[start:] {
		if !strings.HasPrefix(key, prefix) {
			break
		}

		output, isPrefix := collapseKey(key, prefix, delimiter)
		if after != "" && output <= after {
			continue
		}
		if isPrefix && output == lastCommonPrefix {
			continue
		}

		if !isPrefix {
			chain := bucket.chains[key]
			latest, ok := chain.Latest()
			if !ok || latest.IsDeleteMarker() {
				continue
			}
			if emitted == maxKeys {
				listing.IsTruncated = true
				break
			}
			listing.Objects = append(listing.Objects, *latest.Object)
		} else {
			if emitted == maxKeys {
				listing.IsTruncated = true
				break
			}
			listing.CommonPrefixes = append(listing.CommonPrefixes, output)
			lastCommonPrefix = output
		}
		emitted++
		listing.NextMarker = output
	}

	if !listing.IsTruncated {
		listing.NextMarker = ""
	}
	return listing, nil
}

// ListObjectVersions enumerates every entry (versions and delete markers)
// per key, newest first, with (key, version-id) continuation markers.
func (s *ObjectStore) ListObjectVersions(bucketName, prefix, delimiter, keyMarker, versionIDMarker string, maxKeys int) (VersionListing, error) {
	if maxKeys < 0 {
		return VersionListing{}, apperrors.InvalidArgument("max-keys must not be negative")
	}
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return VersionListing{}, err
	}
	if maxKeys == 0 {
		return VersionListing{}, nil
	}

	bucket.mu.RLock()
	defer bucket.mu.RUnlock()

	var listing VersionListing
	emitted := 0
	lastCommonPrefix := ""

	start := sort.SearchStrings(bucket.keys, prefix)
	for _, key := range bucket.keys[start:] {
		if !strings.HasPrefix(key, prefix) {
			break
		}
		if keyMarker != "" && key < keyMarker {
			continue
		}
		if keyMarker != "" && key == keyMarker && versionIDMarker == "" {
			continue
		}

		output, isPrefix := collapseKey(key, prefix, delimiter)
		if isPrefix {
			if keyMarker != "" && output <= keyMarker && key != keyMarker {
				continue
			}
			if output == lastCommonPrefix {
				continue
			}
			if emitted == maxKeys {
				listing.IsTruncated = true
				break
			}
			listing.CommonPrefixes = append(listing.CommonPrefixes, output)
			lastCommonPrefix = output
			emitted++
			listing.NextKeyMarker = output
			listing.NextVersionIDMarker = ""
			continue
		}

		chain := bucket.chains[key]
		startIndex := 0
		if key == keyMarker && versionIDMarker != "" {
			if _, i, found := chain.Find(versionIDMarker); found {
				startIndex = i + 1
			}
		}
		for i := startIndex; i < len(chain.Entries); i++ {
			if emitted == maxKeys {
				listing.IsTruncated = true
				return listing, nil
			}
			entry := chain.Entries[i]
			listing.Items = append(listing.Items, VersionItem{
				Key:      key,
				IsLatest: i == 0,
				Entry:    entry,
			})
			emitted++
			listing.NextKeyMarker = key
			listing.NextVersionIDMarker = entry.VersionID()
		}
	}

	if !listing.IsTruncated {
		listing.NextKeyMarker = ""
		listing.NextVersionIDMarker = ""
	}
	return listing, nil
}

// collapseKey folds a key into its common prefix when the delimiter occurs
// after the listing prefix. Returns the emitted string and whether it is a
// common prefix.
func collapseKey(key, prefix, delimiter string) (string, bool) {
	if delimiter == "" {
		return key, false
	}
	rest := key[len(prefix):]
	index := strings.Index(rest, delimiter)
	if index < 0 {
		return key, false
	}
	return prefix + rest[:index+len(delimiter)], true
}
