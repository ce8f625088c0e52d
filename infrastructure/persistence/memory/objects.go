package memory

import (
	"time"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

// GetResult carries the outcome of a read. DeleteMarker is set (together
// with a NoSuchKey error) when the selected entry is a delete marker.
type GetResult struct {
	Object       *s3.ObjectVersion
	DeleteMarker *s3.DeleteMarker
}

// DeleteResult describes what a DeleteObject call did.
type DeleteResult struct {
	// VersionID of the removed entry or the created delete marker.
	VersionID string
	// DeleteMarker is true when the call created a marker, or removed one.
	DeleteMarker bool
}

// PutObject stores a body under key and returns the new version. Version
// behavior follows the bucket's versioning status.
func (s *ObjectStore) PutObject(bucketName, key string, body []byte, metadata s3.ObjectMetadata) (*s3.ObjectVersion, error) {
	if !s3.ValidObjectKey(key) {
		if key != "" && len(key) > s3.MaxKeyBytes {
			return nil, apperrors.KeyTooLong()
		}
		return nil, apperrors.InvalidArgument("object key must not be empty")
	}
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return nil, err
	}

	bodyID, err := s.bodies.Write(body)
	if err != nil {
		return nil, err
	}

	version := &s3.ObjectVersion{
		Key:          key,
		ETag:         s3.SingleETag(body),
		Size:         int64(len(body)),
		LastModified: time.Now().UTC(),
		BodyID:       bodyID,
		Metadata:     metadata,
	}

	bucket.mu.Lock()
	version.Owner = bucket.meta.Owner
	s.insertVersionLocked(bucket, version)
	bucket.mu.Unlock()
	return version, nil
}

// insertVersionLocked applies the versioning transition for a put. The
// caller holds the bucket write lock.
func (s *ObjectStore) insertVersionLocked(bucket *bucketState, version *s3.ObjectVersion) {
	chain, ok := bucket.chains[version.Key]
	if !ok {
		chain = &s3.VersionChain{Key: version.Key}
		bucket.chains[version.Key] = chain
		bucket.insertKey(version.Key)
	}

	switch bucket.meta.Versioning {
	case s3.VersioningEnabled:
		version.VersionID = newVersionID()
		chain.Prepend(s3.VersionEntry{Object: version})
	case s3.VersioningSuspended:
		version.VersionID = s3.NullVersionID
		if bodyID, removed := chain.ReplaceNull(); removed && bodyID != "" {
			s.bodies.Release(bodyID)
		}
		chain.Prepend(s3.VersionEntry{Object: version})
	default: // unversioned: overwrite the single "null" entry
		version.VersionID = s3.NullVersionID
		if len(chain.Entries) > 0 {
			if old := chain.Entries[0].Object; old != nil && old.BodyID != "" {
				s.bodies.Release(old.BodyID)
			}
		}
		chain.Entries = []s3.VersionEntry{{Object: version}}
	}
}

// GetObject resolves key (optionally a specific version). Selecting a delete
// marker fails NoSuchKey with the marker attached to the result.
func (s *ObjectStore) GetObject(bucketName, key, versionID string) (GetResult, error) {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return GetResult{}, err
	}

	bucket.mu.RLock()
	defer bucket.mu.RUnlock()

	chain, ok := bucket.chains[key]
	if !ok {
		return GetResult{}, apperrors.NoSuchKey(key)
	}

	var entry s3.VersionEntry
	if versionID == "" {
		entry, ok = chain.Latest()
		if !ok {
			return GetResult{}, apperrors.NoSuchKey(key)
		}
	} else {
		entry, _, ok = chain.Find(versionID)
		if !ok {
			return GetResult{}, apperrors.NoSuchVersion(key)
		}
	}

	if entry.IsDeleteMarker() {
		marker := *entry.Marker
		return GetResult{DeleteMarker: &marker}, apperrors.NoSuchKey(key)
	}
	object := *entry.Object
	return GetResult{Object: &object}, nil
}

// DeleteObject removes a version or appends a delete marker, per the bucket
// versioning status and the presence of an explicit version id.
func (s *ObjectStore) DeleteObject(bucketName, key, versionID string) (DeleteResult, error) {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return DeleteResult{}, err
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	chain, chainExists := bucket.chains[key]

	if versionID != "" {
		if !chainExists {
			return DeleteResult{}, apperrors.NoSuchVersion(key)
		}
		entry, index, found := chain.Find(versionID)
		if !found {
			return DeleteResult{}, apperrors.NoSuchVersion(key)
		}
		if entry.Object != nil && entry.Object.BodyID != "" {
			s.bodies.Release(entry.Object.BodyID)
		}
		chain.RemoveAt(index)
		if len(chain.Entries) == 0 {
			delete(bucket.chains, key)
			bucket.removeKey(key)
		}
		return DeleteResult{VersionID: versionID, DeleteMarker: entry.IsDeleteMarker()}, nil
	}

	switch bucket.meta.Versioning {
	case s3.VersioningEnabled:
		if !chainExists {
			chain = &s3.VersionChain{Key: key}
			bucket.chains[key] = chain
			bucket.insertKey(key)
		}
		marker := &s3.DeleteMarker{
			Key:          key,
			VersionID:    newVersionID(),
			LastModified: time.Now().UTC(),
			Owner:        bucket.meta.Owner,
		}
		chain.Prepend(s3.VersionEntry{Marker: marker})
		return DeleteResult{VersionID: marker.VersionID, DeleteMarker: true}, nil

	case s3.VersioningSuspended:
		if !chainExists {
			chain = &s3.VersionChain{Key: key}
			bucket.chains[key] = chain
			bucket.insertKey(key)
		}
		if bodyID, removed := chain.ReplaceNull(); removed && bodyID != "" {
			s.bodies.Release(bodyID)
		}
		marker := &s3.DeleteMarker{
			Key:          key,
			VersionID:    s3.NullVersionID,
			LastModified: time.Now().UTC(),
			Owner:        bucket.meta.Owner,
		}
		chain.Prepend(s3.VersionEntry{Marker: marker})
		return DeleteResult{VersionID: marker.VersionID, DeleteMarker: true}, nil

	default: // unversioned: remove the single entry; deleting an absent key succeeds
		if chainExists {
			for _, entry := range chain.Entries {
				if entry.Object != nil && entry.Object.BodyID != "" {
					s.bodies.Release(entry.Object.BodyID)
				}
			}
			delete(bucket.chains, key)
			bucket.removeKey(key)
		}
		return DeleteResult{}, nil
	}
}

// CopyObject reads the source version and writes it under the destination,
// sharing the body when it is unchanged. directive REPLACE swaps in the
// provided metadata; COPY keeps the source's.
func (s *ObjectStore) CopyObject(srcBucket, srcKey, srcVersion, dstBucket, dstKey, directive string, newMetadata s3.ObjectMetadata) (*s3.ObjectVersion, error) {
	src, err := s.GetObject(srcBucket, srcKey, srcVersion)
	if err != nil {
		return nil, err
	}
	if !s3.ValidObjectKey(dstKey) {
		return nil, apperrors.KeyTooLong()
	}
	bucket, err := s.bucket(dstBucket)
	if err != nil {
		return nil, err
	}

	metadata := src.Object.Metadata
	if directive == "REPLACE" {
		metadata = newMetadata
	}

	// Share the body; refcount covers the new reference.
	s.bodies.Retain(src.Object.BodyID)

	version := &s3.ObjectVersion{
		Key:          dstKey,
		ETag:         src.Object.ETag,
		Size:         src.Object.Size,
		LastModified: time.Now().UTC(),
		BodyID:       src.Object.BodyID,
		Metadata:     metadata,
	}

	bucket.mu.Lock()
	version.Owner = bucket.meta.Owner
	s.insertVersionLocked(bucket, version)
	bucket.mu.Unlock()
	return version, nil
}

// UpdateObject applies fn to a stored version's metadata under the bucket
// write lock; used by the tagging and ACL endpoints.
func (s *ObjectStore) UpdateObject(bucketName, key, versionID string, fn func(*s3.ObjectVersion) error) error {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return err
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	chain, ok := bucket.chains[key]
	if !ok {
		return apperrors.NoSuchKey(key)
	}
	var entry s3.VersionEntry
	if versionID == "" {
		entry, ok = chain.Latest()
		if !ok {
			return apperrors.NoSuchKey(key)
		}
	} else {
		entry, _, ok = chain.Find(versionID)
		if !ok {
			return apperrors.NoSuchVersion(key)
		}
	}
	if entry.IsDeleteMarker() {
		return apperrors.NoSuchKey(key)
	}
	return fn(entry.Object)
}
