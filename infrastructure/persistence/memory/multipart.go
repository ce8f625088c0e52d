package memory

import (
	"sort"
	"time"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

// CompletedPart is one element of a CompleteMultipartUpload request.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// CreateMultipartUpload registers a new upload and returns its record.
func (s *ObjectStore) CreateMultipartUpload(bucketName, key string, metadata s3.ObjectMetadata, checksumAlgorithm string) (*s3.MultipartUpload, error) {
	if !s3.ValidObjectKey(key) {
		return nil, apperrors.KeyTooLong()
	}
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return nil, err
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	upload := s3.NewMultipartUpload(newVersionID(), bucketName, key, bucket.meta.Owner, metadata)
	upload.ChecksumAlgorithm = checksumAlgorithm
	bucket.uploads[upload.UploadID] = upload
	return upload, nil
}

// UploadPart stores one part body and registers it under its part number,
// replacing an earlier upload of the same number.
func (s *ObjectStore) UploadPart(bucketName, uploadID string, partNumber int, body []byte, checksum *s3.Checksum) (string, error) {
	if partNumber < 1 || partNumber > s3.MaxPartNumber {
		return "", apperrors.InvalidArgument("part number must be an integer between 1 and 10000")
	}
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return "", err
	}

	bodyID, err := s.bodies.Write(body)
	if err != nil {
		return "", err
	}
	etag := s3.SingleETag(body)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	upload, ok := bucket.uploads[uploadID]
	if !ok {
		s.bodies.Release(bodyID)
		return "", apperrors.NoSuchUpload(uploadID)
	}
	if previous, exists := upload.Parts[partNumber]; exists && previous.BodyID != "" {
		s.bodies.Release(previous.BodyID)
	}
	upload.PutPart(s3.UploadPart{
		PartNumber:   partNumber,
		ETag:         etag,
		Size:         int64(len(body)),
		LastModified: time.Now().UTC(),
		BodyID:       bodyID,
		Checksum:     checksum,
	})
	return etag, nil
}

// ListParts returns the registered parts of an upload in ascending order.
func (s *ObjectStore) ListParts(bucketName, uploadID string) (*s3.MultipartUpload, []s3.UploadPart, error) {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return nil, nil, err
	}
	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	upload, ok := bucket.uploads[uploadID]
	if !ok {
		return nil, nil, apperrors.NoSuchUpload(uploadID)
	}
	clone := *upload
	return &clone, upload.SortedParts(), nil
}

// ListMultipartUploads returns in-progress uploads sorted by (key, upload id).
func (s *ObjectStore) ListMultipartUploads(bucketName, prefix string) ([]*s3.MultipartUpload, error) {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return nil, err
	}
	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	uploads := make([]*s3.MultipartUpload, 0, len(bucket.uploads))
	for _, upload := range bucket.uploads {
		if prefix == "" || len(upload.Key) >= len(prefix) && upload.Key[:len(prefix)] == prefix {
			clone := *upload
			uploads = append(uploads, &clone)
		}
	}
	sort.Slice(uploads, func(i, j int) bool {
		if uploads[i].Key != uploads[j].Key {
			return uploads[i].Key < uploads[j].Key
		}
		return uploads[i].UploadID < uploads[j].UploadID
	})
	return uploads, nil
}

// CompleteMultipartUpload assembles the supplied parts into one object. The
// upload entry is removed from the map first: that removal is the
// linearization point, so a concurrent Complete or Abort loses with
// NoSuchUpload.
func (s *ObjectStore) CompleteMultipartUpload(bucketName, uploadID string, parts []CompletedPart) (*s3.ObjectVersion, error) {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, apperrors.InvalidPart("you must specify at least one part")
	}

	bucket.mu.Lock()
	upload, ok := bucket.uploads[uploadID]
	if ok {
		delete(bucket.uploads, uploadID)
	}
	bucket.mu.Unlock()
	if !ok {
		return nil, apperrors.NoSuchUpload(uploadID)
	}

	// Validate the supplied manifest against the stored parts before
	// touching any bodies.
	previous := 0
	stored := make([]s3.UploadPart, 0, len(parts))
	for _, part := range parts {
		if part.PartNumber <= previous {
			s.restoreUpload(bucket, upload)
			return nil, apperrors.InvalidPartOrder()
		}
		previous = part.PartNumber
		held, exists := upload.Parts[part.PartNumber]
		if !exists || !s3.ETagsEqual(held.ETag, part.ETag) {
			s.restoreUpload(bucket, upload)
			return nil, apperrors.InvalidPart("one or more of the specified parts could not be found")
		}
		stored = append(stored, held)
	}
	for i, held := range stored {
		if i < len(stored)-1 && held.Size < s.minPartSize {
			s.restoreUpload(bucket, upload)
			return nil, apperrors.EntityTooSmall()
		}
	}

	assembled := make([]byte, 0)
	partETags := make([]string, 0, len(stored))
	for _, held := range stored {
		data, err := s.bodies.ReadAll(held.BodyID)
		if err != nil {
			s.restoreUpload(bucket, upload)
			return nil, err
		}
		assembled = append(assembled, data...)
		partETags = append(partETags, held.ETag)
	}

	bodyID, err := s.bodies.Write(assembled)
	if err != nil {
		s.restoreUpload(bucket, upload)
		return nil, err
	}

	// The upload is terminal now; free every part body, including parts
	// not referenced by the manifest.
	for _, held := range upload.Parts {
		s.bodies.Release(held.BodyID)
	}

	version := &s3.ObjectVersion{
		Key:          upload.Key,
		ETag:         s3.MultipartETag(partETags),
		Size:         int64(len(assembled)),
		LastModified: time.Now().UTC(),
		BodyID:       bodyID,
		Metadata:     upload.Metadata,
		Owner:        upload.Owner,
	}

	bucket.mu.Lock()
	s.insertVersionLocked(bucket, version)
	bucket.mu.Unlock()
	return version, nil
}

// AbortMultipartUpload terminates an upload and frees all part bodies.
func (s *ObjectStore) AbortMultipartUpload(bucketName, uploadID string) error {
	bucket, err := s.bucket(bucketName)
	if err != nil {
		return err
	}

	bucket.mu.Lock()
	upload, ok := bucket.uploads[uploadID]
	if ok {
		delete(bucket.uploads, uploadID)
	}
	bucket.mu.Unlock()
	if !ok {
		return apperrors.NoSuchUpload(uploadID)
	}

	for _, part := range upload.Parts {
		s.bodies.Release(part.BodyID)
	}
	return nil
}

// restoreUpload re-registers an upload after a failed completion so the
// client can retry with a corrected manifest.
func (s *ObjectStore) restoreUpload(bucket *bucketState, upload *s3.MultipartUpload) {
	bucket.mu.Lock()
	bucket.uploads[upload.UploadID] = upload
	bucket.mu.Unlock()
}
