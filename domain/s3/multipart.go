package s3

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// MaxPartNumber is the highest part number S3 accepts.
const MaxPartNumber = 10000

// UploadPart is one uploaded part of a multipart upload.
type UploadPart struct {
	PartNumber   int
	ETag         string
	Size         int64
	LastModified time.Time
	BodyID       string
	Checksum     *Checksum
}

// MultipartUpload is an in-progress staged put. Parts is sparse, keyed by
// part number.
type MultipartUpload struct {
	UploadID          string
	Bucket            string
	Key               string
	Initiated         time.Time
	Owner             Owner
	Metadata          ObjectMetadata
	ChecksumAlgorithm string
	Parts             map[int]UploadPart
}

// NewMultipartUpload creates an upload with the metadata captured for the
// eventual completed object.
func NewMultipartUpload(uploadID, bucket, key string, owner Owner, metadata ObjectMetadata) *MultipartUpload {
	return &MultipartUpload{
		UploadID:  uploadID,
		Bucket:    bucket,
		Key:       key,
		Initiated: time.Now().UTC(),
		Owner:     owner,
		Metadata:  metadata,
		Parts:     map[int]UploadPart{},
	}
}

// PutPart registers a part, replacing any previous upload of the same number.
func (u *MultipartUpload) PutPart(part UploadPart) {
	u.Parts[part.PartNumber] = part
}

// SortedParts returns the registered parts in ascending part-number order.
func (u *MultipartUpload) SortedParts() []UploadPart {
	parts := make([]UploadPart, 0, len(u.Parts))
	for _, part := range u.Parts {
		parts = append(parts, part)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts
}

// SingleETag is the quoted-hex-MD5 etag of a single-part object body.
func SingleETag(body []byte) string {
	sum := md5.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// MultipartETag computes the completed-object etag: the hex MD5 of the
// concatenated binary part MD5s, suffixed with the part count.
func MultipartETag(partETags []string) string {
	hash := md5.New()
	for _, etag := range partETags {
		raw, err := hex.DecodeString(trimETag(etag))
		if err != nil {
			continue
		}
		hash.Write(raw)
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%s-%d", hex.EncodeToString(hash.Sum(nil)), len(partETags)))
}

// trimETag strips surrounding quotes from an etag.
func trimETag(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}

// ETagsEqual compares etags ignoring surrounding quotes.
func ETagsEqual(a, b string) bool {
	return trimETag(a) == trimETag(b)
}
