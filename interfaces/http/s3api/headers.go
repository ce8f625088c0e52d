package s3api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

const metadataPrefix = "x-amz-meta-"

var checksumAlgorithms = []string{"CRC32", "CRC32C", "SHA1", "SHA256"}

// captureObjectMetadata collects the object attributes carried in request
// headers on PutObject / CreateMultipartUpload / CopyObject.
func captureObjectMetadata(r *http.Request) (s3.ObjectMetadata, error) {
	metadata := s3.ObjectMetadata{
		ContentType:        r.Header.Get("Content-Type"),
		ContentEncoding:    r.Header.Get("Content-Encoding"),
		CacheControl:       r.Header.Get("Cache-Control"),
		ContentDisposition: r.Header.Get("Content-Disposition"),
		ContentLanguage:    r.Header.Get("Content-Language"),
		Expires:            r.Header.Get("Expires"),
		StorageClass:       r.Header.Get("x-amz-storage-class"),
		SSEAlgorithm:       r.Header.Get("x-amz-server-side-encryption"),
		SSEKMSKeyID:        r.Header.Get("x-amz-server-side-encryption-aws-kms-key-id"),
		WebsiteRedirect:    r.Header.Get("x-amz-website-redirect-location"),
		ACL:                r.Header.Get("x-amz-acl"),
	}
	if metadata.StorageClass == "" {
		metadata.StorageClass = "STANDARD"
	}

	userMetadata := map[string]string{}
	for name, values := range r.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, metadataPrefix) && len(values) > 0 {
			userMetadata[strings.TrimPrefix(lower, metadataPrefix)] = values[0]
		}
	}
	if len(userMetadata) > 0 {
		if err := s3.ValidateMetadata(userMetadata); err != nil {
			return metadata, apperrors.InvalidArgument(err.Error())
		}
		metadata.UserMetadata = userMetadata
	}

	if tagging := r.Header.Get("x-amz-tagging"); tagging != "" {
		tags, err := parseTaggingHeader(tagging)
		if err != nil {
			return metadata, err
		}
		metadata.Tags = tags
	}

	for _, algorithm := range checksumAlgorithms {
		header := "x-amz-checksum-" + strings.ToLower(algorithm)
		if value := r.Header.Get(header); value != "" {
			metadata.Checksum = &s3.Checksum{Algorithm: algorithm, Value: value}
			break
		}
	}
	return metadata, nil
}

// parseTaggingHeader parses the URL-encoded x-amz-tagging value.
func parseTaggingHeader(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, apperrors.InvalidTag("tagging header is not URL-encoded")
	}
	tags := map[string]string{}
	for key, list := range values {
		if len(list) > 0 {
			tags[key] = list[0]
		}
	}
	if err := s3.ValidateTags(tags); err != nil {
		return nil, apperrors.InvalidTag(err.Error())
	}
	return tags, nil
}

// writeObjectHeaders emits the standard object response headers plus the
// stored metadata and any response-* query overrides.
func writeObjectHeaders(w http.ResponseWriter, object *s3.ObjectVersion, query map[string]string) {
	header := w.Header()
	header.Set("ETag", object.ETag)
	header.Set("Last-Modified", object.LastModified.UTC().Format(http.TimeFormat))
	header.Set("Accept-Ranges", "bytes")

	contentType := object.Metadata.ContentType
	if contentType == "" {
		contentType = "binary/octet-stream"
	}
	setOrOverride(header, "Content-Type", contentType, query["response-content-type"])
	setOrOverride(header, "Content-Encoding", object.Metadata.ContentEncoding, query["response-content-encoding"])
	setOrOverride(header, "Cache-Control", object.Metadata.CacheControl, query["response-cache-control"])
	setOrOverride(header, "Content-Disposition", object.Metadata.ContentDisposition, query["response-content-disposition"])
	setOrOverride(header, "Content-Language", object.Metadata.ContentLanguage, query["response-content-language"])
	setOrOverride(header, "Expires", object.Metadata.Expires, query["response-expires"])

	if object.Metadata.StorageClass != "" && object.Metadata.StorageClass != "STANDARD" {
		header.Set("x-amz-storage-class", object.Metadata.StorageClass)
	}
	if object.VersionID != "" && object.VersionID != s3.NullVersionID {
		header.Set("x-amz-version-id", object.VersionID)
	}
	if object.Metadata.SSEAlgorithm != "" {
		header.Set("x-amz-server-side-encryption", object.Metadata.SSEAlgorithm)
	}
	if object.Metadata.WebsiteRedirect != "" {
		header.Set("x-amz-website-redirect-location", object.Metadata.WebsiteRedirect)
	}
	if checksum := object.Metadata.Checksum; checksum != nil {
		header.Set("x-amz-checksum-"+strings.ToLower(checksum.Algorithm), checksum.Value)
	}
	if count := len(object.Metadata.Tags); count > 0 {
		header.Set("x-amz-tagging-count", strconv.Itoa(count))
	}
	for key, value := range object.Metadata.UserMetadata {
		header.Set(metadataPrefix+key, value)
	}
}

func setOrOverride(header http.Header, name, stored, override string) {
	value := stored
	if override != "" {
		value = override
	}
	if value != "" {
		header.Set(name, value)
	}
}

// parseISO8601 accepts the timestamp forms AWS clients send.
func parseISO8601(value string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05.000Z", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
