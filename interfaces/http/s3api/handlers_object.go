package s3api

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

func (s *Service) handlePutObject(ctx *requestContext) error {
	metadata, err := captureObjectMetadata(ctx.r)
	if err != nil {
		return err
	}
	if err := verifyContentMD5(ctx.r.Header.Get("Content-MD5"), ctx.body); err != nil {
		return err
	}

	version, err := s.store.PutObject(ctx.bucket, ctx.key, ctx.body, metadata)
	if err != nil {
		return err
	}

	s.applyCORSHeaders(ctx.w, ctx.r, ctx.bucket)
	ctx.w.Header().Set("ETag", version.ETag)
	if version.VersionID != s3.NullVersionID {
		ctx.w.Header().Set("x-amz-version-id", version.VersionID)
	}
	if checksum := metadata.Checksum; checksum != nil {
		ctx.w.Header().Set("x-amz-checksum-"+strings.ToLower(checksum.Algorithm), checksum.Value)
	}
	ctx.w.WriteHeader(http.StatusOK)
	return nil
}

// handleGetObject serves both GET (withBody) and HEAD.
func (s *Service) handleGetObject(ctx *requestContext, withBody bool) error {
	result, err := s.store.GetObject(ctx.bucket, ctx.key, ctx.query["versionId"])
	if err != nil {
		if result.DeleteMarker != nil {
			ctx.w.Header().Set("x-amz-delete-marker", "true")
			if result.DeleteMarker.VersionID != s3.NullVersionID {
				ctx.w.Header().Set("x-amz-version-id", result.DeleteMarker.VersionID)
			}
		}
		return err
	}
	object := result.Object

	if err := checkConditionalHeaders(ctx.r, object); err != nil {
		return err
	}

	requestedRange, err := parseRangeHeader(ctx.r.Header.Get("Range"), object.Size)
	if err != nil {
		return err
	}

	s.applyCORSHeaders(ctx.w, ctx.r, ctx.bucket)
	writeObjectHeaders(ctx.w, object, ctx.query)

	status := http.StatusOK
	offset, length := int64(0), object.Size
	if requestedRange != nil {
		offset, length = requestedRange.offset, requestedRange.length
		ctx.w.Header().Set("Content-Range",
			"bytes "+strconv.FormatInt(offset, 10)+"-"+strconv.FormatInt(offset+length-1, 10)+
				"/"+strconv.FormatInt(object.Size, 10))
		status = http.StatusPartialContent
	}
	ctx.w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	ctx.w.WriteHeader(status)

	if !withBody {
		return nil
	}
	reader, err := s.store.Bodies().Open(object.BodyID, offset, length)
	if err != nil {
		return nil // headers already written; nothing sensible left to do
	}
	defer reader.Close()
	io.Copy(ctx.w, reader)
	return nil
}

func (s *Service) handleDeleteObject(ctx *requestContext) error {
	result, err := s.store.DeleteObject(ctx.bucket, ctx.key, ctx.query["versionId"])
	if err != nil {
		return err
	}
	if result.DeleteMarker {
		ctx.w.Header().Set("x-amz-delete-marker", "true")
	}
	if result.VersionID != "" && result.VersionID != s3.NullVersionID {
		ctx.w.Header().Set("x-amz-version-id", result.VersionID)
	}
	ctx.w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Service) handleDeleteObjects(ctx *requestContext) error {
	var request deleteObjectsRequest
	if err := xml.Unmarshal(ctx.body, &request); err != nil {
		return apperrors.MalformedXML()
	}

	result := deleteResult{Xmlns: s3Namespace}
	for _, object := range request.Objects {
		deleted, err := s.store.DeleteObject(ctx.bucket, object.Key, object.VersionID)
		if err != nil {
			appErr, _ := apperrors.As(err)
			entry := deleteErrorXML{Key: object.Key, Code: apperrors.CodeOf(err)}
			if appErr != nil {
				entry.Message = appErr.Message
			}
			result.Errors = append(result.Errors, entry)
			continue
		}
		if request.Quiet {
			continue
		}
		entry := deletedObjectXML{Key: object.Key, VersionID: object.VersionID}
		if deleted.DeleteMarker {
			entry.DeleteMarker = true
			entry.DeleteMarkerVersionID = deleted.VersionID
		}
		result.Deleted = append(result.Deleted, entry)
	}
	return s.writeXML(ctx.w, http.StatusOK, result)
}

func (s *Service) handleCopyObject(ctx *requestContext) error {
	source := ctx.r.Header.Get("x-amz-copy-source")
	srcBucket, srcKey, srcVersion, err := parseCopySource(source)
	if err != nil {
		return err
	}

	directive := ctx.r.Header.Get("x-amz-metadata-directive")
	if directive == "" {
		directive = "COPY"
	}
	metadata, err := captureObjectMetadata(ctx.r)
	if err != nil {
		return err
	}

	version, err := s.store.CopyObject(srcBucket, srcKey, srcVersion, ctx.bucket, ctx.key, directive, metadata)
	if err != nil {
		return err
	}

	if version.VersionID != s3.NullVersionID {
		ctx.w.Header().Set("x-amz-version-id", version.VersionID)
	}
	return s.writeXML(ctx.w, http.StatusOK, copyObjectResult{
		Xmlns:        s3Namespace,
		ETag:         version.ETag,
		LastModified: iso8601(version.LastModified),
	})
}

// parseCopySource splits `/bucket/key[?versionId=v]` (leading slash
// optional, key percent-encoded).
func parseCopySource(source string) (bucket, key, versionID string, err error) {
	if source == "" {
		return "", "", "", apperrors.InvalidArgument("x-amz-copy-source is required")
	}
	source = strings.TrimPrefix(source, "/")
	if index := strings.Index(source, "?versionId="); index >= 0 {
		versionID = source[index+len("?versionId="):]
		source = source[:index]
	}
	bucket, key, found := strings.Cut(source, "/")
	if !found || bucket == "" || key == "" {
		return "", "", "", apperrors.InvalidArgument("x-amz-copy-source must be bucket/key")
	}
	if decoded, decodeErr := url.PathUnescape(key); decodeErr == nil {
		key = decoded
	}
	return bucket, key, versionID, nil
}

func (s *Service) handleGetObjectTagging(ctx *requestContext) error {
	result, err := s.store.GetObject(ctx.bucket, ctx.key, ctx.query["versionId"])
	if err != nil {
		return err
	}
	return s.writeXML(ctx.w, http.StatusOK, tagsToXML(result.Object.Metadata.Tags))
}

func (s *Service) handlePutObjectTagging(ctx *requestContext) error {
	var doc taggingXML
	if err := xml.Unmarshal(ctx.body, &doc); err != nil {
		return apperrors.MalformedXML()
	}
	tags := map[string]string{}
	for _, tag := range doc.Tags {
		tags[tag.Key] = tag.Value
	}
	if err := s3.ValidateTags(tags); err != nil {
		return apperrors.InvalidTag(err.Error())
	}

	err := s.store.UpdateObject(ctx.bucket, ctx.key, ctx.query["versionId"], func(object *s3.ObjectVersion) error {
		object.Metadata.Tags = tags
		return nil
	})
	if err != nil {
		return err
	}
	ctx.w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Service) handleDeleteObjectTagging(ctx *requestContext) error {
	err := s.store.UpdateObject(ctx.bucket, ctx.key, ctx.query["versionId"], func(object *s3.ObjectVersion) error {
		object.Metadata.Tags = nil
		return nil
	})
	if err != nil {
		return err
	}
	ctx.w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Service) handleGetObjectAttributes(ctx *requestContext) error {
	result, err := s.store.GetObject(ctx.bucket, ctx.key, ctx.query["versionId"])
	if err != nil {
		return err
	}
	object := result.Object

	requested := map[string]bool{}
	for _, attr := range splitHeaderList(ctx.r.Header.Get("x-amz-object-attributes")) {
		requested[attr] = true
	}

	response := getObjectAttributesResult{Xmlns: s3Namespace}
	if requested["ETag"] {
		response.ETag = strings.Trim(object.ETag, `"`)
	}
	if requested["Checksum"] && object.Metadata.Checksum != nil {
		checksum := &checksumXML{}
		switch object.Metadata.Checksum.Algorithm {
		case "CRC32":
			checksum.ChecksumCRC32 = object.Metadata.Checksum.Value
		case "CRC32C":
			checksum.ChecksumCRC32C = object.Metadata.Checksum.Value
		case "SHA1":
			checksum.ChecksumSHA1 = object.Metadata.Checksum.Value
		case "SHA256":
			checksum.ChecksumSHA256 = object.Metadata.Checksum.Value
		}
		response.Checksum = checksum
	}
	if requested["ObjectSize"] {
		response.ObjectSize = object.Size
	}
	if requested["StorageClass"] {
		response.StorageClass = object.Metadata.StorageClass
	}
	ctx.w.Header().Set("Last-Modified", object.LastModified.UTC().Format(http.TimeFormat))
	return s.writeXML(ctx.w, http.StatusOK, response)
}

func (s *Service) handleObjectAcl(op string, ctx *requestContext) error {
	result, err := s.store.GetObject(ctx.bucket, ctx.key, ctx.query["versionId"])
	if err != nil {
		return err
	}
	if op == "GetObjectAcl" {
		return s.writeXML(ctx.w, http.StatusOK, accessControlPolicy{
			Xmlns: s3Namespace,
			Owner: ownerXML{ID: result.Object.Owner.ID, DisplayName: result.Object.Owner.DisplayName},
		})
	}

	acl := ctx.r.Header.Get("x-amz-acl")
	err = s.store.UpdateObject(ctx.bucket, ctx.key, ctx.query["versionId"], func(object *s3.ObjectVersion) error {
		object.Metadata.ACL = acl
		return nil
	})
	if err != nil {
		return err
	}
	ctx.w.WriteHeader(http.StatusOK)
	return nil
}

// handleObjectLock serves per-object retention and legal hold.
func (s *Service) handleObjectLock(op string, ctx *requestContext) error {
	switch op {
	case "GetObjectRetention":
		result, err := s.store.GetObject(ctx.bucket, ctx.key, ctx.query["versionId"])
		if err != nil {
			return err
		}
		object := result.Object
		if object.Metadata.LockMode == "" {
			return apperrors.InvalidArgument("the object does not have a retention configuration")
		}
		ctx.w.Header().Set("Content-Type", "application/xml")
		ctx.w.WriteHeader(http.StatusOK)
		ctx.w.Write([]byte(xmlHeader))
		ctx.w.Write([]byte(`<Retention xmlns="` + s3Namespace + `"><Mode>` + object.Metadata.LockMode +
			`</Mode><RetainUntilDate>` + iso8601(*object.Metadata.LockRetainUntil) + `</RetainUntilDate></Retention>`))
		return nil

	case "PutObjectRetention":
		var retention struct {
			Mode            string `xml:"Mode"`
			RetainUntilDate string `xml:"RetainUntilDate"`
		}
		if err := xml.Unmarshal(ctx.body, &retention); err != nil {
			return apperrors.MalformedXML()
		}
		until, ok := parseISO8601(retention.RetainUntilDate)
		if !ok {
			return apperrors.MalformedXML()
		}
		err := s.store.UpdateObject(ctx.bucket, ctx.key, ctx.query["versionId"], func(object *s3.ObjectVersion) error {
			object.Metadata.LockMode = retention.Mode
			object.Metadata.LockRetainUntil = &until
			return nil
		})
		if err != nil {
			return err
		}
		ctx.w.WriteHeader(http.StatusOK)
		return nil

	case "GetObjectLegalHold":
		result, err := s.store.GetObject(ctx.bucket, ctx.key, ctx.query["versionId"])
		if err != nil {
			return err
		}
		status := "OFF"
		if result.Object.Metadata.LegalHold {
			status = "ON"
		}
		ctx.w.Header().Set("Content-Type", "application/xml")
		ctx.w.WriteHeader(http.StatusOK)
		ctx.w.Write([]byte(xmlHeader))
		ctx.w.Write([]byte(`<LegalHold xmlns="` + s3Namespace + `"><Status>` + status + `</Status></LegalHold>`))
		return nil

	default: // PutObjectLegalHold
		var hold struct {
			Status string `xml:"Status"`
		}
		if err := xml.Unmarshal(ctx.body, &hold); err != nil {
			return apperrors.MalformedXML()
		}
		err := s.store.UpdateObject(ctx.bucket, ctx.key, ctx.query["versionId"], func(object *s3.ObjectVersion) error {
			object.Metadata.LegalHold = hold.Status == "ON"
			return nil
		})
		if err != nil {
			return err
		}
		ctx.w.WriteHeader(http.StatusOK)
		return nil
	}
}

// verifyContentMD5 checks the optional Content-MD5 header against the body.
func verifyContentMD5(header string, body []byte) error {
	if header == "" {
		return nil
	}
	expected, err := base64.StdEncoding.DecodeString(header)
	if err != nil || len(expected) != md5.Size {
		return apperrors.InvalidDigest()
	}
	actual := md5.Sum(body)
	for i := range expected {
		if expected[i] != actual[i] {
			return apperrors.BadDigest()
		}
	}
	return nil
}
