package s3api

import (
	"encoding/base64"
	"encoding/xml"
	"net/http"
	"strconv"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

// defaultOwner is the canonical owner used for every bucket and object when
// real account management is out of the picture.
var defaultOwner = s3.Owner{
	ID:          "75aa57f09aa0c8caeab4f8c24e99d10f8e7faeebf76c078efc7c6caea54ba06a",
	DisplayName: "webfile",
}

func (s *Service) handleListBuckets(ctx *requestContext) error {
	buckets := s.store.ListBuckets()
	result := listAllMyBucketsResult{
		Xmlns: s3Namespace,
		Owner: ownerXML{ID: defaultOwner.ID, DisplayName: defaultOwner.DisplayName},
	}
	for _, bucket := range buckets {
		result.Buckets = append(result.Buckets, bucketXML{
			Name:         bucket.Name,
			CreationDate: iso8601(bucket.CreatedAt),
		})
	}
	return s.writeXML(ctx.w, http.StatusOK, result)
}

type createBucketConfiguration struct {
	XMLName            xml.Name `xml:"CreateBucketConfiguration"`
	LocationConstraint string   `xml:"LocationConstraint"`
}

func (s *Service) handleCreateBucket(ctx *requestContext) error {
	region := s.opts.Region
	if len(ctx.body) > 0 {
		var config createBucketConfiguration
		if err := xml.Unmarshal(ctx.body, &config); err != nil {
			return apperrors.MalformedXML()
		}
		if config.LocationConstraint != "" {
			region = config.LocationConstraint
		}
	}

	if err := s.store.CreateBucket(ctx.bucket, region, defaultOwner); err != nil {
		return err
	}

	if ctx.r.Header.Get("x-amz-bucket-object-lock-enabled") == "true" {
		// Object lock requires versioning; both are enabled together.
		err := s.store.UpdateBucket(ctx.bucket, func(bucket *s3.Bucket) error {
			bucket.Versioning = s3.VersioningEnabled
			bucket.ObjectLock = &s3.ObjectLockConfig{Enabled: true}
			return nil
		})
		if err != nil {
			return err
		}
	}

	ctx.w.Header().Set("Location", "/"+ctx.bucket)
	ctx.w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Service) handleDeleteBucket(ctx *requestContext) error {
	if err := s.store.DeleteBucket(ctx.bucket); err != nil {
		return err
	}
	ctx.w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Service) handleHeadBucket(ctx *requestContext) error {
	bucket, err := s.store.Bucket(ctx.bucket)
	if err != nil {
		return err
	}
	ctx.w.Header().Set("x-amz-bucket-region", bucket.Region)
	ctx.w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Service) handleGetBucketLocation(ctx *requestContext) error {
	bucket, err := s.store.Bucket(ctx.bucket)
	if err != nil {
		return err
	}
	value := bucket.Region
	// us-east-1 is represented by an empty constraint.
	if value == "us-east-1" {
		value = ""
	}
	return s.writeXML(ctx.w, http.StatusOK, locationConstraint{Xmlns: s3Namespace, Value: value})
}

func (s *Service) handleListObjects(ctx *requestContext, version int) error {
	query := ctx.query
	maxKeys := 1000
	if raw, ok := query["max-keys"]; ok && raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.InvalidArgument("max-keys must be an integer")
		}
		maxKeys = parsed
	}
	prefix := query["prefix"]
	delimiter := query["delimiter"]

	after := ""
	switch version {
	case 1:
		after = query["marker"]
	case 2:
		after = query["start-after"]
		if token := query["continuation-token"]; token != "" {
			decoded, err := base64.StdEncoding.DecodeString(token)
			if err != nil {
				return apperrors.InvalidArgument("invalid continuation token")
			}
			after = string(decoded)
		}
	}

	listing, err := s.store.ListObjects(ctx.bucket, prefix, delimiter, after, maxKeys)
	if err != nil {
		return err
	}

	result := listBucketResult{
		Xmlns:       s3Namespace,
		Name:        ctx.bucket,
		Prefix:      prefix,
		MaxKeys:     maxKeys,
		Delimiter:   delimiter,
		IsTruncated: listing.IsTruncated,
	}
	for _, object := range listing.Objects {
		result.Contents = append(result.Contents, contentsXML{
			Key:          object.Key,
			LastModified: iso8601(object.LastModified),
			ETag:         object.ETag,
			Size:         object.Size,
			StorageClass: object.Metadata.StorageClass,
			Owner:        &ownerXML{ID: object.Owner.ID, DisplayName: object.Owner.DisplayName},
		})
	}
	for _, prefix := range listing.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, commonPrefixXML{Prefix: prefix})
	}

	switch version {
	case 1:
		marker := query["marker"]
		result.Marker = &marker
		if listing.IsTruncated {
			result.NextMarker = listing.NextMarker
		}
	case 2:
		keyCount := len(listing.Objects) + len(listing.CommonPrefixes)
		result.KeyCount = &keyCount
		result.StartAfter = query["start-after"]
		result.ContinuationToken = query["continuation-token"]
		if listing.IsTruncated {
			result.NextContinuationToken = base64.StdEncoding.EncodeToString([]byte(listing.NextMarker))
		}
	}
	return s.writeXML(ctx.w, http.StatusOK, result)
}

func (s *Service) handleListObjectVersions(ctx *requestContext) error {
	query := ctx.query
	maxKeys := 1000
	if raw, ok := query["max-keys"]; ok && raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.InvalidArgument("max-keys must be an integer")
		}
		maxKeys = parsed
	}
	prefix := query["prefix"]
	delimiter := query["delimiter"]

	listing, err := s.store.ListObjectVersions(ctx.bucket, prefix, delimiter,
		query["key-marker"], query["version-id-marker"], maxKeys)
	if err != nil {
		return err
	}

	result := listVersionsResult{
		Xmlns:               s3Namespace,
		Name:                ctx.bucket,
		Prefix:              prefix,
		KeyMarker:           query["key-marker"],
		VersionIDMarker:     query["version-id-marker"],
		NextKeyMarker:       listing.NextKeyMarker,
		NextVersionIDMarker: listing.NextVersionIDMarker,
		MaxKeys:             maxKeys,
		Delimiter:           delimiter,
		IsTruncated:         listing.IsTruncated,
	}
	for _, item := range listing.Items {
		if item.Entry.IsDeleteMarker() {
			marker := item.Entry.Marker
			result.DeleteMarkers = append(result.DeleteMarkers, deleteMarkerXML{
				Key:          item.Key,
				VersionID:    marker.VersionID,
				IsLatest:     item.IsLatest,
				LastModified: iso8601(marker.LastModified),
				Owner:        ownerXML{ID: marker.Owner.ID, DisplayName: marker.Owner.DisplayName},
			})
			continue
		}
		object := item.Entry.Object
		result.Versions = append(result.Versions, versionXML{
			Key:          item.Key,
			VersionID:    object.VersionID,
			IsLatest:     item.IsLatest,
			LastModified: iso8601(object.LastModified),
			ETag:         object.ETag,
			Size:         object.Size,
			StorageClass: object.Metadata.StorageClass,
			Owner:        ownerXML{ID: object.Owner.ID, DisplayName: object.Owner.DisplayName},
		})
	}
	for _, prefix := range listing.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, commonPrefixXML{Prefix: prefix})
	}
	return s.writeXML(ctx.w, http.StatusOK, result)
}
