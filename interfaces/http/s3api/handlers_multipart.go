package s3api

import (
	"encoding/xml"
	"net/http"
	"strconv"

	"localcloud/domain/s3"
	"localcloud/infrastructure/persistence/memory"
	apperrors "localcloud/pkg/errors"
)

func (s *Service) handleCreateMultipartUpload(ctx *requestContext) error {
	metadata, err := captureObjectMetadata(ctx.r)
	if err != nil {
		return err
	}
	checksumAlgorithm := ctx.r.Header.Get("x-amz-checksum-algorithm")

	upload, err := s.store.CreateMultipartUpload(ctx.bucket, ctx.key, metadata, checksumAlgorithm)
	if err != nil {
		return err
	}
	return s.writeXML(ctx.w, http.StatusOK, initiateMultipartUploadResult{
		Xmlns:    s3Namespace,
		Bucket:   ctx.bucket,
		Key:      ctx.key,
		UploadID: upload.UploadID,
	})
}

func (s *Service) handleUploadPart(ctx *requestContext) error {
	partNumber, err := strconv.Atoi(ctx.query["partNumber"])
	if err != nil {
		return apperrors.InvalidArgument("partNumber must be an integer")
	}
	if err := verifyContentMD5(ctx.r.Header.Get("Content-MD5"), ctx.body); err != nil {
		return err
	}

	var checksum *s3.Checksum
	if metadata, err := captureObjectMetadata(ctx.r); err == nil {
		checksum = metadata.Checksum
	}

	etag, err := s.store.UploadPart(ctx.bucket, ctx.query["uploadId"], partNumber, ctx.body, checksum)
	if err != nil {
		return err
	}
	ctx.w.Header().Set("ETag", etag)
	ctx.w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Service) handleListParts(ctx *requestContext) error {
	upload, parts, err := s.store.ListParts(ctx.bucket, ctx.query["uploadId"])
	if err != nil {
		return err
	}
	result := listPartsResult{
		Xmlns:    s3Namespace,
		Bucket:   ctx.bucket,
		Key:      upload.Key,
		UploadID: upload.UploadID,
		Owner:    ownerXML{ID: upload.Owner.ID, DisplayName: upload.Owner.DisplayName},
	}
	for _, part := range parts {
		result.Parts = append(result.Parts, partXML{
			PartNumber:   part.PartNumber,
			LastModified: iso8601(part.LastModified),
			ETag:         part.ETag,
			Size:         part.Size,
		})
	}
	return s.writeXML(ctx.w, http.StatusOK, result)
}

func (s *Service) handleListMultipartUploads(ctx *requestContext) error {
	uploads, err := s.store.ListMultipartUploads(ctx.bucket, ctx.query["prefix"])
	if err != nil {
		return err
	}
	result := listMultipartUploadsResult{
		Xmlns:  s3Namespace,
		Bucket: ctx.bucket,
		Prefix: ctx.query["prefix"],
	}
	for _, upload := range uploads {
		result.Uploads = append(result.Uploads, uploadXML{
			Key:       upload.Key,
			UploadID:  upload.UploadID,
			Owner:     ownerXML{ID: upload.Owner.ID, DisplayName: upload.Owner.DisplayName},
			Initiated: iso8601(upload.Initiated),
		})
	}
	return s.writeXML(ctx.w, http.StatusOK, result)
}

func (s *Service) handleCompleteMultipartUpload(ctx *requestContext) error {
	var request completeMultipartUploadRequest
	if err := xml.Unmarshal(ctx.body, &request); err != nil {
		return apperrors.MalformedXML()
	}
	parts := make([]memory.CompletedPart, len(request.Parts))
	for i, part := range request.Parts {
		parts[i] = memory.CompletedPart{PartNumber: part.PartNumber, ETag: part.ETag}
	}

	version, err := s.store.CompleteMultipartUpload(ctx.bucket, ctx.query["uploadId"], parts)
	if err != nil {
		return err
	}

	if version.VersionID != s3.NullVersionID {
		ctx.w.Header().Set("x-amz-version-id", version.VersionID)
	}
	return s.writeXML(ctx.w, http.StatusOK, completeMultipartUploadResult{
		Xmlns:    s3Namespace,
		Location: "/" + ctx.bucket + "/" + ctx.key,
		Bucket:   ctx.bucket,
		Key:      ctx.key,
		ETag:     version.ETag,
	})
}

func (s *Service) handleAbortMultipartUpload(ctx *requestContext) error {
	if err := s.store.AbortMultipartUpload(ctx.bucket, ctx.query["uploadId"]); err != nil {
		return err
	}
	ctx.w.WriteHeader(http.StatusNoContent)
	return nil
}
