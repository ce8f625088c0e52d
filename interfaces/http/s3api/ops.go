package s3api

import (
	"net/http"
	"strings"

	apperrors "localcloud/pkg/errors"
)

// bucketSubResources maps a query flag to the operation suffix used for the
// bucket configuration endpoints, e.g. GET /bucket?cors → GetBucketCors.
var bucketSubResources = map[string]string{
	"versioning":        "Versioning",
	"cors":              "Cors",
	"lifecycle":         "Lifecycle",
	"tagging":           "Tagging",
	"policy":            "Policy",
	"encryption":        "Encryption",
	"publicAccessBlock": "PublicAccessBlock",
	"ownershipControls": "OwnershipControls",
	"object-lock":       "ObjectLockConfiguration",
	"accelerate":        "Accelerate",
	"requestPayment":    "RequestPayment",
	"website":           "Website",
	"logging":           "Logging",
	"notification":      "Notification",
	"acl":               "Acl",
}

// identifyOperation resolves the operation from method, addressing and the
// sub-resource query flags.
func identifyOperation(r *http.Request, bucket, key string, query map[string]string) string {
	has := func(name string) bool {
		_, ok := query[name]
		return ok
	}

	if bucket == "" {
		if r.Method == http.MethodGet {
			return "ListBuckets"
		}
		return ""
	}

	if key == "" {
		switch r.Method {
		case http.MethodGet:
			switch {
			case has("location"):
				return "GetBucketLocation"
			case has("versions"):
				return "ListObjectVersions"
			case has("uploads"):
				return "ListMultipartUploads"
			case query["list-type"] == "2":
				return "ListObjectsV2"
			}
			for flag, suffix := range bucketSubResources {
				if has(flag) {
					return "GetBucket" + suffix
				}
			}
			return "ListObjects"
		case http.MethodPut:
			for flag, suffix := range bucketSubResources {
				if has(flag) {
					return "PutBucket" + suffix
				}
			}
			return "CreateBucket"
		case http.MethodDelete:
			if has("versioning") || has("location") || has("acl") || has("accelerate") || has("requestPayment") {
				return "" // these sub-resources have no DELETE
			}
			for flag, suffix := range bucketSubResources {
				if has(flag) {
					return "DeleteBucket" + suffix
				}
			}
			return "DeleteBucket"
		case http.MethodHead:
			return "HeadBucket"
		case http.MethodPost:
			if has("delete") {
				return "DeleteObjects"
			}
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				return "PostObject"
			}
			return ""
		}
		return ""
	}

	switch r.Method {
	case http.MethodPut:
		switch {
		case has("partNumber") && has("uploadId"):
			if r.Header.Get("x-amz-copy-source") != "" {
				return "UploadPartCopy"
			}
			return "UploadPart"
		case has("tagging"):
			return "PutObjectTagging"
		case has("acl"):
			return "PutObjectAcl"
		case has("retention"):
			return "PutObjectRetention"
		case has("legal-hold"):
			return "PutObjectLegalHold"
		case r.Header.Get("x-amz-copy-source") != "":
			return "CopyObject"
		default:
			return "PutObject"
		}
	case http.MethodGet:
		switch {
		case has("uploadId"):
			return "ListParts"
		case has("tagging"):
			return "GetObjectTagging"
		case has("attributes"):
			return "GetObjectAttributes"
		case has("acl"):
			return "GetObjectAcl"
		case has("retention"):
			return "GetObjectRetention"
		case has("legal-hold"):
			return "GetObjectLegalHold"
		default:
			return "GetObject"
		}
	case http.MethodHead:
		return "HeadObject"
	case http.MethodDelete:
		switch {
		case has("uploadId"):
			return "AbortMultipartUpload"
		case has("tagging"):
			return "DeleteObjectTagging"
		default:
			return "DeleteObject"
		}
	case http.MethodPost:
		switch {
		case has("uploads"):
			return "CreateMultipartUpload"
		case has("uploadId"):
			return "CompleteMultipartUpload"
		}
	}
	return ""
}

// dispatch routes one identified operation to its handler.
func (s *Service) dispatch(op string, ctx *requestContext) error {
	switch op {
	// Service level
	case "ListBuckets":
		return s.handleListBuckets(ctx)

	// Bucket lifecycle
	case "CreateBucket":
		return s.handleCreateBucket(ctx)
	case "DeleteBucket":
		return s.handleDeleteBucket(ctx)
	case "HeadBucket":
		return s.handleHeadBucket(ctx)
	case "GetBucketLocation":
		return s.handleGetBucketLocation(ctx)

	// Listings
	case "ListObjects":
		return s.handleListObjects(ctx, 1)
	case "ListObjectsV2":
		return s.handleListObjects(ctx, 2)
	case "ListObjectVersions":
		return s.handleListObjectVersions(ctx)

	// Bucket sub-resources
	case "GetBucketVersioning", "PutBucketVersioning",
		"GetBucketCors", "PutBucketCors", "DeleteBucketCors",
		"GetBucketLifecycle", "PutBucketLifecycle", "DeleteBucketLifecycle",
		"GetBucketTagging", "PutBucketTagging", "DeleteBucketTagging",
		"GetBucketPolicy", "PutBucketPolicy", "DeleteBucketPolicy",
		"GetBucketEncryption", "PutBucketEncryption", "DeleteBucketEncryption",
		"GetBucketPublicAccessBlock", "PutBucketPublicAccessBlock", "DeleteBucketPublicAccessBlock",
		"GetBucketOwnershipControls", "PutBucketOwnershipControls", "DeleteBucketOwnershipControls",
		"GetBucketObjectLockConfiguration", "PutBucketObjectLockConfiguration",
		"GetBucketAccelerate", "PutBucketAccelerate",
		"GetBucketRequestPayment", "PutBucketRequestPayment",
		"GetBucketWebsite", "PutBucketWebsite", "DeleteBucketWebsite",
		"GetBucketLogging", "PutBucketLogging",
		"GetBucketNotification", "PutBucketNotification",
		"GetBucketAcl", "PutBucketAcl":
		return s.handleBucketSubResource(op, ctx)

	// Objects
	case "PutObject":
		return s.handlePutObject(ctx)
	case "GetObject":
		return s.handleGetObject(ctx, true)
	case "HeadObject":
		return s.handleGetObject(ctx, false)
	case "DeleteObject":
		return s.handleDeleteObject(ctx)
	case "DeleteObjects":
		return s.handleDeleteObjects(ctx)
	case "CopyObject":
		return s.handleCopyObject(ctx)
	case "GetObjectTagging":
		return s.handleGetObjectTagging(ctx)
	case "PutObjectTagging":
		return s.handlePutObjectTagging(ctx)
	case "DeleteObjectTagging":
		return s.handleDeleteObjectTagging(ctx)
	case "GetObjectAttributes":
		return s.handleGetObjectAttributes(ctx)
	case "GetObjectAcl", "PutObjectAcl":
		return s.handleObjectAcl(op, ctx)
	case "GetObjectRetention", "PutObjectRetention", "GetObjectLegalHold", "PutObjectLegalHold":
		return s.handleObjectLock(op, ctx)
	case "PostObject":
		return s.handlePostObject(ctx)

	// Multipart
	case "CreateMultipartUpload":
		return s.handleCreateMultipartUpload(ctx)
	case "UploadPart":
		return s.handleUploadPart(ctx)
	case "UploadPartCopy":
		return apperrors.NotImplemented("UploadPartCopy is not supported")
	case "ListParts":
		return s.handleListParts(ctx)
	case "ListMultipartUploads":
		return s.handleListMultipartUploads(ctx)
	case "CompleteMultipartUpload":
		return s.handleCompleteMultipartUpload(ctx)
	case "AbortMultipartUpload":
		return s.handleAbortMultipartUpload(ctx)

	default:
		return apperrors.MethodNotAllowed()
	}
}
