package errors

// Constructors for the S3 error taxonomy. Messages follow the AWS wording
// closely enough for SDK compatibility without chasing exact text parity.

func NoSuchBucket(bucket string) *AppError {
	return Newf(ErrorTypeNotFound, "NoSuchBucket", "The specified bucket does not exist").WithResource(bucket)
}

func NoSuchKey(key string) *AppError {
	return Newf(ErrorTypeNotFound, "NoSuchKey", "The specified key does not exist.").WithResource(key)
}

func NoSuchVersion(key string) *AppError {
	return Newf(ErrorTypeNotFound, "NoSuchVersion", "The specified version does not exist.").WithResource(key)
}

func NoSuchUpload(uploadID string) *AppError {
	return Newf(ErrorTypeNotFound, "NoSuchUpload",
		"The specified upload does not exist. The upload ID may be invalid, or the upload may have been aborted or completed.").WithResource(uploadID)
}

func BucketAlreadyExists(bucket string) *AppError {
	return Newf(ErrorTypeConflict, "BucketAlreadyExists",
		"The requested bucket name is not available. The bucket namespace is shared by all users of the system.").WithResource(bucket)
}

func BucketAlreadyOwnedByYou(bucket string) *AppError {
	return Newf(ErrorTypeConflict, "BucketAlreadyOwnedByYou",
		"Your previous request to create the named bucket succeeded and you already own it.").WithResource(bucket)
}

func BucketNotEmpty(bucket string) *AppError {
	return Newf(ErrorTypeConflict, "BucketNotEmpty", "The bucket you tried to delete is not empty").WithResource(bucket)
}

func InvalidBucketName(bucket string) *AppError {
	return Newf(ErrorTypeInvalidArgument, "InvalidBucketName", "The specified bucket is not valid.").WithResource(bucket)
}

func InvalidArgument(message string) *AppError {
	return New(ErrorTypeInvalidArgument, "InvalidArgument", message)
}

func InvalidPart(message string) *AppError {
	return New(ErrorTypeInvalidArgument, "InvalidPart", message)
}

func InvalidPartOrder() *AppError {
	return New(ErrorTypeInvalidArgument, "InvalidPartOrder",
		"The list of parts was not in ascending order. Parts must be ordered by part number.")
}

func InvalidRange(message string) *AppError {
	return New(ErrorTypeInvalidArgument, "InvalidRange", message)
}

func KeyTooLong() *AppError {
	return New(ErrorTypeInvalidArgument, "KeyTooLongError", "Your key is too long")
}

func InvalidTag(message string) *AppError {
	return New(ErrorTypeInvalidArgument, "InvalidTag", message)
}

func InvalidDigest() *AppError {
	return New(ErrorTypeInvalidArgument, "InvalidDigest", "The Content-MD5 you specified is not valid.")
}

func BadDigest() *AppError {
	return New(ErrorTypeInvalidArgument, "BadDigest",
		"The Content-MD5 you specified did not match what we received.")
}

func EntityTooLarge() *AppError {
	return New(ErrorTypeInvalidArgument, "EntityTooLarge",
		"Your proposed upload exceeds the maximum allowed size")
}

func EntityTooSmall() *AppError {
	return New(ErrorTypeInvalidArgument, "EntityTooSmall",
		"Your proposed upload is smaller than the minimum allowed size")
}

func MalformedXML() *AppError {
	return New(ErrorTypeInvalidArgument, "MalformedXML",
		"The XML you provided was not well-formed or did not validate against our published schema")
}

func PreconditionFailed() *AppError {
	return New(ErrorTypePrecondition, "PreconditionFailed",
		"At least one of the pre-conditions you specified did not hold")
}

func NotModified() *AppError {
	return New(ErrorTypePrecondition, "NotModified", "Not Modified")
}

func MethodNotAllowed() *AppError {
	return New(ErrorTypeInvalidArgument, "MethodNotAllowed",
		"The specified method is not allowed against this resource.")
}

func AccessDenied(message string) *AppError {
	return New(ErrorTypeAccessDenied, "AccessDenied", message)
}

func NotImplemented(message string) *AppError {
	return New(ErrorTypeInvalidArgument, "NotImplemented", message)
}

func InternalError(err error) *AppError {
	return Wrap("InternalError", "We encountered an internal error. Please try again.", err)
}
