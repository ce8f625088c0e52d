package errors

// Constructors for the DynamoDB error taxonomy. The protocol layer prefixes
// codes with the com.amazonaws.dynamodb.v20120810# namespace on the wire.

func Validation(message string) *AppError {
	return New(ErrorTypeInvalidArgument, "ValidationException", message)
}

func Validationf(format string, args ...any) *AppError {
	return Newf(ErrorTypeInvalidArgument, "ValidationException", format, args...)
}

func ConditionalCheckFailed() *AppError {
	return New(ErrorTypePrecondition, "ConditionalCheckFailedException", "The conditional request failed")
}

func ResourceInUse(table string) *AppError {
	return Newf(ErrorTypeConflict, "ResourceInUseException", "Table already exists: %s", table).WithResource(table)
}

func ResourceNotFound(table string) *AppError {
	return New(ErrorTypeNotFound, "ResourceNotFoundException", "Requested resource not found").WithResource(table)
}

func Serialization(message string) *AppError {
	return New(ErrorTypeInvalidArgument, "SerializationException", message)
}

func MissingActionError() *AppError {
	return New(ErrorTypeInvalidArgument, "MissingAction",
		"Missing required header: X-Amz-Target")
}

func UnrecognizedClient() *AppError {
	return New(ErrorTypeAccessDenied, "UnrecognizedClientException",
		"The security token included in the request is invalid.")
}

func InternalServerError(err error) *AppError {
	return Wrap("InternalServerError", "Internal server error", err)
}
