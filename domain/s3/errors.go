package s3

import "errors"

// Sentinel validation errors surfaced by the domain checks. The protocol
// layer maps them onto the wire taxonomy.
var (
	errTooManyTags      = errors.New("tag set exceeds 10 tags")
	errInvalidTagKey    = errors.New("tag key is empty or too long")
	errInvalidTagValue  = errors.New("tag value is too long")
	errMetadataTooLarge = errors.New("user metadata exceeds 2 KB")
)
