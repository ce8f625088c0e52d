package s3api

import (
	"strconv"
	"strings"

	apperrors "localcloud/pkg/errors"
)

// byteRange is a resolved request range.
type byteRange struct {
	offset int64
	length int64
}

// parseRangeHeader resolves a single `bytes=` range against the object size.
// Supports `a-b`, `a-` and the suffix form `-n`. Multi-range requests are
// rejected.
func parseRangeHeader(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, apperrors.InvalidRange("range unit must be bytes")
	}
	if strings.Contains(spec, ",") {
		return nil, apperrors.InvalidRange("multiple ranges are not supported")
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return nil, apperrors.InvalidRange("malformed range")
	}

	if startStr == "" {
		// Suffix range: last n bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, apperrors.InvalidRange("malformed suffix range")
		}
		if n > size {
			n = size
		}
		return &byteRange{offset: size - n, length: n}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, apperrors.InvalidRange("malformed range start")
	}
	if start >= size {
		return nil, apperrors.InvalidRange("range start beyond object size")
	}

	if endStr == "" {
		return &byteRange{offset: start, length: size - start}, nil
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return nil, apperrors.InvalidRange("malformed range end")
	}
	if end >= size {
		end = size - 1
	}
	return &byteRange{offset: start, length: end - start + 1}, nil
}
