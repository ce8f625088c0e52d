package s3api

import (
	"net/http"
	"strings"
	"time"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

// checkConditionalHeaders applies If-Match / If-None-Match /
// If-Modified-Since / If-Unmodified-Since to a GET or HEAD.
func checkConditionalHeaders(r *http.Request, object *s3.ObjectVersion) error {
	lastModified := object.LastModified.Truncate(time.Second)

	if match := r.Header.Get("If-Match"); match != "" {
		if !etagListMatches(match, object.ETag) {
			return apperrors.PreconditionFailed()
		}
	}
	if noneMatch := r.Header.Get("If-None-Match"); noneMatch != "" {
		if etagListMatches(noneMatch, object.ETag) {
			return apperrors.NotModified()
		}
	}
	if since := r.Header.Get("If-Unmodified-Since"); since != "" {
		if t, err := http.ParseTime(since); err == nil && lastModified.After(t) {
			return apperrors.PreconditionFailed()
		}
	}
	if since := r.Header.Get("If-Modified-Since"); since != "" {
		if t, err := http.ParseTime(since); err == nil && !lastModified.After(t) {
			return apperrors.NotModified()
		}
	}
	return nil
}

// etagListMatches handles `*` and comma-separated etag lists.
func etagListMatches(headerValue, etag string) bool {
	for _, candidate := range strings.Split(headerValue, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || s3.ETagsEqual(candidate, etag) {
			return true
		}
	}
	return false
}
