package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("disk exploded")
	err := InternalError(cause)

	assert.ErrorIs(t, err, cause)
	appErr, ok := As(fmt.Errorf("outer: %w", err))
	require.True(t, ok)
	assert.Equal(t, "InternalError", appErr.Code)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "NoSuchBucket", CodeOf(NoSuchBucket("b")))
	assert.Equal(t, "InternalError", CodeOf(fmt.Errorf("untyped")))
	assert.True(t, IsCode(NoSuchKey("k"), "NoSuchKey"))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NoSuchBucket("b"), http.StatusNotFound},
		{NoSuchKey("k"), http.StatusNotFound},
		{BucketNotEmpty("b"), http.StatusConflict},
		{BucketAlreadyExists("b"), http.StatusConflict},
		{InvalidBucketName("b"), http.StatusBadRequest},
		{InvalidArgument("x"), http.StatusBadRequest},
		{PreconditionFailed(), http.StatusPreconditionFailed},
		{NotModified(), http.StatusNotModified},
		{MethodNotAllowed(), http.StatusMethodNotAllowed},
		{AccessDenied("no"), http.StatusForbidden},
		{InternalError(fmt.Errorf("x")), http.StatusInternalServerError},
		{InvalidRange("r"), http.StatusRequestedRangeNotSatisfiable},

		{Validation("v"), http.StatusBadRequest},
		{ConditionalCheckFailed(), http.StatusBadRequest},
		{ResourceInUse("t"), http.StatusBadRequest},
		{ResourceNotFound("t"), http.StatusBadRequest},
		{InternalServerError(fmt.Errorf("x")), http.StatusInternalServerError},

		{fmt.Errorf("untyped"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), CodeOf(tc.err))
	}
}

func TestWithResource(t *testing.T) {
	base := NoSuchKey("k")
	annotated := base.WithResource("/bucket/k")
	assert.Equal(t, "/bucket/k", annotated.Resource)
	assert.Equal(t, "k", base.Resource, "the original is not mutated")
}
