package s3api

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/infrastructure/persistence/bodystore"
	"localcloud/infrastructure/persistence/memory"
	"localcloud/pkg/auth"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	bodies, err := bodystore.New(1024, t.TempDir(), nil, nil)
	require.NoError(t, err)
	store := memory.NewObjectStore(bodies, "us-east-1", 0, nil, nil)
	verifier := auth.NewVerifier(auth.NewStaticCredentials(nil), true, nil)
	return NewService(store, verifier, Options{
		VirtualHosting: true,
		Domain:         "s3.localhost.localstack.cloud",
		Region:         "us-east-1",
	}, nil)
}

func TestClassifyPathStyle(t *testing.T) {
	service := newTestService(t)

	r := httptest.NewRequest(http.MethodGet, "http://localhost:4566/my-bucket/path/to/key", nil)
	bucket, key := service.classify(r)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "path/to/key", key)

	r = httptest.NewRequest(http.MethodGet, "http://localhost:4566/my-bucket", nil)
	bucket, key = service.classify(r)
	assert.Equal(t, "my-bucket", bucket)
	assert.Empty(t, key)

	r = httptest.NewRequest(http.MethodGet, "http://localhost:4566/", nil)
	bucket, key = service.classify(r)
	assert.Empty(t, bucket)
	assert.Empty(t, key)
}

func TestClassifyVirtualHosted(t *testing.T) {
	service := newTestService(t)

	r := httptest.NewRequest(http.MethodGet, "http://ignored/path/to/key", nil)
	r.Host = "my-bucket.s3.localhost.localstack.cloud:4566"
	bucket, key := service.classify(r)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "path/to/key", key)

	r = httptest.NewRequest(http.MethodGet, "http://ignored/", nil)
	r.Host = "my-bucket.s3.localhost.localstack.cloud"
	bucket, key = service.classify(r)
	assert.Equal(t, "my-bucket", bucket)
	assert.Empty(t, key)
}

func TestIdentifyOperation(t *testing.T) {
	cases := []struct {
		method string
		url    string
		header map[string]string
		bucket string
		key    string
		op     string
	}{
		{method: "GET", url: "/", op: "ListBuckets"},
		{method: "PUT", url: "/b", bucket: "b", op: "CreateBucket"},
		{method: "DELETE", url: "/b", bucket: "b", op: "DeleteBucket"},
		{method: "HEAD", url: "/b", bucket: "b", op: "HeadBucket"},
		{method: "GET", url: "/b", bucket: "b", op: "ListObjects"},
		{method: "GET", url: "/b?list-type=2", bucket: "b", op: "ListObjectsV2"},
		{method: "GET", url: "/b?versions", bucket: "b", op: "ListObjectVersions"},
		{method: "GET", url: "/b?uploads", bucket: "b", op: "ListMultipartUploads"},
		{method: "GET", url: "/b?location", bucket: "b", op: "GetBucketLocation"},
		{method: "GET", url: "/b?cors", bucket: "b", op: "GetBucketCors"},
		{method: "PUT", url: "/b?versioning", bucket: "b", op: "PutBucketVersioning"},
		{method: "DELETE", url: "/b?versioning", bucket: "b", op: ""},
		{method: "POST", url: "/b?delete", bucket: "b", op: "DeleteObjects"},
		{method: "PUT", url: "/b/k", bucket: "b", key: "k", op: "PutObject"},
		{method: "PUT", url: "/b/k?uploadId=u&partNumber=1", bucket: "b", key: "k", op: "UploadPart"},
		{method: "PUT", url: "/b/k", header: map[string]string{"x-amz-copy-source": "/a/b"},
			bucket: "b", key: "k", op: "CopyObject"},
		{method: "GET", url: "/b/k", bucket: "b", key: "k", op: "GetObject"},
		{method: "GET", url: "/b/k?uploadId=u", bucket: "b", key: "k", op: "ListParts"},
		{method: "GET", url: "/b/k?tagging", bucket: "b", key: "k", op: "GetObjectTagging"},
		{method: "HEAD", url: "/b/k", bucket: "b", key: "k", op: "HeadObject"},
		{method: "DELETE", url: "/b/k", bucket: "b", key: "k", op: "DeleteObject"},
		{method: "DELETE", url: "/b/k?uploadId=u", bucket: "b", key: "k", op: "AbortMultipartUpload"},
		{method: "POST", url: "/b/k?uploads", bucket: "b", key: "k", op: "CreateMultipartUpload"},
		{method: "POST", url: "/b/k?uploadId=u", bucket: "b", key: "k", op: "CompleteMultipartUpload"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.url, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, "http://localhost:4566"+tc.url, nil)
			for name, value := range tc.header {
				r.Header.Set(name, value)
			}
			op := identifyOperation(r, tc.bucket, tc.key, flattenQuery(r))
			assert.Equal(t, tc.op, op)
		})
	}
}

func do(service *Service, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	service.ServeHTTP(w, r)
	return w
}

func TestPutGetObjectOverHTTP(t *testing.T) {
	service := newTestService(t)
	require.NoError(t, service.store.CreateBucket("bucket", "", defaultOwner))

	put := httptest.NewRequest(http.MethodPut, "http://localhost/bucket/hello.txt",
		bytes.NewReader([]byte("hi there")))
	put.Header.Set("Content-Type", "text/plain")
	put.Header.Set("x-amz-meta-purpose", "testing")
	response := do(service, put)
	require.Equal(t, http.StatusOK, response.Code)
	etag := response.Header().Get("ETag")
	assert.NotEmpty(t, etag)

	get := httptest.NewRequest(http.MethodGet, "http://localhost/bucket/hello.txt", nil)
	response = do(service, get)
	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "hi there", response.Body.String())
	assert.Equal(t, "text/plain", response.Header().Get("Content-Type"))
	assert.Equal(t, "testing", response.Header().Get("x-amz-meta-purpose"))
	assert.Equal(t, etag, response.Header().Get("ETag"))
}

func TestGetObjectRange(t *testing.T) {
	service := newTestService(t)
	require.NoError(t, service.store.CreateBucket("bucket", "", defaultOwner))

	put := httptest.NewRequest(http.MethodPut, "http://localhost/bucket/data",
		bytes.NewReader([]byte("0123456789")))
	require.Equal(t, http.StatusOK, do(service, put).Code)

	get := httptest.NewRequest(http.MethodGet, "http://localhost/bucket/data", nil)
	get.Header.Set("Range", "bytes=2-5")
	response := do(service, get)
	require.Equal(t, http.StatusPartialContent, response.Code)
	assert.Equal(t, "2345", response.Body.String())
	assert.Equal(t, "bytes 2-5/10", response.Header().Get("Content-Range"))
}

func TestConditionalGet(t *testing.T) {
	service := newTestService(t)
	require.NoError(t, service.store.CreateBucket("bucket", "", defaultOwner))

	put := httptest.NewRequest(http.MethodPut, "http://localhost/bucket/c", bytes.NewReader([]byte("x")))
	etag := do(service, put).Header().Get("ETag")

	get := httptest.NewRequest(http.MethodGet, "http://localhost/bucket/c", nil)
	get.Header.Set("If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, do(service, get).Code)

	get = httptest.NewRequest(http.MethodGet, "http://localhost/bucket/c", nil)
	get.Header.Set("If-Match", `"bogus"`)
	assert.Equal(t, http.StatusPreconditionFailed, do(service, get).Code)
}

func TestErrorDocument(t *testing.T) {
	service := newTestService(t)

	get := httptest.NewRequest(http.MethodGet, "http://localhost/absent-bucket/key", nil)
	response := do(service, get)
	require.Equal(t, http.StatusNotFound, response.Code)

	var errDoc errorResponse
	require.NoError(t, xml.Unmarshal(response.Body.Bytes(), &errDoc))
	assert.Equal(t, "NoSuchBucket", errDoc.Code)
	assert.True(t, strings.HasPrefix(response.Body.String(), xmlHeader))
}

func TestDeleteMarkerHeaderOnGet(t *testing.T) {
	service := newTestService(t)
	require.NoError(t, service.store.CreateBucket("bucket-v", "", defaultOwner))

	versioning := strings.NewReader(`<VersioningConfiguration><Status>Enabled</Status></VersioningConfiguration>`)
	put := httptest.NewRequest(http.MethodPut, "http://localhost/bucket-v?versioning", versioning)
	require.Equal(t, http.StatusOK, do(service, put).Code)

	put = httptest.NewRequest(http.MethodPut, "http://localhost/bucket-v/k", bytes.NewReader([]byte("v1")))
	require.Equal(t, http.StatusOK, do(service, put).Code)

	del := httptest.NewRequest(http.MethodDelete, "http://localhost/bucket-v/k", nil)
	response := do(service, del)
	require.Equal(t, http.StatusNoContent, response.Code)
	assert.Equal(t, "true", response.Header().Get("x-amz-delete-marker"))

	get := httptest.NewRequest(http.MethodGet, "http://localhost/bucket-v/k", nil)
	response = do(service, get)
	require.Equal(t, http.StatusNotFound, response.Code)
	assert.Equal(t, "true", response.Header().Get("x-amz-delete-marker"))
}

func TestPreflightUsesBucketRules(t *testing.T) {
	service := newTestService(t)
	require.NoError(t, service.store.CreateBucket("cors-bucket", "", defaultOwner))

	corsDoc := `<CORSConfiguration>
		<CORSRule>
			<AllowedOrigin>https://example.com</AllowedOrigin>
			<AllowedMethod>GET</AllowedMethod>
			<AllowedHeader>*</AllowedHeader>
			<ExposeHeader>ETag</ExposeHeader>
			<MaxAgeSeconds>600</MaxAgeSeconds>
		</CORSRule>
	</CORSConfiguration>`
	put := httptest.NewRequest(http.MethodPut, "http://localhost/cors-bucket?cors", strings.NewReader(corsDoc))
	require.Equal(t, http.StatusOK, do(service, put).Code)

	preflight := httptest.NewRequest(http.MethodOptions, "http://localhost/cors-bucket/key", nil)
	preflight.Header.Set("Origin", "https://example.com")
	preflight.Header.Set("Access-Control-Request-Method", "GET")
	preflight.Header.Set("Access-Control-Request-Headers", "content-type")
	response := do(service, preflight)
	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "https://example.com", response.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "ETag", response.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "600", response.Header().Get("Access-Control-Max-Age"))

	denied := httptest.NewRequest(http.MethodOptions, "http://localhost/cors-bucket/key", nil)
	denied.Header.Set("Origin", "https://evil.example")
	denied.Header.Set("Access-Control-Request-Method", "GET")
	response = do(service, denied)
	assert.Empty(t, response.Header().Get("Access-Control-Allow-Origin"))
}

func TestPostObjectForm(t *testing.T) {
	service := newTestService(t)
	require.NoError(t, service.store.CreateBucket("uploads", "", defaultOwner))

	var form bytes.Buffer
	boundary := "----testboundary"
	form.WriteString("--" + boundary + "\r\n")
	form.WriteString("Content-Disposition: form-data; name=\"key\"\r\n\r\nposted/${filename}\r\n")
	form.WriteString("--" + boundary + "\r\n")
	form.WriteString("Content-Disposition: form-data; name=\"success_action_status\"\r\n\r\n201\r\n")
	form.WriteString("--" + boundary + "\r\n")
	form.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"note.txt\"\r\n")
	form.WriteString("Content-Type: text/plain\r\n\r\nfile-body\r\n")
	form.WriteString("--" + boundary + "--\r\n")

	post := httptest.NewRequest(http.MethodPost, "http://localhost/uploads", &form)
	post.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	response := do(service, post)
	require.Equal(t, http.StatusCreated, response.Code)
	assert.Contains(t, response.Body.String(), "<Key>posted/note.txt</Key>")

	get := httptest.NewRequest(http.MethodGet, "http://localhost/uploads/posted/note.txt", nil)
	response = do(service, get)
	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "file-body", response.Body.String())
}

func TestRangeParsing(t *testing.T) {
	r, err := parseRangeHeader("bytes=0-4", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.offset)
	assert.Equal(t, int64(5), r.length)

	r, err = parseRangeHeader("bytes=-3", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.offset)
	assert.Equal(t, int64(3), r.length)

	r, err = parseRangeHeader("bytes=4-", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), r.offset)
	assert.Equal(t, int64(6), r.length)

	// Over-long end is clamped.
	r, err = parseRangeHeader("bytes=8-99", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.length)

	_, err = parseRangeHeader("bytes=20-", 10)
	assert.Error(t, err)
	_, err = parseRangeHeader("items=0-5", 10)
	assert.Error(t, err)
	_, err = parseRangeHeader("bytes=0-2,5-7", 10)
	assert.Error(t, err)
}
