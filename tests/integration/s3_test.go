package integration

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBucket(t *testing.T, client *awss3.Client, name string) {
	t.Helper()
	_, err := client.CreateBucket(context.Background(), &awss3.CreateBucketInput{
		Bucket: aws.String(name),
	})
	require.NoError(t, err)
}

func getBody(t *testing.T, client *awss3.Client, bucket, key, versionID string) string {
	t.Helper()
	input := &awss3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}
	output, err := client.GetObject(context.Background(), input)
	require.NoError(t, err)
	defer output.Body.Close()
	body, err := io.ReadAll(output.Body)
	require.NoError(t, err)
	return string(body)
}

// Versioned overwrite keeps the old version readable by id.
func TestVersionedOverwriteAndOldRead(t *testing.T) {
	h := startGateway(t, true)
	client := h.s3Client(t)
	ctx := context.Background()

	createBucket(t, client, "bucket-v")
	_, err := client.PutBucketVersioning(ctx, &awss3.PutBucketVersioningInput{
		Bucket: aws.String("bucket-v"),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	})
	require.NoError(t, err)

	put1, err := client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String("bucket-v"), Key: aws.String("k"),
		Body: strings.NewReader("v1"),
	})
	require.NoError(t, err)
	vid1 := aws.ToString(put1.VersionId)
	require.NotEmpty(t, vid1)

	put2, err := client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String("bucket-v"), Key: aws.String("k"),
		Body: strings.NewReader("v2"),
	})
	require.NoError(t, err)
	vid2 := aws.ToString(put2.VersionId)
	require.NotEqual(t, vid1, vid2)

	assert.Equal(t, "v2", getBody(t, client, "bucket-v", "k", ""))
	assert.Equal(t, "v1", getBody(t, client, "bucket-v", "k", vid1))

	versions, err := client.ListObjectVersions(ctx, &awss3.ListObjectVersionsInput{
		Bucket: aws.String("bucket-v"),
	})
	require.NoError(t, err)
	require.Len(t, versions.Versions, 2)
	for _, version := range versions.Versions {
		if aws.ToString(version.VersionId) == vid2 {
			assert.True(t, aws.ToBool(version.IsLatest))
		} else {
			assert.False(t, aws.ToBool(version.IsLatest))
		}
	}
}

// Multipart parts assemble in order; the upload id is single-use.
func TestMultipartAssembly(t *testing.T) {
	h := startGateway(t, true)
	client := h.s3Client(t)
	ctx := context.Background()

	createBucket(t, client, "bucket-m")

	create, err := client.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket: aws.String("bucket-m"), Key: aws.String("mp"),
	})
	require.NoError(t, err)
	uploadID := create.UploadId

	part1Body := bytes.Repeat([]byte{0xAA}, 1024)
	part2Body := bytes.Repeat([]byte{0xBB}, 1024)

	part1, err := client.UploadPart(ctx, &awss3.UploadPartInput{
		Bucket: aws.String("bucket-m"), Key: aws.String("mp"),
		UploadId: uploadID, PartNumber: aws.Int32(1),
		Body: bytes.NewReader(part1Body),
	})
	require.NoError(t, err)
	part2, err := client.UploadPart(ctx, &awss3.UploadPartInput{
		Bucket: aws.String("bucket-m"), Key: aws.String("mp"),
		UploadId: uploadID, PartNumber: aws.Int32(2),
		Body: bytes.NewReader(part2Body),
	})
	require.NoError(t, err)

	complete, err := client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket: aws.String("bucket-m"), Key: aws.String("mp"),
		UploadId: uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: []s3types.CompletedPart{
				{PartNumber: aws.Int32(1), ETag: part1.ETag},
				{PartNumber: aws.Int32(2), ETag: part2.ETag},
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.Trim(aws.ToString(complete.ETag), `"`), "-2"))

	body := getBody(t, client, "bucket-m", "mp", "")
	require.Len(t, body, 2048)
	assert.Equal(t, string(part1Body), body[:1024])
	assert.Equal(t, string(part2Body), body[1024:])

	// The second completion attempt finds no upload.
	_, err = client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket: aws.String("bucket-m"), Key: aws.String("mp"),
		UploadId: uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: []s3types.CompletedPart{{PartNumber: aws.Int32(1), ETag: part1.ETag}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchUpload")
}

// Delimited listings collapse keys into common prefixes.
func TestListingWithDelimiter(t *testing.T) {
	h := startGateway(t, true)
	client := h.s3Client(t)
	ctx := context.Background()

	createBucket(t, client, "tree")
	for _, key := range []string{"photos/2024/jan/a", "photos/2024/feb/b", "documents/c", "root.txt"} {
		_, err := client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket: aws.String("tree"), Key: aws.String(key),
			Body: strings.NewReader(key),
		})
		require.NoError(t, err)
	}

	output, err := client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String("tree"), Delimiter: aws.String("/"),
	})
	require.NoError(t, err)
	require.Len(t, output.Contents, 1)
	assert.Equal(t, "root.txt", aws.ToString(output.Contents[0].Key))
	assert.Equal(t, []string{"documents/", "photos/"}, prefixes(output.CommonPrefixes))

	output, err = client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String("tree"), Delimiter: aws.String("/"),
		Prefix: aws.String("photos/2024/"),
	})
	require.NoError(t, err)
	assert.Empty(t, output.Contents)
	assert.Equal(t, []string{"photos/2024/feb/", "photos/2024/jan/"}, prefixes(output.CommonPrefixes))
}

func TestListObjectsV2Pagination(t *testing.T) {
	h := startGateway(t, true)
	client := h.s3Client(t)
	ctx := context.Background()

	createBucket(t, client, "pages")
	expected := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, key := range expected {
		_, err := client.PutObject(ctx, &awss3.PutObjectInput{
			Bucket: aws.String("pages"), Key: aws.String(key),
			Body: strings.NewReader(key),
		})
		require.NoError(t, err)
	}

	var collected []string
	paginator := awss3.NewListObjectsV2Paginator(client, &awss3.ListObjectsV2Input{
		Bucket: aws.String("pages"), MaxKeys: aws.Int32(3),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		require.NoError(t, err)
		for _, object := range page.Contents {
			collected = append(collected, aws.ToString(object.Key))
		}
	}
	assert.Equal(t, expected, collected)
}

func TestDeleteBucketSemantics(t *testing.T) {
	h := startGateway(t, true)
	client := h.s3Client(t)
	ctx := context.Background()

	createBucket(t, client, "doomed")
	_, err := client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String("doomed"), Key: aws.String("blocker"),
		Body: strings.NewReader("x"),
	})
	require.NoError(t, err)

	_, err = client.DeleteBucket(ctx, &awss3.DeleteBucketInput{Bucket: aws.String("doomed")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BucketNotEmpty")

	_, err = client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String("doomed"), Key: aws.String("blocker"),
	})
	require.NoError(t, err)

	_, err = client.DeleteBucket(ctx, &awss3.DeleteBucketInput{Bucket: aws.String("doomed")})
	require.NoError(t, err)
}

// A presigned URL works immediately and expires afterwards.
func TestPresignedURLExpiry(t *testing.T) {
	h := startGateway(t, false) // signatures verified
	client := h.s3Client(t)
	ctx := context.Background()

	createBucket(t, client, "signed")
	_, err := client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String("signed"), Key: aws.String("k"),
		Body: strings.NewReader("payload"),
	})
	require.NoError(t, err)

	presigner := awss3.NewPresignClient(client)
	presigned, err := presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String("signed"), Key: aws.String("k"),
	}, func(o *awss3.PresignOptions) {
		o.Expires = 1 * time.Second
	})
	require.NoError(t, err)

	response, err := http.Get(presigned.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode, string(body))
	assert.Equal(t, "payload", string(body))

	time.Sleep(2 * time.Second)

	response, err = http.Get(presigned.URL)
	require.NoError(t, err)
	body, _ = io.ReadAll(response.Body)
	response.Body.Close()
	assert.Equal(t, http.StatusForbidden, response.StatusCode)
	assert.Contains(t, string(body), "RequestExpired")
}

func TestCopyObject(t *testing.T) {
	h := startGateway(t, true)
	client := h.s3Client(t)
	ctx := context.Background()

	createBucket(t, client, "src")
	createBucket(t, client, "dst")
	put, err := client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String("src"), Key: aws.String("k"),
		Body: strings.NewReader("copy me"),
	})
	require.NoError(t, err)

	copied, err := client.CopyObject(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String("dst"),
		Key:        aws.String("k2"),
		CopySource: aws.String("src/k"),
	})
	require.NoError(t, err)
	assert.Equal(t, aws.ToString(put.ETag), aws.ToString(copied.CopyObjectResult.ETag))
	assert.Equal(t, "copy me", getBody(t, client, "dst", "k2", ""))
}

func TestHealthEndpoint(t *testing.T) {
	h := startGateway(t, true)

	response, err := http.Get(h.server.URL + "/_localstack/health")
	require.NoError(t, err)
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, string(body), `"s3":"running"`)
	assert.Contains(t, string(body), `"dynamodb":"running"`)
}

func prefixes(common []s3types.CommonPrefix) []string {
	out := make([]string, len(common))
	for i, prefix := range common {
		out[i] = aws.ToString(prefix.Prefix)
	}
	return out
}
