package s3api

import (
	"bytes"
	"encoding/xml"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"localcloud/domain/s3"
	apperrors "localcloud/pkg/errors"
)

// handlePostObject implements the browser-upload POST form: the body is
// multipart/form-data with the policy fields and a trailing file field.
// The policy document and its conditions are not checked.
func (s *Service) handlePostObject(ctx *requestContext) error {
	_, params, err := mime.ParseMediaType(ctx.r.Header.Get("Content-Type"))
	if err != nil || params["boundary"] == "" {
		return apperrors.Newf(apperrors.ErrorTypeInvalidArgument, "MalformedPOSTRequest",
			"the request is not a well-formed multipart/form-data request")
	}

	reader := multipart.NewReader(bytes.NewReader(ctx.body), params["boundary"])
	fields := map[string]string{}
	var fileData []byte
	var fileContentType, fileName string

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return apperrors.Newf(apperrors.ErrorTypeInvalidArgument, "MalformedPOSTRequest",
				"the request is not a well-formed multipart/form-data request")
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return apperrors.InternalError(err)
		}
		if part.FormName() == "file" {
			fileData = data
			fileContentType = part.Header.Get("Content-Type")
			fileName = part.FileName()
			// The file is the last meaningful field.
			break
		}
		fields[part.FormName()] = string(data)
	}

	key, ok := fields["key"]
	if !ok || key == "" {
		return apperrors.InvalidArgument("the POST form must include a key field")
	}
	// ${filename} substitution uses the uploaded file name; without one the
	// placeholder is simply dropped.
	key = strings.ReplaceAll(key, "${filename}", fileName)

	metadata := s3.ObjectMetadata{
		ContentType:        firstNonEmpty(fields["Content-Type"], fileContentType),
		CacheControl:       fields["Cache-Control"],
		ContentDisposition: fields["Content-Disposition"],
		ContentEncoding:    fields["Content-Encoding"],
		StorageClass:       firstNonEmpty(fields["x-amz-storage-class"], "STANDARD"),
		ACL:                fields["acl"],
	}

	userMetadata := map[string]string{}
	for name, value := range fields {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, metadataPrefix) {
			userMetadata[strings.TrimPrefix(lower, metadataPrefix)] = value
		}
	}
	if len(userMetadata) > 0 {
		metadata.UserMetadata = userMetadata
	}

	if tagging := fields["tagging"]; tagging != "" {
		var doc taggingXML
		if err := xml.Unmarshal([]byte(tagging), &doc); err == nil {
			tags := map[string]string{}
			for _, tag := range doc.Tags {
				tags[tag.Key] = tag.Value
			}
			metadata.Tags = tags
		}
	}

	version, err := s.store.PutObject(ctx.bucket, key, fileData, metadata)
	if err != nil {
		return err
	}

	ctx.w.Header().Set("ETag", version.ETag)
	if version.VersionID != s3.NullVersionID {
		ctx.w.Header().Set("x-amz-version-id", version.VersionID)
	}

	// success_action_status selects 200, 201 or 204 (default).
	switch fields["success_action_status"] {
	case "200":
		ctx.w.WriteHeader(http.StatusOK)
	case "201":
		ctx.w.Header().Set("Content-Type", "application/xml")
		ctx.w.WriteHeader(http.StatusCreated)
		ctx.w.Write([]byte(xmlHeader))
		ctx.w.Write([]byte(`<PostResponse><Bucket>` + ctx.bucket + `</Bucket><Key>` + key +
			`</Key><ETag>` + version.ETag + `</ETag></PostResponse>`))
	default:
		ctx.w.WriteHeader(http.StatusNoContent)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
