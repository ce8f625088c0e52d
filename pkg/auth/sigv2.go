package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// sigv2SubResources is the fixed set of query parameters that participate in
// the SigV2 canonicalized resource.
var sigv2SubResources = map[string]bool{
	"acl": true, "cors": true, "delete": true, "lifecycle": true,
	"location": true, "logging": true, "notification": true,
	"partNumber": true, "policy": true, "requestPayment": true,
	"response-cache-control": true, "response-content-disposition": true,
	"response-content-encoding": true, "response-content-language": true,
	"response-content-type": true, "response-expires": true,
	"restore": true, "tagging": true, "torrent": true,
	"uploadId": true, "uploads": true, "versionId": true,
	"versioning": true, "versions": true, "website": true,
}

// verifySigV2 checks a legacy `Authorization: AWS AKID:base64sig` request.
func (v *Verifier) verifySigV2(req *Request, authHeader string) (*Result, error) {
	rest, ok := strings.CutPrefix(authHeader, "AWS ")
	if !ok {
		return nil, errInvalidAuthHeader()
	}
	accessKeyID, signature, found := strings.Cut(rest, ":")
	if !found || accessKeyID == "" || signature == "" {
		return nil, errInvalidAuthHeader()
	}

	secret, err := v.creds.SecretKey(accessKeyID)
	if err != nil {
		return nil, err
	}

	stringToSign := buildSigV2StringToSign(req)
	expected := computeSigV2Signature(secret, stringToSign)

	if !constantTimeEqual(expected, signature) {
		v.logger.Debug("sigv2 signature mismatch", zap.String("access_key_id", accessKeyID))
		return nil, errSignatureDoesNotMatch()
	}

	return &Result{AccessKeyID: accessKeyID, Service: "s3"}, nil
}

// buildSigV2StringToSign assembles
//
//	Method\nContent-MD5\nContent-Type\nDate\nCanonicalizedAmzHeaders CanonicalizedResource
//
// The Date line is empty when x-amz-date is present.
func buildSigV2StringToSign(req *Request) string {
	date := req.Header.Get("Date")
	if req.Header.Get("x-amz-date") != "" {
		date = ""
	}

	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte('\n')
	b.WriteString(req.Header.Get("Content-MD5"))
	b.WriteByte('\n')
	b.WriteString(req.Header.Get("Content-Type"))
	b.WriteByte('\n')
	b.WriteString(date)
	b.WriteByte('\n')
	b.WriteString(canonicalizedAmzHeaders(req))
	b.WriteString(canonicalizedResource(req))
	return b.String()
}

// canonicalizedAmzHeaders lists x-amz-* headers lowercased and sorted, each
// terminated by a newline, multi-value headers joined with commas.
func canonicalizedAmzHeaders(req *Request) string {
	grouped := map[string][]string{}
	for name, values := range req.Header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-") {
			grouped[lower] = append(grouped[lower], values...)
		}
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		values := grouped[name]
		for i, value := range values {
			values[i] = strings.TrimSpace(value)
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(values, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// canonicalizedResource is the path plus any sorted signed sub-resources.
func canonicalizedResource(req *Request) string {
	resource := req.Path
	if resource == "" {
		resource = "/"
	}

	var signed []string
	for _, piece := range strings.Split(req.RawQuery, "&") {
		if piece == "" {
			continue
		}
		key, value, hasValue := strings.Cut(piece, "=")
		if !sigv2SubResources[key] {
			continue
		}
		if hasValue && value != "" {
			signed = append(signed, key+"="+value)
		} else {
			signed = append(signed, key)
		}
	}
	if len(signed) == 0 {
		return resource
	}
	sort.Strings(signed)
	return resource + "?" + strings.Join(signed, "&")
}

func computeSigV2Signature(secret, stringToSign string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
