package auth

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "localcloud/pkg/errors"
)

// presignedParams are the SigV4 parameters carried in a presigned URL query.
type presignedParams struct {
	accessKeyID   string
	date          string
	region        string
	service       string
	timestamp     string
	expires       int64
	signedHeaders []string
	signature     string
}

// verifyPresigned checks a query-signed request. The payload hash is fixed to
// UNSIGNED-PAYLOAD and the canonical query is rebuilt without X-Amz-Signature.
func (v *Verifier) verifyPresigned(req *Request) (*Result, error) {
	params, err := parsePresignedQuery(req.RawQuery)
	if err != nil {
		return nil, err
	}

	if err := checkExpiration(params.timestamp, params.expires, v.now()); err != nil {
		return nil, err
	}

	secret, err := v.creds.SecretKey(params.accessKeyID)
	if err != nil {
		return nil, err
	}

	for _, name := range params.signedHeaders {
		if len(req.Header.Values(name)) == 0 && !strings.EqualFold(name, "host") {
			return nil, errMissingHeader(name)
		}
	}

	queryWithoutSignature := stripSignatureParam(req.RawQuery)
	canonicalRequest := buildCanonicalRequest(
		req.Method, req.Path, queryWithoutSignature, req.Header, params.signedHeaders, UnsignedPayload)

	scope := strings.Join([]string{params.date, params.region, params.service, scopeSuffix}, "/")
	stringToSign := buildStringToSign(params.timestamp, scope, canonicalRequest)
	signingKey := deriveSigningKey(secret, params.date, params.region, params.service)
	expected := computeSignature(signingKey, stringToSign)

	if !constantTimeEqual(expected, params.signature) {
		v.logger.Debug("presigned signature mismatch",
			zap.String("access_key_id", params.accessKeyID))
		return nil, errSignatureDoesNotMatch()
	}

	return &Result{
		AccessKeyID:   params.accessKeyID,
		Region:        params.region,
		Service:       params.service,
		SignedHeaders: params.signedHeaders,
	}, nil
}

func parsePresignedQuery(rawQuery string) (*presignedParams, error) {
	values := map[string]string{}
	for _, piece := range strings.Split(rawQuery, "&") {
		if piece == "" {
			continue
		}
		key, value, found := strings.Cut(piece, "=")
		if !found {
			continue
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			decoded = value
		}
		values[key] = decoded
	}

	algorithm, err := requiredParam(values, "X-Amz-Algorithm")
	if err != nil {
		return nil, err
	}
	if algorithm != algorithmSigV4 {
		return nil, errUnsupportedAlgorithm(algorithm)
	}

	credential, err := requiredParam(values, "X-Amz-Credential")
	if err != nil {
		return nil, err
	}
	timestamp, err := requiredParam(values, "X-Amz-Date")
	if err != nil {
		return nil, err
	}
	expiresStr, err := requiredParam(values, "X-Amz-Expires")
	if err != nil {
		return nil, err
	}
	signedHeadersStr, err := requiredParam(values, "X-Amz-SignedHeaders")
	if err != nil {
		return nil, err
	}
	signature, err := requiredParam(values, "X-Amz-Signature")
	if err != nil {
		return nil, err
	}

	credParts := strings.SplitN(credential, "/", 5)
	if len(credParts) != 5 || credParts[4] != scopeSuffix {
		return nil, errInvalidCredential()
	}

	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || expires < 0 {
		return nil, errMissingQueryParam("X-Amz-Expires (invalid integer)")
	}

	return &presignedParams{
		accessKeyID:   credParts[0],
		date:          credParts[1],
		region:        credParts[2],
		service:       credParts[3],
		timestamp:     timestamp,
		expires:       expires,
		signedHeaders: strings.Split(strings.ToLower(signedHeadersStr), ";"),
		signature:     signature,
	}, nil
}

// checkExpiration fails with RequestExpired once now is past date+expires.
func checkExpiration(timestamp string, expires int64, now time.Time) error {
	requestTime, err := time.Parse(timeFormat, timestamp)
	if err != nil {
		return errMissingQueryParam("X-Amz-Date (invalid format)")
	}
	expiry := requestTime.Add(time.Duration(expires) * time.Second)
	if now.UTC().After(expiry) {
		return apperrors.New(apperrors.ErrorTypeAccessDenied, "RequestExpired",
			"Request has expired")
	}
	return nil
}

// stripSignatureParam removes X-Amz-Signature from the raw query while
// leaving every other byte untouched.
func stripSignatureParam(rawQuery string) string {
	pieces := strings.Split(rawQuery, "&")
	kept := pieces[:0]
	for _, piece := range pieces {
		if strings.HasPrefix(piece, "X-Amz-Signature=") {
			continue
		}
		kept = append(kept, piece)
	}
	return strings.Join(kept, "&")
}

func requiredParam(values map[string]string, name string) (string, error) {
	value, ok := values[name]
	if !ok || value == "" {
		return "", errMissingQueryParam(name)
	}
	return value, nil
}

func errMissingQueryParam(name string) error {
	return apperrors.Newf(apperrors.ErrorTypeAccessDenied, "MissingQueryParam",
		"required query parameter %q is missing", name)
}
