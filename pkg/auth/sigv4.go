package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "localcloud/pkg/errors"
)

const (
	algorithmSigV4 = "AWS4-HMAC-SHA256"
	scopeSuffix    = "aws4_request"
	timeFormat     = "20060102T150405Z"
)

// Request carries the parts of an HTTP request that participate in signature
// verification. RawQuery is kept exactly as received; percent-encoding is not
// re-normalized.
type Request struct {
	Method      string
	Path        string
	RawQuery    string
	Header      http.Header
	PayloadHash string
}

// NewRequestFromHTTP captures the verification-relevant parts of an incoming
// request. The Host value is folded back into the header set because net/http
// promotes it out of Header and it is almost always a signed header.
func NewRequestFromHTTP(r *http.Request, payloadHash string) *Request {
	header := r.Header.Clone()
	if header.Get("Host") == "" && r.Host != "" {
		header.Set("Host", r.Host)
	}
	return &Request{
		Method:      r.Method,
		Path:        r.URL.EscapedPath(),
		RawQuery:    r.URL.RawQuery,
		Header:      header,
		PayloadHash: payloadHash,
	}
}

// Result identifies the verified caller.
type Result struct {
	AccessKeyID   string
	Region        string
	Service       string
	SignedHeaders []string
}

// Verifier checks SigV4, presigned SigV4 and SigV2 signatures against a
// credential store. When Skip is set every request passes unverified, which
// is the default for local development.
type Verifier struct {
	creds  CredentialStore
	skip   bool
	logger *zap.Logger
	now    func() time.Time
}

// NewVerifier builds a Verifier. A nil logger falls back to zap.NewNop.
func NewVerifier(creds CredentialStore, skip bool, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{creds: creds, skip: skip, logger: logger, now: time.Now}
}

// Skips reports whether signature validation is disabled.
func (v *Verifier) Skips() bool { return v.skip }

// Verify dispatches to the right flow: presigned parameters in the query win,
// then the Authorization header selects SigV4 or SigV2.
func (v *Verifier) Verify(req *Request) (*Result, error) {
	if v.skip {
		return &Result{}, nil
	}
	if strings.Contains(req.RawQuery, "X-Amz-Signature=") {
		return v.verifyPresigned(req)
	}
	authHeader := req.Header.Get("Authorization")
	switch {
	case authHeader == "":
		return nil, errMissingAuthHeader()
	case strings.HasPrefix(authHeader, algorithmSigV4):
		return v.verifySigV4(req, authHeader)
	case strings.HasPrefix(authHeader, "AWS "):
		return v.verifySigV2(req, authHeader)
	default:
		return nil, errUnsupportedAlgorithm(authHeader)
	}
}

// verifySigV4 checks a header-signed request.
func (v *Verifier) verifySigV4(req *Request, authHeader string) (*Result, error) {
	parsed, err := parseAuthorizationHeader(authHeader)
	if err != nil {
		return nil, err
	}

	timestamp := req.Header.Get("x-amz-date")
	if timestamp == "" {
		return nil, errMissingHeader("x-amz-date")
	}
	for _, name := range parsed.signedHeaders {
		if len(req.Header.Values(name)) == 0 && !strings.EqualFold(name, "host") {
			return nil, errMissingHeader(name)
		}
	}

	secret, err := v.creds.SecretKey(parsed.accessKeyID)
	if err != nil {
		return nil, err
	}

	payloadHash := req.PayloadHash
	if payloadHash == "" {
		payloadHash = UnsignedPayload
	}

	canonicalRequest := buildCanonicalRequest(
		req.Method, req.Path, req.RawQuery, req.Header, parsed.signedHeaders, payloadHash)
	stringToSign := buildStringToSign(timestamp, parsed.scope(), canonicalRequest)
	signingKey := deriveSigningKey(secret, parsed.date, parsed.region, parsed.service)
	expected := computeSignature(signingKey, stringToSign)

	if !constantTimeEqual(expected, parsed.signature) {
		v.logger.Debug("sigv4 signature mismatch",
			zap.String("access_key_id", parsed.accessKeyID))
		return nil, errSignatureDoesNotMatch()
	}

	return &Result{
		AccessKeyID:   parsed.accessKeyID,
		Region:        parsed.region,
		Service:       parsed.service,
		SignedHeaders: parsed.signedHeaders,
	}, nil
}

type parsedAuthorization struct {
	accessKeyID   string
	date          string
	region        string
	service       string
	signedHeaders []string
	signature     string
}

func (p *parsedAuthorization) scope() string {
	return strings.Join([]string{p.date, p.region, p.service, scopeSuffix}, "/")
}

// parseAuthorizationHeader parses
//
//	AWS4-HMAC-SHA256 Credential=AKID/date/region/service/aws4_request, SignedHeaders=a;b, Signature=hex
func parseAuthorizationHeader(header string) (*parsedAuthorization, error) {
	rest, ok := strings.CutPrefix(header, algorithmSigV4)
	if !ok {
		return nil, errUnsupportedAlgorithm(header)
	}

	parsed := &parsedAuthorization{}
	for _, piece := range strings.Split(rest, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(piece), "=")
		if !found {
			return nil, errInvalidAuthHeader()
		}
		switch key {
		case "Credential":
			parts := strings.SplitN(value, "/", 5)
			if len(parts) != 5 || parts[4] != scopeSuffix {
				return nil, errInvalidCredential()
			}
			parsed.accessKeyID = parts[0]
			parsed.date = parts[1]
			parsed.region = parts[2]
			parsed.service = parts[3]
		case "SignedHeaders":
			parsed.signedHeaders = strings.Split(strings.ToLower(value), ";")
		case "Signature":
			parsed.signature = value
		}
	}

	if parsed.accessKeyID == "" || len(parsed.signedHeaders) == 0 || parsed.signature == "" {
		return nil, errInvalidAuthHeader()
	}
	return parsed, nil
}

// buildStringToSign assembles the SigV4 string to sign.
func buildStringToSign(timestamp, scope, canonicalRequest string) string {
	digest := sha256.Sum256([]byte(canonicalRequest))
	return strings.Join([]string{
		algorithmSigV4,
		timestamp,
		scope,
		hex.EncodeToString(digest[:]),
	}, "\n")
}

// deriveSigningKey runs the four-step HMAC chain.
func deriveSigningKey(secret, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), date)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, scopeSuffix)
}

func computeSignature(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signingKey, stringToSign))
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

// constantTimeEqual compares signatures without early exit.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func errMissingAuthHeader() error {
	return apperrors.New(apperrors.ErrorTypeAccessDenied, "MissingAuthHeader",
		"request is missing the Authorization header")
}

func errInvalidAuthHeader() error {
	return apperrors.New(apperrors.ErrorTypeAccessDenied, "InvalidAuthHeader",
		"the Authorization header is malformed")
}

func errUnsupportedAlgorithm(header string) error {
	algorithm, _, _ := strings.Cut(header, " ")
	return apperrors.Newf(apperrors.ErrorTypeAccessDenied, "UnsupportedAlgorithm",
		"unsupported signing algorithm %q", algorithm)
}

func errInvalidCredential() error {
	return apperrors.New(apperrors.ErrorTypeAccessDenied, "InvalidCredential",
		"the credential scope is malformed")
}

func errMissingHeader(name string) error {
	return apperrors.Newf(apperrors.ErrorTypeAccessDenied, "MissingHeader",
		"signed header %q is missing from the request", name)
}

func errSignatureDoesNotMatch() error {
	return apperrors.New(apperrors.ErrorTypeAccessDenied, "SignatureDoesNotMatch",
		"The request signature we calculated does not match the signature you provided.")
}
