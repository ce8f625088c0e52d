package auth

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// UnsignedPayload is the sentinel payload hash for unsigned bodies.
const UnsignedPayload = "UNSIGNED-PAYLOAD"

// canonicalURI percent-encodes each path segment with the AWS reserved set
// (unreserved characters A-Z a-z 0-9 - _ . ~ stay literal, `/` is preserved).
// Segments are decoded first so an already-encoded path is not double-encoded.
func canonicalURI(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	segments := strings.Split(path, "/")
	encoded := make([]string, len(segments))
	for i, segment := range segments {
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			decoded = segment
		}
		encoded[i] = awsURIEncode(decoded)
	}
	return strings.Join(encoded, "/")
}

// canonicalQuery sorts query parameters by key then value. Values are kept
// byte-for-byte as received: clients disagree on which reserved characters
// they percent-encode when signing (AWS SDKs encode `:` and `*`, OkHttp does
// not), and the server must canonicalize exactly what the client signed.
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	type param struct{ key, value string }
	var params []param
	for _, piece := range strings.Split(rawQuery, "&") {
		if piece == "" {
			continue
		}
		key, value, _ := strings.Cut(piece, "=")
		params = append(params, param{key, value})
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].key != params[j].key {
			return params[i].key < params[j].key
		}
		return params[i].value < params[j].value
	})
	pairs := make([]string, len(params))
	for i, p := range params {
		pairs[i] = p.key + "=" + p.value
	}
	return strings.Join(pairs, "&")
}

// canonicalHeaders builds the signed-headers block: lowercase names sorted
// lexically, values trimmed with internal whitespace collapsed, multi-value
// headers joined with commas. Returns an error-free string; missing headers
// are the caller's concern.
func canonicalHeaders(header http.Header, signedHeaders []string) string {
	sorted := append([]string(nil), signedHeaders...)
	sort.Strings(sorted)

	lines := make([]string, 0, len(sorted))
	for _, name := range sorted {
		values := header.Values(name)
		cleaned := make([]string, len(values))
		for i, v := range values {
			cleaned[i] = collapseWhitespace(strings.TrimSpace(v))
		}
		lines = append(lines, name+":"+strings.Join(cleaned, ","))
	}
	return strings.Join(lines, "\n")
}

func signedHeadersString(signedHeaders []string) string {
	sorted := append([]string(nil), signedHeaders...)
	sort.Strings(sorted)
	return strings.Join(sorted, ";")
}

// buildCanonicalRequest assembles the SigV4 canonical request.
func buildCanonicalRequest(method, path, rawQuery string, header http.Header, signedHeaders []string, payloadHash string) string {
	return strings.Join([]string{
		method,
		canonicalURI(path),
		canonicalQuery(rawQuery),
		canonicalHeaders(header, signedHeaders),
		"",
		signedHeadersString(signedHeaders),
		payloadHash,
	}, "\n")
}

// awsURIEncode encodes everything except the RFC 3986 unreserved set.
func awsURIEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexUpper[c>>4])
			b.WriteByte(hexUpper[c&0x0f])
		}
	}
	return b.String()
}

const hexUpper = "0123456789ABCDEF"

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return b.String()
}
