package s3api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	apperrors "localcloud/pkg/errors"
)

// isAWSChunked detects the aws-chunked framing, signalled by either the
// Content-Encoding or a STREAMING-* payload hash.
func isAWSChunked(r *http.Request) bool {
	for _, encoding := range strings.Split(r.Header.Get("Content-Encoding"), ",") {
		if strings.TrimSpace(encoding) == "aws-chunked" {
			return true
		}
	}
	return strings.HasPrefix(r.Header.Get("x-amz-content-sha256"), "STREAMING-")
}

// decodeAWSChunked strips the chunk envelope:
//
//	<hex-size>[;chunk-signature=…]\r\n<data>\r\n
//
// terminated by a zero-size chunk, optionally followed by trailers.
func decodeAWSChunked(body []byte) ([]byte, error) {
	var payload bytes.Buffer
	rest := body

	for {
		lineEnd := bytes.Index(rest, []byte("\r\n"))
		if lineEnd < 0 {
			return nil, apperrors.InvalidArgument("malformed aws-chunked framing: missing chunk header")
		}
		header := string(rest[:lineEnd])
		rest = rest[lineEnd+2:]

		sizeField, _, _ := strings.Cut(header, ";")
		size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil || size < 0 {
			return nil, apperrors.InvalidArgument("malformed aws-chunked framing: bad chunk size")
		}

		if size == 0 {
			// Trailers (x-amz-trailer values, final chunk signature) follow
			// the zero chunk; they are not part of the payload.
			return payload.Bytes(), nil
		}

		if int64(len(rest)) < size+2 {
			return nil, apperrors.InvalidArgument("malformed aws-chunked framing: truncated chunk")
		}
		payload.Write(rest[:size])
		if rest[size] != '\r' || rest[size+1] != '\n' {
			return nil, apperrors.InvalidArgument("malformed aws-chunked framing: missing chunk terminator")
		}
		rest = rest[size+2:]
	}
}

// encodeAWSChunked frames a payload as a single chunk plus terminator. Used
// by tests to exercise the round-trip.
func encodeAWSChunked(payload []byte) []byte {
	var framed bytes.Buffer
	if len(payload) > 0 {
		framed.WriteString(strconv.FormatInt(int64(len(payload)), 16))
		framed.WriteString("\r\n")
		framed.Write(payload)
		framed.WriteString("\r\n")
	}
	framed.WriteString("0\r\n\r\n")
	return framed.Bytes()
}

// stripChunkedEncoding removes aws-chunked from Content-Encoding, dropping
// the header when nothing else remains.
func stripChunkedEncoding(r *http.Request) {
	var kept []string
	for _, encoding := range strings.Split(r.Header.Get("Content-Encoding"), ",") {
		encoding = strings.TrimSpace(encoding)
		if encoding != "" && encoding != "aws-chunked" {
			kept = append(kept, encoding)
		}
	}
	if len(kept) == 0 {
		r.Header.Del("Content-Encoding")
	} else {
		r.Header.Set("Content-Encoding", strings.Join(kept, ","))
	}
}
