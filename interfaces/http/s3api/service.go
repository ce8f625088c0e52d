// Package s3api implements the S3 REST protocol in front of the object
// store: request classification, operation identification, XML codecs and
// the per-operation handlers.
package s3api

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"localcloud/infrastructure/persistence/memory"
	"localcloud/pkg/auth"
	apperrors "localcloud/pkg/errors"
)

// Options configures the protocol front-end.
type Options struct {
	VirtualHosting bool
	Domain         string
	Region         string
	MaxBodySize    int64
}

// Service is the S3 protocol front-end.
type Service struct {
	store    *memory.ObjectStore
	verifier *auth.Verifier
	opts     Options
	logger   *zap.Logger
}

// NewService wires the protocol layer to its object store and verifier.
func NewService(store *memory.ObjectStore, verifier *auth.Verifier, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, verifier: verifier, opts: opts, logger: logger}
}

// Name identifies the service to the gateway.
func (s *Service) Name() string { return "s3" }

// Match accepts every request not claimed by another service; S3 is the
// catch-all.
func (s *Service) Match(r *http.Request) bool { return true }

// requestContext carries one classified request through a handler.
type requestContext struct {
	r      *http.Request
	w      http.ResponseWriter
	bucket string
	key    string
	query  map[string]string
	body   []byte
}

// ServeHTTP classifies, authenticates and dispatches one S3 request.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key := s.classify(r)

	if r.Method == http.MethodOptions {
		s.handlePreflight(w, r, bucket)
		return
	}

	// The raw body is read before signature verification (the signed payload
	// hash covers the wire form) and unframed afterwards.
	body, err := s.readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.verify(r, body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if isAWSChunked(r) {
		body, err = decodeAWSChunked(body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		stripChunkedEncoding(r)
	}

	ctx := &requestContext{
		r:      r,
		w:      w,
		bucket: bucket,
		key:    key,
		query:  flattenQuery(r),
		body:   body,
	}

	op := identifyOperation(r, bucket, key, ctx.query)
	s.logger.Debug("s3 request",
		zap.String("operation", op),
		zap.String("bucket", bucket),
		zap.String("key", key))

	if err := s.dispatch(op, ctx); err != nil {
		s.writeError(w, r, err)
	}
}

// readBody collects the raw request body up to the configured cap.
func (s *Service) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	reader := io.Reader(r.Body)
	if s.opts.MaxBodySize > 0 {
		reader = io.LimitReader(r.Body, s.opts.MaxBodySize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if s.opts.MaxBodySize > 0 && int64(len(body)) > s.opts.MaxBodySize {
		return nil, apperrors.EntityTooLarge()
	}
	return body, nil
}

// verify runs signature verification over the collected request.
func (s *Service) verify(r *http.Request, body []byte) error {
	if s.verifier.Skips() {
		return nil
	}
	payloadHash := r.Header.Get("x-amz-content-sha256")
	if payloadHash == "" {
		sum := sha256.Sum256(body)
		payloadHash = hex.EncodeToString(sum[:])
	}
	_, err := s.verifier.Verify(auth.NewRequestFromHTTP(r, payloadHash))
	return err
}

// classify resolves the bucket and key from either virtual-hosted or
// path-style addressing.
func (s *Service) classify(r *http.Request) (bucket, key string) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	if s.opts.VirtualHosting {
		host := r.Host
		if index := strings.IndexByte(host, ':'); index >= 0 {
			host = host[:index]
		}
		suffix := "." + s.opts.Domain
		if strings.HasSuffix(host, suffix) {
			bucket = strings.TrimSuffix(host, suffix)
			return bucket, path
		}
	}

	bucket, key, _ = strings.Cut(path, "/")
	return bucket, key
}

// flattenQuery keeps the first value of each query parameter, which is all
// the S3 sub-resource grammar uses.
func flattenQuery(r *http.Request) map[string]string {
	flattened := map[string]string{}
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			flattened[name] = values[0]
		} else {
			flattened[name] = ""
		}
	}
	return flattened
}
