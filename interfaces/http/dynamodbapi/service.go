// Package dynamodbapi implements the DynamoDB JSON protocol front-end:
// X-Amz-Target dispatch, request/response codecs and the error envelope.
package dynamodbapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/crc32"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"localcloud/infrastructure/persistence/memory"
	"localcloud/pkg/auth"
	apperrors "localcloud/pkg/errors"
)

const (
	targetPrefix  = "DynamoDB_20120810."
	errorTypeBase = "com.amazonaws.dynamodb.v20120810#"
	contentType   = "application/x-amz-json-1.0"
)

// Service is the DynamoDB protocol front-end.
type Service struct {
	engine   *memory.TableEngine
	verifier *auth.Verifier
	logger   *zap.Logger
}

// NewService wires the front-end to the table engine.
func NewService(engine *memory.TableEngine, verifier *auth.Verifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, verifier: verifier, logger: logger}
}

// Name identifies the service to the gateway.
func (s *Service) Name() string { return "dynamodb" }

// Match claims requests carrying a DynamoDB X-Amz-Target.
func (s *Service) Match(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("X-Amz-Target"), "DynamoDB_")
}

// ServeHTTP decodes, dispatches and encodes one operation.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	op, hasPrefix := strings.CutPrefix(target, targetPrefix)
	if target == "" || !hasPrefix {
		s.writeError(w, apperrors.MissingActionError())
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, apperrors.InternalServerError(err))
		return
	}

	if !s.verifier.Skips() {
		payloadHash := r.Header.Get("x-amz-content-sha256")
		if payloadHash == "" {
			sum := sha256.Sum256(body)
			payloadHash = hex.EncodeToString(sum[:])
		}
		if _, err := s.verifier.Verify(auth.NewRequestFromHTTP(r, payloadHash)); err != nil {
			s.writeError(w, apperrors.UnrecognizedClient())
			return
		}
	}

	s.logger.Debug("dynamodb request", zap.String("operation", op))

	output, err := s.dispatch(op, body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, output)
}

func (s *Service) dispatch(op string, body []byte) (any, error) {
	switch op {
	case "CreateTable":
		return s.handleCreateTable(body)
	case "DeleteTable":
		return s.handleDeleteTable(body)
	case "DescribeTable":
		return s.handleDescribeTable(body)
	case "ListTables":
		return s.handleListTables(body)
	case "UpdateTable":
		return s.handleUpdateTable(body)
	case "PutItem":
		return s.handlePutItem(body)
	case "GetItem":
		return s.handleGetItem(body)
	case "UpdateItem":
		return s.handleUpdateItem(body)
	case "DeleteItem":
		return s.handleDeleteItem(body)
	case "Query":
		return s.handleQuery(body)
	case "Scan":
		return s.handleScan(body)
	case "BatchGetItem":
		return s.handleBatchGetItem(body)
	case "BatchWriteItem":
		return s.handleBatchWriteItem(body)
	case "TagResource":
		return s.handleTagResource(body)
	case "UntagResource":
		return s.handleUntagResource(body)
	case "ListTagsOfResource":
		return s.handleListTags(body)
	case "DescribeTimeToLive":
		return s.handleDescribeTimeToLive(body)
	default:
		return nil, apperrors.Newf(apperrors.ErrorTypeInvalidArgument, "UnknownOperationException",
			"unknown operation %s", op)
	}
}

// writeJSON emits a success payload with the crc32 header.
func (s *Service) writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.writeError(w, apperrors.InternalServerError(err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("x-amz-crc32", strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 10))
	w.WriteHeader(status)
	w.Write(data)
}

// writeError emits the namespaced __type error document.
func (s *Service) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	message := ""
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
	}
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("dynamodb request failed", zap.Error(err))
		code = "InternalServerError"
	}

	payload := map[string]string{
		"__type":  errorTypeBase + code,
		"Message": message,
	}
	data, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("x-amz-crc32", strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 10))
	if requestID := w.Header().Get("x-amz-request-id"); requestID != "" {
		w.Header().Set("x-amzn-requestid", requestID)
	}
	w.WriteHeader(status)
	w.Write(data)
}

// decode unmarshals a request body, mapping malformed JSON to
// SerializationException.
func decode(body []byte, target any) error {
	if len(body) == 0 {
		return apperrors.Serialization("empty request body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return apperrors.Serialization(err.Error())
	}
	return nil
}
