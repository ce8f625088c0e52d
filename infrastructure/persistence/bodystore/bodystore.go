// Package bodystore holds object bodies for the S3 engine. Small bodies stay
// in memory; bodies over the configured threshold are spilled to disk. Bodies
// are refcounted so copies and multipart assembly can share storage.
package bodystore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "localcloud/pkg/errors"
	"localcloud/pkg/observability"
)

// DefaultMemoryThreshold is the spill threshold when none is configured.
const DefaultMemoryThreshold = 512 * 1024

type body struct {
	mem  []byte
	path string
	size int64
	refs int
}

// Store is the refcounted body storage engine.
type Store struct {
	threshold int64
	dir       string
	logger    *zap.Logger
	metrics   *observability.Collector
	breaker   *gobreaker.CircuitBreaker

	mu     sync.Mutex
	bodies map[string]*body
	held   int64
}

// New creates a Store spilling to dir once bodies exceed threshold bytes.
// A zero threshold selects the default. The metrics collector may be nil.
func New(threshold int64, dir string, logger *zap.Logger, metrics *observability.Collector) (*Store, error) {
	if threshold <= 0 {
		threshold = DefaultMemoryThreshold
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "localcloud-bodies")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create body spill directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bodystore-disk",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("body store breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Store{
		threshold: threshold,
		dir:       dir,
		logger:    logger,
		metrics:   metrics,
		breaker:   breaker,
		bodies:    map[string]*body{},
	}, nil
}

// Write stores data and returns the new body id with refcount 1.
func (s *Store) Write(data []byte) (string, error) {
	id := uuid.NewString()
	entry := &body{size: int64(len(data)), refs: 1}

	if int64(len(data)) <= s.threshold {
		entry.mem = append([]byte(nil), data...)
	} else {
		path, err := s.spill(id, data)
		if err != nil {
			return "", apperrors.InternalError(err)
		}
		entry.path = path
		if s.metrics != nil {
			s.metrics.BodyStoreSpills.Inc()
		}
	}

	s.mu.Lock()
	s.bodies[id] = entry
	s.held += entry.size
	s.mu.Unlock()
	s.updateGauge()
	return id, nil
}

// spill writes data to disk through the breaker, retrying a transient write
// failure once before surfacing it.
func (s *Store) spill(id string, data []byte) (string, error) {
	path := filepath.Join(s.dir, id)
	_, err := s.breaker.Execute(func() (any, error) {
		if err := atomicWrite(path, data); err != nil {
			s.logger.Warn("body spill write failed, retrying", zap.Error(err))
			if err = atomicWrite(path, data); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return "", fmt.Errorf("spill body %s: %w", id, err)
	}
	return path, nil
}

// atomicWrite writes to a temp file and renames it into place.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Size returns the stored size of a body.
func (s *Store) Size(id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.bodies[id]
	if !ok {
		return 0, apperrors.InternalError(fmt.Errorf("unknown body id %s", id))
	}
	return entry.size, nil
}

// Open returns a reader over [offset, offset+length). A negative length
// reads to the end of the body.
func (s *Store) Open(id string, offset, length int64) (io.ReadCloser, error) {
	s.mu.Lock()
	entry, ok := s.bodies[id]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.InternalError(fmt.Errorf("unknown body id %s", id))
	}
	if offset < 0 || offset > entry.size {
		return nil, apperrors.InvalidRange("the requested range is not satisfiable")
	}
	if length < 0 || offset+length > entry.size {
		length = entry.size - offset
	}

	if entry.path == "" {
		return io.NopCloser(bytes.NewReader(entry.mem[offset : offset+length])), nil
	}

	file, err := os.Open(entry.path)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, apperrors.InternalError(err)
	}
	return &limitedFile{file: file, remaining: length}, nil
}

// ReadAll loads a full body into memory.
func (s *Store) ReadAll(id string) ([]byte, error) {
	reader, err := s.Open(id, 0, -1)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return data, nil
}

// Retain increments a body's refcount, used when a copy shares storage.
func (s *Store) Retain(id string) {
	s.mu.Lock()
	if entry, ok := s.bodies[id]; ok {
		entry.refs++
	}
	s.mu.Unlock()
}

// Release decrements a body's refcount and frees storage at zero.
func (s *Store) Release(id string) {
	s.mu.Lock()
	entry, ok := s.bodies[id]
	if ok {
		entry.refs--
		if entry.refs <= 0 {
			delete(s.bodies, id)
			s.held -= entry.size
		} else {
			entry = nil
		}
	}
	s.mu.Unlock()

	if ok && entry != nil && entry.path != "" {
		if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove spilled body", zap.String("path", entry.path), zap.Error(err))
		}
	}
	s.updateGauge()
}

// Reset drops every body and its spilled file.
func (s *Store) Reset() {
	s.mu.Lock()
	bodies := s.bodies
	s.bodies = map[string]*body{}
	s.held = 0
	s.mu.Unlock()

	for _, entry := range bodies {
		if entry.path != "" {
			os.Remove(entry.path)
		}
	}
	s.updateGauge()
}

func (s *Store) updateGauge() {
	if s.metrics == nil {
		return
	}
	s.mu.Lock()
	held := s.held
	s.mu.Unlock()
	s.metrics.BodyStoreBytes.Set(float64(held))
}

// limitedFile reads at most remaining bytes from the underlying file.
type limitedFile struct {
	file      *os.File
	remaining int64
}

func (l *limitedFile) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.file.Read(p)
	l.remaining -= int64(n)
	return n, err
}

func (l *limitedFile) Close() error { return l.file.Close() }
