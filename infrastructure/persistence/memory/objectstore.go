// Package memory holds the in-memory storage engines behind the S3 and
// DynamoDB front-ends. State lives for the lifetime of the process.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"localcloud/domain/s3"
	"localcloud/infrastructure/persistence/bodystore"
	apperrors "localcloud/pkg/errors"
	"localcloud/pkg/observability"
)

// ObjectStore is the bucket/object state engine. Buckets are isolation
// units: each carries its own lock; the store-level lock only guards the
// bucket map and the global name registry.
type ObjectStore struct {
	bodies  *bodystore.Store
	logger  *zap.Logger
	metrics *observability.Collector

	defaultRegion string
	minPartSize   int64

	mu      sync.RWMutex
	buckets map[string]*bucketState
	// owners maps bucket name to owner id; bucket names are globally unique
	// across accounts.
	owners map[string]string
}

type bucketState struct {
	mu      sync.RWMutex
	meta    *s3.Bucket
	keys    []string // sorted object keys
	chains  map[string]*s3.VersionChain
	uploads map[string]*s3.MultipartUpload
}

// NewObjectStore builds an empty engine over the given body store.
func NewObjectStore(bodies *bodystore.Store, defaultRegion string, minPartSize int64, logger *zap.Logger, metrics *observability.Collector) *ObjectStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectStore{
		bodies:        bodies,
		logger:        logger,
		metrics:       metrics,
		defaultRegion: defaultRegion,
		minPartSize:   minPartSize,
		buckets:       map[string]*bucketState{},
		owners:        map[string]string{},
	}
}

// Bodies exposes the body store for streaming reads by the protocol layer.
func (s *ObjectStore) Bodies() *bodystore.Store { return s.bodies }

// CreateBucket registers a new bucket. Name collisions distinguish the
// BucketAlreadyOwnedByYou case from the cross-account conflict.
func (s *ObjectStore) CreateBucket(name, region string, owner s3.Owner) error {
	if !s3.ValidBucketName(name) {
		return apperrors.InvalidBucketName(name)
	}
	if region == "" {
		region = s.defaultRegion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID, exists := s.owners[name]; exists {
		if ownerID == owner.ID {
			return apperrors.BucketAlreadyOwnedByYou(name)
		}
		return apperrors.BucketAlreadyExists(name)
	}
	s.buckets[name] = &bucketState{
		meta: &s3.Bucket{
			Name:      name,
			Region:    region,
			Owner:     owner,
			CreatedAt: time.Now().UTC(),
		},
		chains:  map[string]*s3.VersionChain{},
		uploads: map[string]*s3.MultipartUpload{},
	}
	s.owners[name] = owner.ID
	s.updateBucketGauge(len(s.buckets))
	return nil
}

// DeleteBucket removes an empty bucket. The emptiness check and the removal
// run under the bucket lock so a concurrent put cannot slip in between.
func (s *ObjectStore) DeleteBucket(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.buckets[name]
	if !ok {
		return apperrors.NoSuchBucket(name)
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	empty := len(bucket.chains) == 0 && len(bucket.uploads) == 0
	if !empty {
		return apperrors.BucketNotEmpty(name)
	}

	delete(s.buckets, name)
	delete(s.owners, name)
	s.updateBucketGauge(len(s.buckets))
	return nil
}

// Bucket returns a copy of the bucket configuration.
func (s *ObjectStore) Bucket(name string) (s3.Bucket, error) {
	bucket, err := s.bucket(name)
	if err != nil {
		return s3.Bucket{}, err
	}
	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	return *bucket.meta, nil
}

// UpdateBucket applies fn to the bucket configuration under its write lock.
func (s *ObjectStore) UpdateBucket(name string, fn func(*s3.Bucket) error) error {
	bucket, err := s.bucket(name)
	if err != nil {
		return err
	}
	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	return fn(bucket.meta)
}

// BucketExists reports whether the bucket is registered.
func (s *ObjectStore) BucketExists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[name]
	return ok
}

// ListBuckets returns all buckets sorted by name.
func (s *ObjectStore) ListBuckets() []s3.Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buckets := make([]s3.Bucket, 0, len(s.buckets))
	for _, state := range s.buckets {
		state.mu.RLock()
		buckets = append(buckets, *state.meta)
		state.mu.RUnlock()
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets
}

// Reset drops all buckets and bodies.
func (s *ObjectStore) Reset() {
	s.mu.Lock()
	s.buckets = map[string]*bucketState{}
	s.owners = map[string]string{}
	s.updateBucketGauge(0)
	s.mu.Unlock()
	s.bodies.Reset()
}

func (s *ObjectStore) bucket(name string) (*bucketState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.buckets[name]
	if !ok {
		return nil, apperrors.NoSuchBucket(name)
	}
	return bucket, nil
}

func (s *ObjectStore) updateBucketGauge(n int) {
	if s.metrics != nil {
		s.metrics.BucketsActive.Set(float64(n))
	}
}

// newVersionID generates an opaque, unique version token.
func newVersionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// insertKey keeps the key slice sorted; no-op when the key is present.
func (b *bucketState) insertKey(key string) {
	i := sort.SearchStrings(b.keys, key)
	if i < len(b.keys) && b.keys[i] == key {
		return
	}
	b.keys = append(b.keys, "")
	copy(b.keys[i+1:], b.keys[i:])
	b.keys[i] = key
}

// removeKey drops a key from the sorted slice.
func (b *bucketState) removeKey(key string) {
	i := sort.SearchStrings(b.keys, key)
	if i < len(b.keys) && b.keys[i] == key {
		b.keys = append(b.keys[:i], b.keys[i+1:]...)
	}
}
