package filetree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore is the minimal API the archiver needs from an object storage
// backend. Kept tiny so tests can run against an in-memory fake.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte) error
}

// SnapshotArchiver writes every replaced snapshot to object storage under
// {prefix}/{projectID}/{unix-nanos}.json. It exists for audit/catch-up
// consumers; the authoritative copy stays in postgres.
type SnapshotArchiver struct {
	store  ObjectStore
	prefix string
	now    func() time.Time
}

func NewSnapshotArchiver(store ObjectStore, prefix string) *SnapshotArchiver {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &SnapshotArchiver{store: store, prefix: prefix, now: time.Now}
}

func (a *SnapshotArchiver) Archive(ctx context.Context, projectID string, tree Tree) error {
	payload, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%d.json", a.prefix, projectID, a.now().UnixNano())
	if err := a.store.PutObject(ctx, key, payload); err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return nil
}

// InMemoryObjectStore keeps objects in process memory. Safe for concurrent
// use; intended for tests and local development.
type InMemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewInMemoryObjectStore() *InMemoryObjectStore {
	return &InMemoryObjectStore{objects: make(map[string][]byte)}
}

func (s *InMemoryObjectStore) PutObject(_ context.Context, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, len(body))
	copy(data, body)
	s.objects[key] = data
	return nil
}

// Keys returns the stored object keys, for test assertions.
func (s *InMemoryObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// S3ObjectStore stores snapshots in an S3-compatible bucket.
type S3ObjectStore struct {
	client *s3.Client
	bucket string
}

func NewS3ObjectStore(ctx context.Context, bucket string) (*S3ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3ObjectStore{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

func (s *S3ObjectStore) PutObject(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	return err
}
