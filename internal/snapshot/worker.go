// Package snapshot renders overlay images for recently mutated users and
// uploads them to object storage, so external consumers (bots, share links)
// can fetch a current map without hitting the rendering path.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"

	"github.com/example/visited-atlas/internal/overlay"
	"github.com/example/visited-atlas/internal/storage"
	"github.com/example/visited-atlas/internal/types"
)

const defaultInterval = 30 * time.Second

// Uploader stores a rendered overlay under an object path.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, payload []byte) error
}

// ObjectUploader writes overlays to MinIO/S3.
type ObjectUploader struct {
	object *minio.Client
	bucket string
}

// NewObjectUploader creates an uploader for the given bucket.
func NewObjectUploader(object *minio.Client, bucket string) *ObjectUploader {
	return &ObjectUploader{object: object, bucket: bucket}
}

// Upload implements Uploader.
func (u *ObjectUploader) Upload(ctx context.Context, objectPath string, payload []byte) error {
	if u.object == nil {
		return errors.New("object storage client is not configured")
	}
	_, err := u.object.PutObject(ctx, u.bucket, objectPath, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "image/png"})
	return err
}

// MemoryUploader collects uploads in memory for tests.
type MemoryUploader struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

// Upload implements Uploader.
func (m *MemoryUploader) Upload(_ context.Context, objectPath string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[objectPath] = payload
	return nil
}

// Worker tracks which users mutated since the last pass and periodically
// renders and uploads their overlays.
type Worker struct {
	store    storage.VisitStore
	features []overlay.Feature
	uploader Uploader
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	dirty map[types.UserID]struct{}
}

// WorkerOption configures the worker.
type WorkerOption func(*Worker)

// WithInterval overrides the snapshot interval.
func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.interval = d }
}

// NewWorker constructs a snapshot worker.
func NewWorker(store storage.VisitStore, features []overlay.Feature, uploader Uploader, logger zerolog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:    store,
		features: features,
		uploader: uploader,
		interval: defaultInterval,
		logger:   logger,
		dirty:    make(map[types.UserID]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// MarkDirty flags a user for re-rendering on the next pass.
func (w *Worker) MarkDirty(user types.UserID) {
	w.mu.Lock()
	w.dirty[user] = struct{}{}
	w.mu.Unlock()
}

// Start begins the periodic snapshot loop.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce renders and uploads overlays for every user marked dirty since
// the previous pass. Failed users stay dirty and are retried next pass.
func (w *Worker) RunOnce(ctx context.Context) {
	w.mu.Lock()
	pending := make([]types.UserID, 0, len(w.dirty))
	for user := range w.dirty {
		pending = append(pending, user)
	}
	w.dirty = make(map[types.UserID]struct{})
	w.mu.Unlock()

	for _, user := range pending {
		if err := w.snapshotUser(ctx, user); err != nil {
			w.logger.Warn().Err(err).Str("user_id", string(user)).Msg("overlay snapshot failed")
			w.MarkDirty(user)
		}
	}
}

func (w *Worker) snapshotUser(ctx context.Context, user types.UserID) error {
	countries, err := w.store.Visited(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("read visited set: %w", err)
	}

	proj := overlay.Project(types.NewVisitedSet(countries...), w.features)
	buffer, err := overlay.Render(proj, w.features)
	if err != nil {
		return fmt.Errorf("render overlay: %w", err)
	}

	objectPath := ObjectPath(user)
	if err := w.uploader.Upload(ctx, objectPath, buffer.Bytes()); err != nil {
		return fmt.Errorf("upload overlay: %w", err)
	}

	w.logger.Info().Str("user_id", string(user)).Str("object", objectPath).Int("visited", proj.Count).Msg("overlay snapshot uploaded")
	return nil
}

// ObjectPath returns the object storage path for a user's overlay.
func ObjectPath(user types.UserID) string {
	return fmt.Sprintf("overlays/%s.png", user)
}
