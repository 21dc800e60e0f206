package release

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yelloji/relgen/pkg/annotation"
	"github.com/yelloji/relgen/pkg/transform"
)

// Store is the system-of-record contract the pipeline consumes. The
// orchestrator is the only writer; engine workers never touch the store.
type Store interface {
	// ListImages returns labeled images in the given datasets and splits.
	ListImages(ctx context.Context, datasetIDs, splits []string) ([]Image, error)

	// DatasetNames resolves dataset IDs to display names.
	DatasetNames(ctx context.Context, ids []string) (map[string]string, error)

	// AnnotationsByImage returns the pixel-space annotations for one image.
	AnnotationsByImage(ctx context.Context, imageID string) ([]annotation.Annotation, error)

	// PendingTransforms returns enabled PENDING transformation records for
	// a release version, ordered by order_index.
	PendingTransforms(ctx context.Context, releaseVersion string) ([]transform.Record, error)

	// CreateRelease persists a new release record.
	CreateRelease(ctx context.Context, rel *Release) error

	// UpdateRelease persists changed release fields.
	UpdateRelease(ctx context.Context, rel *Release) error

	// GetRelease fetches a release by ID.
	GetRelease(ctx context.Context, id string) (*Release, error)

	// ListReleases returns a project's releases, newest first.
	ListReleases(ctx context.Context, projectID string, limit int) ([]*Release, error)

	// DeleteRelease removes a release record. Missing IDs are not an error.
	DeleteRelease(ctx context.Context, id string) error

	// CompleteTransforms atomically marks the records COMPLETED and assigns
	// the release ID. Either every record updates or none does.
	CompleteTransforms(ctx context.Context, recordIDs []string, releaseID string) error
}

// MemStore is an in-memory Store for tests, fixtures, and the CLI.
// All methods are safe for concurrent use.
type MemStore struct {
	mu           sync.RWMutex
	images       []Image
	datasetNames map[string]string
	annotations  map[string][]annotation.Annotation
	transforms   map[string]*transform.Record
	releases     map[string]*Release
	releaseOrder []string

	// FailCompletion forces CompleteTransforms to fail, for exercising the
	// transaction failure path.
	FailCompletion bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		datasetNames: map[string]string{},
		annotations:  map[string][]annotation.Annotation{},
		transforms:   map[string]*transform.Record{},
		releases:     map[string]*Release{},
	}
}

// AddDataset registers a dataset name.
func (s *MemStore) AddDataset(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasetNames[id] = name
}

// AddImage registers a source image with its annotations.
func (s *MemStore) AddImage(img Image, anns []annotation.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, img)
	s.annotations[img.ID] = anns
}

// AddTransform registers a transformation record.
func (s *MemStore) AddTransform(rec transform.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.transforms[rec.ID] = &r
}

// Transform returns a copy of a transformation record.
func (s *MemStore) Transform(id string) (transform.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.transforms[id]
	if !ok {
		return transform.Record{}, false
	}
	return *r, true
}

func (s *MemStore) ListImages(_ context.Context, datasetIDs, splits []string) ([]Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantDS := map[string]bool{}
	for _, id := range datasetIDs {
		wantDS[id] = true
	}
	wantSplit := map[string]bool{}
	for _, sp := range splits {
		wantSplit[sp] = true
	}

	var out []Image
	for _, img := range s.images {
		if img.Labeled &&
			(len(wantDS) == 0 || wantDS[img.DatasetID]) &&
			(len(wantSplit) == 0 || wantSplit[img.Split]) {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *MemStore) DatasetNames(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]string{}
	for _, id := range ids {
		if name, ok := s.datasetNames[id]; ok {
			out[id] = name
		} else {
			out[id] = id
		}
	}
	return out, nil
}

func (s *MemStore) AnnotationsByImage(_ context.Context, imageID string) ([]annotation.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	anns := s.annotations[imageID]
	out := make([]annotation.Annotation, len(anns))
	copy(out, anns)
	return out, nil
}

func (s *MemStore) PendingTransforms(_ context.Context, releaseVersion string) ([]transform.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []transform.Record
	for _, r := range s.transforms {
		if r.Enabled && r.Status == transform.StatusPending && r.ReleaseVersion == releaseVersion {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *MemStore) CreateRelease(_ context.Context, rel *Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.releases[rel.ID]; exists {
		return fmt.Errorf("release %s already exists", rel.ID)
	}
	cp := *rel
	s.releases[rel.ID] = &cp
	s.releaseOrder = append(s.releaseOrder, rel.ID)
	return nil
}

func (s *MemStore) UpdateRelease(_ context.Context, rel *Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.releases[rel.ID]; !exists {
		return fmt.Errorf("release %s not found", rel.ID)
	}
	cp := *rel
	s.releases[rel.ID] = &cp
	return nil
}

func (s *MemStore) GetRelease(_ context.Context, id string) (*Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.releases[id]
	if !ok {
		return nil, fmt.Errorf("release %s not found", id)
	}
	cp := *rel
	return &cp, nil
}

func (s *MemStore) ListReleases(_ context.Context, projectID string, limit int) ([]*Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Release
	for i := len(s.releaseOrder) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rel := s.releases[s.releaseOrder[i]]
		if rel != nil && rel.ProjectID == projectID {
			cp := *rel
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) DeleteRelease(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.releases, id)
	return nil
}

func (s *MemStore) CompleteTransforms(_ context.Context, recordIDs []string, releaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCompletion {
		return fmt.Errorf("simulated completion failure")
	}

	// Verify first so the update is all-or-nothing.
	for _, id := range recordIDs {
		if _, ok := s.transforms[id]; !ok {
			return fmt.Errorf("transform %s not found", id)
		}
	}
	for _, id := range recordIDs {
		s.transforms[id].Status = transform.StatusCompleted
		s.transforms[id].ReleaseID = releaseID
	}
	return nil
}
