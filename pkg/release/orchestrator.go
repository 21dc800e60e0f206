package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yelloji/relgen/pkg/annotation"
	"github.com/yelloji/relgen/pkg/engine"
	"github.com/yelloji/relgen/pkg/export"
	"github.com/yelloji/relgen/pkg/packager"
	"github.com/yelloji/relgen/pkg/planner"
	"github.com/yelloji/relgen/pkg/preview"
)

// Defaults for worker parallelism and the per-image soft timeout.
const (
	defaultWorkers      = 4
	defaultImageTimeout = 60 * time.Second
	maxPreviews         = 24
)

// Orchestrator drives the release pipeline: it resolves inputs, plans
// augmentations, fans the engine out over workers, emits labels, packages
// the ZIP, and manages the transformation record lifecycle.
//
// The orchestrator is the only component that writes the store; engine
// workers return results and never touch it. Progress updates serialize
// through a single mutex.
type Orchestrator struct {
	store       Store
	projectRoot string
	logger      *log.Logger
	workers     int
	timeout     time.Duration

	mu       sync.RWMutex
	progress map[string]*Progress
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithWorkers bounds the parallel engine stage.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithImageTimeout sets the per-image engine soft timeout.
func WithImageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOrchestrator creates an orchestrator over a store and project root.
func NewOrchestrator(store Store, projectRoot string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		projectRoot: projectRoot,
		logger:      log.New(io.Discard),
		workers:     defaultWorkers,
		timeout:     defaultImageTimeout,
		progress:    map[string]*Progress{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate runs a release synchronously and returns its ID. On failure the
// release record is marked failed, partial artifacts are removed, and the
// consumed transformation records stay PENDING.
func (o *Orchestrator) Generate(ctx context.Context, cfg *Config, releaseVersion string) (string, error) {
	rel, err := o.prepare(ctx, cfg)
	if err != nil {
		return "", err
	}
	return rel.ID, o.execute(ctx, rel, cfg, releaseVersion)
}

// Start begins a release asynchronously and returns its ID immediately.
// Progress is observable through GetReleaseProgress.
func (o *Orchestrator) Start(ctx context.Context, cfg *Config, releaseVersion string) (string, error) {
	rel, err := o.prepare(ctx, cfg)
	if err != nil {
		return "", err
	}
	go func() {
		if err := o.execute(ctx, rel, cfg, releaseVersion); err != nil {
			o.logger.Error("release failed", "release", rel.ID, "err", err)
		}
	}()
	return rel.ID, nil
}

// GetReleaseProgress returns the live progress of a release.
func (o *Orchestrator) GetReleaseProgress(releaseID string) (Progress, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.progress[releaseID]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// GetReleaseHistory returns a project's releases, newest first.
func (o *Orchestrator) GetReleaseHistory(ctx context.Context, projectID string, limit int) ([]*Release, error) {
	return o.store.ListReleases(ctx, projectID, limit)
}

// CleanupFailedRelease removes the artifacts of a failed release: the ZIP,
// the release directory, and the record itself. Idempotent; cleaning a
// release that never produced artifacts succeeds.
func (o *Orchestrator) CleanupFailedRelease(ctx context.Context, releaseID, projectID string) error {
	rel, err := o.store.GetRelease(ctx, releaseID)
	if err == nil {
		if rel.Status != StatusFailed {
			return fmt.Errorf("release %s is %s, not failed", releaseID, rel.Status)
		}
		if projectID == "" {
			projectID = rel.ProjectID
		}
		if rel.ModelPath != "" {
			os.Remove(filepath.Join(o.projectRoot, rel.ModelPath))
		}
		if err := o.store.DeleteRelease(ctx, releaseID); err != nil {
			return err
		}
	}
	if projectID != "" {
		os.RemoveAll(filepath.Join(o.projectRoot, "projects", projectID, "releases", releaseID))
	}
	o.mu.Lock()
	delete(o.progress, releaseID)
	o.mu.Unlock()
	return nil
}

// prepare validates the config and creates the pending release record.
func (o *Orchestrator) prepare(ctx context.Context, cfg *Config) (*Release, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rel := &Release{
		ID:           uuid.NewString(),
		ProjectID:    cfg.ProjectID,
		Name:         cfg.ReleaseName,
		Description:  cfg.Description,
		ExportFormat: cfg.ExportFormat,
		TaskType:     cfg.TaskType,
		DatasetsUsed: cfg.DatasetIDs,
		Config:       cfg,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.CreateRelease(ctx, rel); err != nil {
		return nil, fmt.Errorf("creating release record: %w", err)
	}

	o.mu.Lock()
	o.progress[rel.ID] = &Progress{Status: StatusPending}
	o.mu.Unlock()

	return rel, nil
}

// execute runs the pipeline with failure handling: any error marks the
// release failed, removes partial artifacts, and cleans staging.
func (o *Orchestrator) execute(ctx context.Context, rel *Release, cfg *Config, releaseVersion string) error {
	staging := packager.StagingDir(o.projectRoot, cfg.ProjectID, rel.ID)

	err := o.run(ctx, rel, cfg, releaseVersion, staging)
	if err != nil {
		o.logger.Error("release pipeline failed", "release", rel.ID, "err", err)

		rel.Status = StatusFailed
		rel.ErrorMessage = err.Error()
		if updateErr := o.store.UpdateRelease(context.WithoutCancel(ctx), rel); updateErr != nil {
			o.logger.Error("recording failure state", "release", rel.ID, "err", updateErr)
		}

		zipPath := packager.ZipPath(o.projectRoot, cfg.ProjectID, cfg.ReleaseName, rel.ExportFormat)
		packager.RemoveArtifacts(zipPath, filepath.Dir(staging))

		now := time.Now().UTC()
		o.updateProgress(rel.ID, func(p *Progress) {
			p.Status = StatusFailed
			p.ErrorMessage = err.Error()
			p.CompletedAt = &now
		})
		return err
	}
	return nil
}

// run is the pipeline protocol. Steps before transform completion leave the
// transformation records PENDING on failure; the staging tree is removed on
// both paths.
func (o *Orchestrator) run(ctx context.Context, rel *Release, cfg *Config, releaseVersion, staging string) error {
	defer func() {
		if err := packager.Cleanup(staging); err != nil {
			o.logger.Warn("staging cleanup", "release", rel.ID, "err", err)
		}
	}()

	started := time.Now().UTC()
	o.updateProgress(rel.ID, func(p *Progress) {
		p.Status = StatusProcessing
		p.Step = StepLoadingData
		p.StartedAt = &started
	})
	rel.Status = StatusProcessing
	if err := o.store.UpdateRelease(ctx, rel); err != nil {
		return stepErr(rel.ID, StepLoadingData, "", err)
	}

	// Resolve the source image set and annotations.
	images, err := o.store.ListImages(ctx, cfg.DatasetIDs, cfg.Splits())
	if err != nil {
		return stepErr(rel.ID, StepLoadingData, "", err)
	}
	if len(images) == 0 {
		return stepErr(rel.ID, StepLoadingData, "", fmt.Errorf("%w: no labeled images in datasets %v", ErrInvalidConfig, cfg.DatasetIDs))
	}
	datasetNames, err := o.store.DatasetNames(ctx, cfg.DatasetIDs)
	if err != nil {
		return stepErr(rel.ID, StepLoadingData, "", err)
	}

	records, err := o.store.PendingTransforms(ctx, releaseVersion)
	if err != nil {
		return stepErr(rel.ID, StepLoadingData, "", err)
	}

	// Plan augmentation configs.
	o.setStep(rel.ID, StepGeneratingConfigs, 5)

	refs := make([]planner.ImageRef, len(images))
	for i, img := range images {
		refs[i] = planner.ImageRef{ID: img.ID, Split: img.Split}
	}
	configs, err := planner.Plan(planner.Config{
		Records:         records,
		Images:          refs,
		Multiplier:      cfg.ImagesPerOriginal,
		Strategy:        cfg.SamplingStrategy,
		Seed:            cfg.Seed,
		IncludeOriginal: cfg.IncludeOriginal,
	})
	if err != nil {
		return stepErr(rel.ID, StepGeneratingConfigs, "", err)
	}

	// Stage sources and build engine inputs keyed by source image ID.
	sources, err := o.stageSources(ctx, images, datasetNames, cfg, staging)
	if err != nil {
		return stepErr(rel.ID, StepGeneratingConfigs, "", err)
	}

	// Parallel engine stage.
	items, warnings, err := o.processImages(ctx, rel.ID, cfg, configs, sources, staging)
	if err != nil {
		return err
	}

	// Finalize: unify classes, compute counts, emit labels and metadata.
	o.setStep(rel.ID, StepFinalizing, 80)

	table := export.BuildClassTable(items)
	table.Remap(items)

	format := export.Select(export.Format(cfg.ExportFormat), export.TaskType(cfg.TaskType), export.HasPolygons(items))
	rel.ExportFormat = string(format)

	stats := packager.ComputeStats(items, table.Names())
	rel.TotalOriginalImages = stats.OriginalImages
	rel.TotalAugmentedImages = stats.AugmentedImages
	rel.FinalImageCount = stats.TotalImages
	rel.TrainImageCount = stats.TrainImages
	rel.ValImageCount = stats.ValImages
	rel.TestImageCount = stats.TestImages
	rel.ClassCount = stats.ClassCount
	if err := o.store.UpdateRelease(ctx, rel); err != nil {
		return stepErr(rel.ID, StepFinalizing, "", err)
	}

	if err := export.Write(staging, format, items, table); err != nil {
		return stepErr(rel.ID, StepFinalizing, "", err)
	}

	if err := preview.WriteOverlays(filepath.Join(staging, "metadata", "previews"), previewItems(items), maxPreviews); err != nil {
		o.logger.Warn("preview rendering", "release", rel.ID, "err", err)
	}

	meta := packager.Metadata{
		ReleaseID:              rel.ID,
		ReleaseName:            rel.Name,
		Description:            rel.Description,
		CreatedAt:              rel.CreatedAt.Format(time.RFC3339),
		ExportFormat:           string(format),
		TaskType:               cfg.TaskType,
		ImageFormat:            cfg.OutputFormat,
		Multiplier:             cfg.ImagesPerOriginal,
		IncludeOriginal:        cfg.IncludeOriginal,
		SamplingStrategy:       cfg.SamplingStrategy,
		PreserveOriginalSplits: cfg.PreserveOriginalSplits,
		Seed:                   cfg.Seed,
		Classes:                table.Names(),
		Stats:                  stats,
		Transforms:             records,
		DatasetIDs:             cfg.DatasetIDs,
		Warnings:               *warnings,
	}
	if err := packager.WriteMetadata(staging, meta, items, table.Classes()); err != nil {
		return stepErr(rel.ID, StepFinalizing, "", err)
	}
	if err := packager.WriteREADME(staging, meta); err != nil {
		return stepErr(rel.ID, StepFinalizing, "", err)
	}

	// Package the ZIP. Staged source copies are engine inputs only and are
	// not part of the bundle layout.
	o.setStep(rel.ID, StepCreatingZip, 90)
	if err := os.RemoveAll(filepath.Join(staging, "sources")); err != nil {
		return stepErr(rel.ID, StepCreatingZip, "", err)
	}
	zipPath := packager.ZipPath(o.projectRoot, cfg.ProjectID, cfg.ReleaseName, string(format))
	if err := packager.BuildZip(staging, zipPath); err != nil {
		return stepErr(rel.ID, StepCreatingZip, "", err)
	}

	// Atomically consume the transformation records. A failure here removes
	// the ZIP and fails the release so no orphaned COMPLETED records exist.
	if len(records) > 0 {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		if err := o.store.CompleteTransforms(ctx, ids, rel.ID); err != nil {
			os.Remove(zipPath)
			return stepErr(rel.ID, StepCreatingZip, "", fmt.Errorf("%w: %v", ErrTransactionFailed, err))
		}
	}

	relPath, err := filepath.Rel(o.projectRoot, zipPath)
	if err != nil {
		relPath = zipPath
	}
	rel.ModelPath = relPath
	rel.Status = StatusCompleted
	if err := o.store.UpdateRelease(ctx, rel); err != nil {
		return stepErr(rel.ID, StepCompleted, "", err)
	}

	done := time.Now().UTC()
	o.updateProgress(rel.ID, func(p *Progress) {
		p.Status = StatusCompleted
		p.Step = StepCompleted
		p.Percent = 100
		p.CompletedAt = &done
	})

	o.logger.Info("release completed",
		"release", rel.ID,
		"images", rel.FinalImageCount,
		"classes", rel.ClassCount,
		"zip", rel.ModelPath)
	return nil
}

// stageSources copies the source image files into the per-release staging
// tree and builds the engine inputs. Annotations are keyed canonically by
// source image ID. For segmentation tasks, bbox annotations become
// four-corner polygons before transformation so the fallback flows through
// the same geometric pipeline as the image.
func (o *Orchestrator) stageSources(ctx context.Context, images []Image, datasetNames map[string]string, cfg *Config, staging string) (map[string]engine.Source, error) {
	srcDir := filepath.Join(staging, "sources")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return nil, err
	}

	segmentation := cfg.TaskType == string(export.TaskSegmentation)

	sources := make(map[string]engine.Source, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dataset := datasetNames[img.DatasetID]
		staged := filepath.Join(srcDir, dataset+"_"+img.Filename)
		if err := copyFile(img.FilePath, staged); err != nil {
			// Missing sources are skipped later by the engine; stage the
			// original path so the failure is classified there.
			staged = img.FilePath
		}

		anns, err := o.store.AnnotationsByImage(ctx, img.ID)
		if err != nil {
			return nil, err
		}
		if segmentation {
			for i := range anns {
				if anns[i].Kind == annotation.KindBox {
					anns[i] = anns[i].AsPolygon()
				}
			}
		}

		stem := strings.TrimSuffix(img.Filename, filepath.Ext(img.Filename))
		sources[img.ID] = engine.Source{
			ID:          img.ID,
			Path:        staged,
			Dataset:     dataset,
			Stem:        stem,
			Split:       img.Split,
			Annotations: anns,
		}
	}
	return sources, nil
}

// processImages fans the engine out over the worker pool. Per-image failures
// are recorded in the warnings block and skipped; context cancellation
// aborts at the next image boundary.
func (o *Orchestrator) processImages(ctx context.Context, releaseID string, cfg *Config, configs []planner.AugmentationConfig, sources map[string]engine.Source, staging string) ([]export.Item, *packager.Warnings, error) {
	type job struct {
		src engine.Source
		cfg *planner.AugmentationConfig // nil for the passthrough original
	}

	var jobs []job
	if cfg.IncludeOriginal {
		ids := make([]string, 0, len(sources))
		for id := range sources {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			jobs = append(jobs, job{src: sources[id]})
		}
	}
	for i := range configs {
		src, ok := sources[configs[i].SourceImageID]
		if !ok {
			continue
		}
		jobs = append(jobs, job{src: src, cfg: &configs[i]})
	}

	total := len(jobs)
	o.updateProgress(releaseID, func(p *Progress) {
		p.Step = StepProcessingImages
		p.TotalImages = total
	})

	for _, split := range []string{"train", "val", "test"} {
		if err := os.MkdirAll(filepath.Join(staging, "images", split), 0o755); err != nil {
			return nil, nil, stepErr(releaseID, StepProcessingImages, "", err)
		}
	}

	var (
		resMu    sync.Mutex
		items    []export.Item
		warnings packager.Warnings
		done     int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for _, j := range jobs {
		j := j
		g.Go(func() error {
			jctx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			opts := engine.Options{
				OutputDir:   filepath.Join(staging, "images", j.src.Split),
				ImageFormat: cfg.OutputFormat,
				Seed:        cfg.Seed,
			}

			var res *engine.Result
			var err error
			if j.cfg == nil {
				res, err = engine.Passthrough(jctx, j.src, opts)
			} else {
				res, err = engine.Apply(jctx, j.src, *j.cfg, opts)
			}

			resMu.Lock()
			defer resMu.Unlock()
			done++
			o.updateProgress(releaseID, func(p *Progress) {
				p.ProcessedImages = done
				if total > 0 {
					p.Percent = 10 + 70*float64(done)/float64(total)
				}
			})

			if err != nil {
				if gctx.Err() != nil {
					// Cancellation aborts; discard this job's result.
					return gctx.Err()
				}
				switch {
				case errors.Is(err, engine.ErrSourceMissing), errors.Is(err, engine.ErrDecodeFailed):
					warnings.SkippedImages = append(warnings.SkippedImages, j.src.ID)
					o.logger.Warn("skipping image", "release", releaseID, "image", j.src.ID, "err", err)
				case errors.Is(err, engine.ErrTransformFailed), errors.Is(err, context.DeadlineExceeded):
					key := j.src.ID
					if j.cfg != nil {
						key = fmt.Sprintf("%s#%d", j.src.ID, j.cfg.ConfigID)
					}
					warnings.FailedConfigs = append(warnings.FailedConfigs, key)
					o.logger.Warn("skipping config", "release", releaseID, "config", key, "err", err)
				default:
					return stepErr(releaseID, StepProcessingImages, j.src.ID, err)
				}
				return nil
			}

			warnings.DroppedAnnotations += res.DroppedAnnotations
			warnings.MalformedAnnotations += res.MalformedAnnotations
			items = append(items, export.Item{
				Image: export.Image{
					Name:     res.ImageName,
					Path:     res.ImagePath,
					Width:    res.Width,
					Height:   res.Height,
					Split:    res.Split,
					Dataset:  res.Dataset,
					SourceID: res.SourceImageID,
					ConfigID: res.ConfigID,
				},
				Annotations: res.Annotations,
			})
			o.updateProgress(releaseID, func(p *Progress) {
				p.GeneratedImages = len(items)
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, stepErr(releaseID, StepProcessingImages, "", err)
	}

	// Deterministic item order regardless of worker scheduling.
	sort.Slice(items, func(i, j int) bool {
		if items[i].Image.SourceID != items[j].Image.SourceID {
			return items[i].Image.SourceID < items[j].Image.SourceID
		}
		return items[i].Image.ConfigID < items[j].Image.ConfigID
	})
	sort.Strings(warnings.SkippedImages)
	sort.Strings(warnings.FailedConfigs)

	return items, &warnings, nil
}

// setStep updates the progress step and coarse percentage.
func (o *Orchestrator) setStep(releaseID string, step Step, percent float64) {
	o.updateProgress(releaseID, func(p *Progress) {
		p.Step = step
		if percent > p.Percent {
			p.Percent = percent
		}
	})
}

func (o *Orchestrator) updateProgress(releaseID string, fn func(*Progress)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.progress[releaseID]
	if !ok {
		p = &Progress{}
		o.progress[releaseID] = p
	}
	fn(p)
}

// previewItems converts export items into preview inputs.
func previewItems(items []export.Item) []preview.Item {
	out := make([]preview.Item, len(items))
	for i, it := range items {
		out[i] = preview.Item{
			Name:        it.Image.Name,
			Split:       it.Image.Split,
			Width:       it.Image.Width,
			Height:      it.Image.Height,
			Annotations: it.Annotations,
		}
	}
	return out
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
