package release

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config specifies all release generation parameters.
// It supports YAML parsing and includes comprehensive validation.
type Config struct {
	// ReleaseName names the release; it becomes part of the ZIP filename.
	ReleaseName string `yaml:"release_name" json:"release_name"`

	// Description is free-form text carried into the bundle metadata.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// ProjectID is the owning project.
	ProjectID string `yaml:"project_id" json:"project_id"`

	// DatasetIDs lists the source datasets merged into this release.
	DatasetIDs []string `yaml:"dataset_ids" json:"dataset_ids"`

	// ExportFormat selects the label format, or "auto" to pick by task
	// and annotation shapes.
	ExportFormat string `yaml:"export_format" json:"export_format"`

	// TaskType is object_detection or segmentation.
	TaskType string `yaml:"task_type" json:"task_type"`

	// ImagesPerOriginal is the output multiplier per source image,
	// including the original when IncludeOriginal is set.
	ImagesPerOriginal int `yaml:"images_per_original" json:"images_per_original"`

	// SamplingStrategy selects how transform combinations are drawn:
	// intelligent, exhaustive, or random.
	SamplingStrategy string `yaml:"sampling_strategy" json:"sampling_strategy"`

	// OutputFormat is the image codec for emitted files.
	OutputFormat string `yaml:"output_format" json:"output_format"`

	// IncludeOriginal emits the unmodified source alongside augmentations.
	IncludeOriginal bool `yaml:"include_original" json:"include_original"`

	// SplitSections restricts the release to a subset of splits.
	// Empty means all of train, val, test.
	SplitSections []string `yaml:"split_sections,omitempty" json:"split_sections,omitempty"`

	// PreserveOriginalSplits keeps each image in its source split.
	PreserveOriginalSplits bool `yaml:"preserve_original_splits" json:"preserve_original_splits"`

	// Seed is the master seed for deterministic generation.
	// Use 0 to auto-generate from current time.
	Seed uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

var (
	validExportFormats = map[string]bool{
		"auto": true, "yolo_detection": true, "yolo_segmentation": true,
		"coco": true, "pascal_voc": true, "csv": true,
	}
	validTaskTypes = map[string]bool{
		"object_detection": true, "segmentation": true,
	}
	validSampling = map[string]bool{
		"intelligent": true, "exhaustive": true, "random": true,
	}
	validOutputFormats = map[string]bool{
		"original": true, "jpg": true, "png": true, "webp": true, "bmp": true, "tiff": true,
	}
	validSplits = map[string]bool{
		"train": true, "val": true, "test": true,
	}
)

// LoadConfig reads and validates a YAML release configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses YAML configuration from a byte slice.
// Useful for testing and programmatic config generation.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults and auto-generates a
// seed when none was provided.
func (c *Config) ApplyDefaults() {
	if c.ExportFormat == "" {
		c.ExportFormat = "auto"
	}
	if c.TaskType == "" {
		c.TaskType = "object_detection"
	}
	if c.ImagesPerOriginal == 0 {
		c.ImagesPerOriginal = 1
	}
	if c.SamplingStrategy == "" {
		c.SamplingStrategy = "intelligent"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "original"
	}
	if c.Seed == 0 {
		c.Seed = generateSeed()
	}
}

// Validate checks all configuration constraints.
// Returns an error wrapping ErrInvalidConfig describing the first failure.
func (c *Config) Validate() error {
	if c.ReleaseName == "" {
		return fmt.Errorf("%w: release_name must not be empty", ErrInvalidConfig)
	}
	if c.ProjectID == "" {
		return fmt.Errorf("%w: project_id must not be empty", ErrInvalidConfig)
	}
	if len(c.DatasetIDs) == 0 {
		return fmt.Errorf("%w: at least one dataset is required", ErrInvalidConfig)
	}
	if !validExportFormats[c.ExportFormat] {
		return fmt.Errorf("%w: export_format %q, must be one of: auto, yolo_detection, yolo_segmentation, coco, pascal_voc, csv", ErrInvalidConfig, c.ExportFormat)
	}
	if !validTaskTypes[c.TaskType] {
		return fmt.Errorf("%w: task_type %q, must be object_detection or segmentation", ErrInvalidConfig, c.TaskType)
	}
	if c.ImagesPerOriginal < 1 {
		return fmt.Errorf("%w: images_per_original must be >= 1, got %d", ErrInvalidConfig, c.ImagesPerOriginal)
	}
	if !validSampling[c.SamplingStrategy] {
		return fmt.Errorf("%w: sampling_strategy %q, must be intelligent, exhaustive, or random", ErrInvalidConfig, c.SamplingStrategy)
	}
	if !validOutputFormats[c.OutputFormat] {
		return fmt.Errorf("%w: output_format %q, must be one of: original, jpg, png, webp, bmp, tiff", ErrInvalidConfig, c.OutputFormat)
	}
	for _, s := range c.SplitSections {
		if !validSplits[s] {
			return fmt.Errorf("%w: split_section %q, must be train, val, or test", ErrInvalidConfig, s)
		}
	}
	return nil
}

// Splits returns the effective split sections, defaulting to all three.
func (c *Config) Splits() []string {
	if len(c.SplitSections) == 0 {
		return []string{"train", "val", "test"}
	}
	return c.SplitSections
}

// ToYAML serializes the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Hash computes a deterministic SHA-256 of the configuration's YAML form.
// The pipeline's RNG streams derive from Seed, not from this hash.
func (c *Config) Hash() []byte {
	data, err := c.ToYAML()
	if err != nil {
		h := sha256.New()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], c.Seed)
		h.Write(buf[:])
		return h.Sum(nil)
	}

	h := sha256.New()
	h.Write(data)
	return h.Sum(nil)
}

// generateSeed creates a seed from the current time.
// Uses nanosecond precision for better uniqueness.
func generateSeed() uint64 {
	now := time.Now().UnixNano()
	if now < 0 {
		now = -now
	}
	seed := uint64(now)
	if seed == 0 {
		seed = 1
	}
	return seed
}
