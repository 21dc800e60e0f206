package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yelloji/relgen/pkg/annotation"
	"github.com/yelloji/relgen/pkg/release"
	"github.com/yelloji/relgen/pkg/transform"
)

// fixtureFile is the YAML description of a store the CLI runs against:
// datasets, images with their annotations, and pending transforms. It stands
// in for the relational store the pipeline consumes in production.
type fixtureFile struct {
	Datasets []fixtureDataset `yaml:"datasets"`
	Images   []fixtureImage   `yaml:"images"`
	Pending  []fixtureRecord  `yaml:"transformations"`
}

type fixtureDataset struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type fixtureImage struct {
	ID          string              `yaml:"id"`
	DatasetID   string              `yaml:"dataset_id"`
	Filename    string              `yaml:"filename"`
	FilePath    string              `yaml:"file_path"`
	Width       int                 `yaml:"width"`
	Height      int                 `yaml:"height"`
	Split       string              `yaml:"split_section"`
	Annotations []fixtureAnnotation `yaml:"annotations"`
}

type fixtureAnnotation struct {
	Type       string      `yaml:"type"`
	ClassID    int         `yaml:"class_id"`
	ClassName  string      `yaml:"class_name"`
	Confidence float64     `yaml:"confidence"`
	BBox       []float64   `yaml:"bbox,omitempty"`   // [x_min, y_min, x_max, y_max]
	Points     [][]float64 `yaml:"points,omitempty"` // [[x, y], …]
}

type fixtureRecord struct {
	ID             string         `yaml:"id"`
	Type           string         `yaml:"transformation_type"`
	Parameters     map[string]any `yaml:"parameters"`
	Enabled        bool           `yaml:"is_enabled"`
	OrderIndex     int            `yaml:"order_index"`
	ReleaseVersion string         `yaml:"release_version"`
}

// loadFixture builds a MemStore from a fixture YAML file.
func loadFixture(path string) (*release.MemStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}

	var fx fixtureFile
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	store := release.NewMemStore()
	for _, ds := range fx.Datasets {
		store.AddDataset(ds.ID, ds.Name)
	}

	for _, img := range fx.Images {
		anns := make([]annotation.Annotation, 0, len(img.Annotations))
		for i, fa := range img.Annotations {
			ann, err := fa.toAnnotation()
			if err != nil {
				return nil, fmt.Errorf("image %s annotation %d: %w", img.ID, i, err)
			}
			anns = append(anns, ann)
		}
		store.AddImage(release.Image{
			ID:        img.ID,
			DatasetID: img.DatasetID,
			Filename:  img.Filename,
			FilePath:  img.FilePath,
			Width:     img.Width,
			Height:    img.Height,
			Split:     img.Split,
			Labeled:   true,
		}, anns)
	}

	for _, rec := range fx.Pending {
		store.AddTransform(transform.Record{
			ID:             rec.ID,
			Type:           transform.Kind(rec.Type),
			Parameters:     rec.Parameters,
			Enabled:        rec.Enabled,
			OrderIndex:     rec.OrderIndex,
			ReleaseVersion: rec.ReleaseVersion,
			Status:         transform.StatusPending,
		})
	}

	return store, nil
}

func (fa fixtureAnnotation) toAnnotation() (annotation.Annotation, error) {
	conf := fa.Confidence
	if conf == 0 {
		conf = 1.0
	}

	switch fa.Type {
	case "bbox", "":
		if len(fa.BBox) != 4 {
			return annotation.Annotation{}, fmt.Errorf("bbox needs 4 values, got %d", len(fa.BBox))
		}
		return annotation.NewBox(fa.BBox[0], fa.BBox[1], fa.BBox[2], fa.BBox[3], fa.ClassID, fa.ClassName, conf), nil
	case "polygon":
		if len(fa.Points) < 3 {
			return annotation.Annotation{}, fmt.Errorf("polygon needs at least 3 points, got %d", len(fa.Points))
		}
		points := make([]annotation.Point, len(fa.Points))
		for i, p := range fa.Points {
			if len(p) != 2 {
				return annotation.Annotation{}, fmt.Errorf("point %d needs 2 values", i)
			}
			points[i] = annotation.Point{X: p[0], Y: p[1]}
		}
		return annotation.NewPolygon(points, fa.ClassID, fa.ClassName, conf), nil
	default:
		return annotation.Annotation{}, fmt.Errorf("unknown annotation type %q", fa.Type)
	}
}
