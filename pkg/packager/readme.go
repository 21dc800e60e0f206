package packager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteREADME writes the bundle README describing the layout, the export
// format, and the release statistics.
func WriteREADME(root string, meta Metadata) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", meta.ReleaseName)
	if meta.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", meta.Description)
	}
	fmt.Fprintf(&b, "Generated %s · format `%s` · task `%s`\n\n", meta.CreatedAt, meta.ExportFormat, meta.TaskType)

	b.WriteString("## Layout\n\n")
	b.WriteString("```\nimages/{train,val,test}/   augmented and original images\n")
	switch meta.ExportFormat {
	case "yolo_detection", "yolo_segmentation":
		b.WriteString("labels/{train,val,test}/   one .txt per image, normalized coordinates\ndata.yaml                  dataset descriptor\n")
	case "pascal_voc":
		b.WriteString("labels/{train,val,test}/   one .xml per image\n")
	case "coco":
		b.WriteString("annotations.json           COCO dataset\n")
	case "csv":
		b.WriteString("annotations.csv            one row per annotation\n")
	}
	b.WriteString("metadata/                  release_config.json, annotations.json snapshot\n```\n\n")

	b.WriteString("## Classes\n\n")
	for i, name := range meta.Classes {
		fmt.Fprintf(&b, "- %d: %s\n", i, name)
	}

	s := meta.Stats
	b.WriteString("\n## Statistics\n\n")
	fmt.Fprintf(&b, "| total | train | val | test | original | augmented |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n",
		s.TotalImages, s.TrainImages, s.ValImages, s.TestImages, s.OriginalImages, s.AugmentedImages)

	if len(meta.Transforms) > 0 {
		b.WriteString("\n## Transformations\n\n")
		for _, tf := range meta.Transforms {
			fmt.Fprintf(&b, "- %s (order %d)\n", tf.Type, tf.OrderIndex)
		}
	}

	return os.WriteFile(filepath.Join(root, "README.md"), []byte(b.String()), 0o644)
}
