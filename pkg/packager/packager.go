package packager

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrPackagingFailed wraps ZIP or metadata failures; these fail the release.
var ErrPackagingFailed = errors.New("packaging failed")

// StagingDir returns the per-release staging root under the project tree.
func StagingDir(projectRoot, project, releaseID string) string {
	return filepath.Join(projectRoot, "projects", project, "releases", releaseID, "staging")
}

// ZipPath returns the final archive location:
// <root>/projects/<project>/releases/<name>_<format>.zip.
func ZipPath(projectRoot, project, releaseName, format string) string {
	return filepath.Join(projectRoot, "projects", project, "releases",
		fmt.Sprintf("%s_%s.zip", sanitize(releaseName), format))
}

// sanitize keeps release names filesystem- and zip-safe.
func sanitize(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return r.Replace(name)
}

// BuildZip archives the staging tree into zipPath with DEFLATE compression.
// Entry names are slash-separated paths relative to the staging root, so the
// archive unpacks to the documented layout.
func BuildZip(stagingRoot, zipPath string) error {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPackagingFailed, err)
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPackagingFailed, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	walkErr := filepath.WalkDir(stagingRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(stagingRoot, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if walkErr != nil {
		zw.Close()
		os.Remove(zipPath)
		return fmt.Errorf("%w: %v", ErrPackagingFailed, walkErr)
	}

	if err := zw.Close(); err != nil {
		os.Remove(zipPath)
		return fmt.Errorf("%w: %v", ErrPackagingFailed, err)
	}
	return nil
}

// Cleanup removes the staging tree. Missing paths are not an error, so the
// call is idempotent on both the success and the failure path.
func Cleanup(stagingRoot string) error {
	if err := os.RemoveAll(stagingRoot); err != nil {
		return fmt.Errorf("cleaning staging dir: %w", err)
	}
	return nil
}

// RemoveArtifacts deletes the ZIP and release directory for a failed or
// cancelled release. Idempotent: missing files are ignored.
func RemoveArtifacts(zipPath, releaseDir string) {
	os.Remove(zipPath)
	os.RemoveAll(releaseDir)
}
