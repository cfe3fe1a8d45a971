package toolchain

import (
	"os"
	"path/filepath"
)

// Project holds information about a detected firmware project.
type Project struct {
	Root       string // Absolute path to the project root
	ConfigPath string // Path to avrflash.yaml, if present
	BuildDir   string // Absolute path to the build output directory
}

// projectMarkers are the files whose presence identifies a project root,
// checked in order.
var projectMarkers = []string{"avrflash.yaml", "Makefile"}

// DetectProject walks up from startDir looking for a project marker.
// Returns nil if no marker is found before the filesystem root; callers
// typically fall back to the start directory in that case.
func DetectProject(startDir string) *Project {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil
	}

	for {
		for _, marker := range projectMarkers {
			path := filepath.Join(dir, marker)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				p := &Project{Root: dir, BuildDir: filepath.Join(dir, "build")}
				if marker == "avrflash.yaml" {
					p.ConfigPath = path
				}
				return p
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// FallbackProject returns a Project rooted at dir when detection fails.
func FallbackProject(dir string) *Project {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &Project{Root: abs, BuildDir: filepath.Join(abs, "build")}
}
