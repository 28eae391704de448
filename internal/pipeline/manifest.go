package pipeline

import (
	"fmt"
	"path"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/tflmake/api"
	"github.com/agentic-research/tflmake/internal/fsutil"
)

// ManifestName is the run manifest written into the output directory.
const ManifestName = "manifest.json"

// Manifest describes the contents of the output directory after a run.
type Manifest struct {
	RunID         string
	Started       time.Time
	ConfigVersion int
	Header        string
	Model         *ModelEntry
	Targets       []TargetEntry
}

// ModelEntry is the extracted model artifact.
type ModelEntry struct {
	Name   string
	File   string
	Size   int64
	SHA256 string
	Labels []string
}

// TargetEntry is one compiled archive. Archive is relative to the output directory.
type TargetEntry struct {
	Name     string
	Arch     string
	Archive  string
	Size     int64
	SHA256   string
	CFlags   string
	CXXFlags string
}

func newManifest(runID string, started time.Time, cfg *api.BuildConfig) *Manifest {
	return &Manifest{
		RunID:         runID,
		Started:       started,
		ConfigVersion: cfg.Version,
		Header:        path.Base(cfg.Output.Header),
	}
}

// Tree returns the manifest as generic JSON data.
func (m *Manifest) Tree() map[string]any {
	targets := make([]any, 0, len(m.Targets))
	for _, t := range m.Targets {
		targets = append(targets, map[string]any{
			"name":     t.Name,
			"arch":     t.Arch,
			"archive":  t.Archive,
			"bytes":    t.Size,
			"sha256":   t.SHA256,
			"cflags":   t.CFlags,
			"cxxflags": t.CXXFlags,
		})
	}
	tree := map[string]any{
		"run":            m.RunID,
		"started":        m.Started.UTC().Format(time.RFC3339),
		"config_version": int64(m.ConfigVersion),
		"header":         m.Header,
		"targets":        targets,
	}
	if m.Model != nil {
		labels := make([]any, len(m.Model.Labels))
		for i, l := range m.Model.Labels {
			labels[i] = l
		}
		tree["model"] = map[string]any{
			"name":   m.Model.Name,
			"file":   m.Model.File,
			"bytes":  m.Model.Size,
			"sha256": m.Model.SHA256,
			"labels": labels,
		}
	}
	return tree
}

// JSON renders the manifest with sorted keys.
func (m *Manifest) JSON() string {
	return oj.JSON(m.Tree(), &ojg.Options{Indent: 2, Sort: true})
}

func (m *Manifest) write(fs billy.Filesystem, outDir string) error {
	if err := fsutil.WriteFileAtomic(fs, path.Join(outDir, ManifestName), []byte(m.JSON()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
