package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"blockterrain.ai/internal/persistence/snapshot"
)

type RunArchiveMeta struct {
	RunID     string   `json:"run_id"`
	Seed      uint64   `json:"seed"`
	Strategy  string   `json:"strategy"`
	Digest    string   `json:"digest"`
	Snapshot  string   `json:"snapshot"`
	Extras    []string `json:"extras,omitempty"`
	Counts    []int    `json:"counts"`
	CreatedAt string   `json:"created_at"`
}

// ArchiveRun copies a snapshot, plus any extra files such as previews, into
// `dataDir/archives/<seed>-<digest8>/` next to a meta.json. Missing extras
// are skipped.
func ArchiveRun(dataDir, snapshotPath string, snap snapshot.SnapshotV1, extras ...string) (string, error) {
	name := snapshot.FileName(snap.Header.Seed, snap.Header.Digest)
	archiveDir := filepath.Join(dataDir, "archives", name[:len(name)-len(".snap.zst")])
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta := RunArchiveMeta{
		RunID:     snap.Header.RunID,
		Seed:      snap.Header.Seed,
		Strategy:  snap.Header.Strategy,
		Digest:    snap.Header.Digest,
		Snapshot:  filepath.Base(dst),
		Counts:    snap.Counts,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, p := range extras {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := copyFile(p, filepath.Join(archiveDir, filepath.Base(p))); err != nil {
			return "", fmt.Errorf("copy %s: %w", p, err)
		}
		meta.Extras = append(meta.Extras, filepath.Base(p))
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return archiveDir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
