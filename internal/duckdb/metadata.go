package duckdb

import (
	"context"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// StatFiles fingerprints every path, failing on the first missing file.
func StatFiles(paths []string) ([]FileFingerprint, error) {
	fps := make([]FileFingerprint, 0, len(paths))
	for _, p := range paths {
		fp, err := StatFile(p)
		if err != nil {
			return nil, err
		}
		fps = append(fps, fp)
	}
	return fps, nil
}

func formatModTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// recordSources replaces the recorded sources of table name.
func (s *Store) recordSources(ctx context.Context, name string, sources []FileFingerprint) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM table_sources WHERE table_name=?`, name); err != nil {
		return fmt.Errorf("clear sources of %s: %w", name, err)
	}
	loadedAt := time.Now().UTC().Format(time.RFC3339)
	for _, fp := range sources {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO table_sources VALUES (?, ?, ?, ?, ?)`,
			name, fp.Path, fp.Size, formatModTime(fp.ModTime), loadedAt,
		); err != nil {
			return fmt.Errorf("record source %s: %w", fp.Path, err)
		}
	}
	return nil
}

// Sources returns the fingerprints recorded for table name, in path order.
func (s *Store) Sources(name string) ([]FileFingerprint, error) {
	rows, err := s.db.Query(
		`SELECT path, size, mod_time FROM table_sources WHERE table_name=? ORDER BY path`, name)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var fps []FileFingerprint
	for rows.Next() {
		var fp FileFingerprint
		var modTime string
		if err := rows.Scan(&fp.Path, &fp.Size, &modTime); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		fp.ModTime, err = time.Parse(time.RFC3339Nano, modTime)
		if err != nil {
			return nil, fmt.Errorf("parse source mod time %q: %w", modTime, err)
		}
		fps = append(fps, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return fps, nil
}

// Current reports whether table name was exported from files that are
// unchanged on disk. A table with no recorded sources is never current.
func (s *Store) Current(name string) bool {
	fps, err := s.Sources(name)
	if err != nil || len(fps) == 0 {
		return false
	}
	for _, fp := range fps {
		now, err := StatFile(fp.Path)
		if err != nil {
			return false
		}
		if now.Size != fp.Size || formatModTime(now.ModTime) != formatModTime(fp.ModTime) {
			return false
		}
	}
	return true
}
