// Package table persists fetched records as CSV output tables.
//
// Rows are mapped to columns through their csv struct tags. Every write
// replaces the previous file atomically, so an interrupted write never
// leaves a half-written table behind. Merges deduplicate on the natural
// composite key of the row type.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/gocarina/gocsv"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// Policy selects which row survives when several share a composite key.
type Policy int

const (
	// KeepLast keeps the row seen last. Merges use it so freshly fetched
	// rows replace stale ones.
	KeepLast Policy = iota

	// KeepFirst keeps the row seen first.
	KeepFirst
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	if p == KeepFirst {
		return "keep_first"
	}
	return "keep_last"
}

// Header returns the csv header of row type T. Embedded structs contribute
// their columns in place.
func Header[T records.Record]() ([]string, error) {
	b, err := gocsv.MarshalBytes([]T{})
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	return csv.NewReader(bytes.NewReader(b)).Read()
}

// Read loads every row of the table at path. A missing or empty file is an
// empty table. Columns are matched by header name; columns unknown to T are
// ignored and columns missing from the file keep their zero value.
func Read[T records.Record](path string) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []T
	if err := gocsv.UnmarshalCSV(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// Write replaces the table at path with rows.
func Write[T records.Record](path string, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	return atomicWrite(path, func(w io.Writer) error {
		return gocsv.Marshal(rows, w)
	})
}

// Dedupe returns rows with one row per composite key. Rows keep the position
// of the first occurrence of their key.
func Dedupe[T records.Record](rows []T, policy Policy) []T {
	index := make(map[string]int, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		k := row.Key()
		if i, ok := index[k]; ok {
			if policy == KeepLast {
				out[i] = row
			}
			continue
		}
		index[k] = len(out)
		out = append(out, row)
	}
	return out
}

// Merge appends rows to the table at path, deduplicates with policy and
// replaces the file. When T implements records.Grouped, stored rows of every
// group present in rows are dropped first. It returns the number of rows in
// the merged table.
func Merge[T records.Record](path string, rows []T, policy Policy) (int, error) {
	existing, err := Read[T](path)
	if err != nil {
		return 0, err
	}

	existing, replaced := dropGroups(existing, rows)
	merged := Dedupe(append(existing, rows...), policy)
	if err := Write(path, merged); err != nil {
		return 0, err
	}

	log.Debug().
		Str("table", path).
		Int("existing", len(existing)).
		Int("added", len(rows)).
		Int("replaced", replaced).
		Int("total", len(merged)).
		Str("policy", policy.String()).
		Msg("Table merged")

	return len(merged), nil
}

// dropGroups removes the rows of existing whose group appears in fresh. It
// returns existing unchanged when T is not records.Grouped.
func dropGroups[T records.Record](existing, fresh []T) ([]T, int) {
	groups := make(map[string]struct{})
	for _, row := range fresh {
		g, ok := any(row).(records.Grouped)
		if !ok {
			return existing, 0
		}
		groups[g.Group()] = struct{}{}
	}
	if len(groups) == 0 {
		return existing, 0
	}

	kept := existing[:0:0]
	for _, row := range existing {
		if _, ok := groups[any(row).(records.Grouped).Group()]; ok {
			continue
		}
		kept = append(kept, row)
	}
	return kept, len(existing) - len(kept)
}

// Combine rebuilds dst from the tables at srcs. Sources are read in sorted
// path order so the surviving row of a duplicated key does not depend on
// argument order. It returns the number of rows written.
func Combine[T records.Record](dst string, srcs []string, policy Policy) (int, error) {
	paths := append([]string(nil), srcs...)
	sort.Strings(paths)

	var all []T
	for _, p := range paths {
		rows, err := Read[T](p)
		if err != nil {
			return 0, err
		}
		all = append(all, rows...)
	}

	combined := Dedupe(all, policy)
	if err := Write(dst, combined); err != nil {
		return 0, err
	}

	log.Info().
		Str("table", dst).
		Int("sources", len(paths)).
		Int("rows_in", len(all)).
		Int("rows_out", len(combined)).
		Str("policy", policy.String()).
		Msg("Table rebuilt")

	return len(combined), nil
}

// atomicWrite writes path through a synced temporary file in the same
// directory that replaces path on success.
func atomicWrite(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer pf.Cleanup()

	if err := fill(pf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
