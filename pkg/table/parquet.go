package table

import (
	"fmt"
	"io"

	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"
)

// ExportParquet writes the csv table at src to dst as Snappy-compressed
// parquet, using the parquet tags of T. It returns the number of rows written.
func ExportParquet[T records.Record](src, dst string) (int, error) {
	rows, err := Read[T](src)
	if err != nil {
		return 0, err
	}

	schema := parquet.SchemaOf(new(T))
	err = atomicWrite(dst, func(w io.Writer) error {
		pw := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Snappy))
		for i := range rows {
			if err := pw.Write(&rows[i]); err != nil {
				_ = pw.Close()
				return err
			}
		}
		return pw.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("export parquet: %w", err)
	}

	log.Info().
		Str("source", src).
		Str("target", dst).
		Int("rows", len(rows)).
		Msg("Parquet export complete")

	return len(rows), nil
}
