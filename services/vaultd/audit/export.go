package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	ID         string `parquet:"name=id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	Type       string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Attributes string `parquet:"name=attributes, type=UTF8, encoding=PLAIN_DICTIONARY"`
	PrevHash   string `parquet:"name=prev_hash, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Hash       string `parquet:"name=hash, type=UTF8, encoding=PLAIN_DICTIONARY"`
	CreatedAt  string `parquet:"name=created_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes every journal entry to path and returns the number of
// rows written. The file only appears at path once the export completes.
func (j *Journal) ExportParquet(ctx context.Context, path string) (written int, err error) {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("audit: create parquet: %w", err)
	}
	tmpPath := file.Name()
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tmpPath)
		}
	}()

	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return 0, fmt.Errorf("audit: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	var after uint64
	for {
		batch, err := j.List(ctx, after, 500)
		if err != nil {
			pw.WriteStop()
			return written, err
		}
		if len(batch) == 0 {
			break
		}
		for _, entry := range batch {
			row := &parquetRow{
				ID:         entry.ID.String(),
				Sequence:   int64(entry.Sequence),
				Type:       entry.Type,
				Attributes: entry.Attributes,
				PrevHash:   entry.PrevHash,
				Hash:       entry.Hash,
				CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				return written, fmt.Errorf("audit: parquet write: %w", err)
			}
			written++
			after = entry.Sequence
		}
	}
	if err := pw.WriteStop(); err != nil {
		return written, fmt.Errorf("audit: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("audit: close parquet file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return written, fmt.Errorf("audit: publish parquet file: %w", err)
	}
	return written, nil
}
