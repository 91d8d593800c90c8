package sheet

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobmap/internal/model"
)

// ReadFile decodes a .csv, .tsv or .xlsx file by extension.
func ReadFile(ctx context.Context, path string) ([]model.RawRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "sheet: open file")
		}
		defer f.Close() //nolint:errcheck

		opts := CSVOptions{}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		return ReadCSV(ctx, f, opts)
	default:
		return nil, eris.Errorf("sheet: unsupported file type %q", filepath.Ext(path))
	}
}
