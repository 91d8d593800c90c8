// Package sheet decodes uploaded CSV and XLSX spreadsheets into raw rows
// keyed by header, and loads column-mapping files.
package sheet

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/jobmap/internal/model"
)

// CSVOptions configures the CSV decoder.
type CSVOptions struct {
	Delimiter rune   // default ','
	Charset   string // e.g. "windows-1252"; default UTF-8 with BOM sniffing
}

// StreamCSV decodes r and sends one RawRow per data record. The first
// record is the header. Blank records are dropped. Both channels are
// closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan model.RawRow, <-chan error) {
	rowCh := make(chan model.RawRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		decoded, err := decodeReader(r, opts.Charset)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(decoded)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		var header []string
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if header == nil {
				header = normalizeHeader(record)
				continue
			}
			row, ok := toRawRow(header, record)
			if !ok {
				continue
			}

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV collects every row of StreamCSV.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.RawRow, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)
	var rows []model.RawRow
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}

// decodeReader converts r to UTF-8. Without a charset, a UTF-8 or UTF-16
// byte-order mark is honored and stripped.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unsupported charset %q", charset)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

func normalizeHeader(record []string) []string {
	header := make([]string, len(record))
	for i, h := range record {
		header[i] = strings.TrimSpace(h)
	}
	return header
}

// toRawRow zips header and record. Columns without a header are dropped;
// a repeated header keeps its first value. ok is false for a row whose
// cells are all empty.
func toRawRow(header, record []string) (model.RawRow, bool) {
	row := make(model.RawRow, len(header))
	blank := true
	for i, h := range header {
		if h == "" {
			continue
		}
		var v string
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		if v != "" {
			blank = false
		}
		if _, seen := row[h]; !seen {
			row[h] = v
		}
	}
	return row, !blank
}
