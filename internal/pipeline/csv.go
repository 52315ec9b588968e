package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/campus-events/attendance-cli/internal/model"
)

// requiredColumns must be present in every export header for the batch to
// start at all. Other mapped columns may be absent and degrade per row.
var requiredColumns = []string{"first_name", "last_name", "email"}

// decodeRows reads an export file, rewrites its header through the
// configured column mapping (logical field -> expected header text), and
// decodes every row. The mapping is validated once up front; a header
// missing a required column fails the whole batch before any row runs.
// A record that fails to decode is reported as a failure and skipped; the
// rest of the file still imports.
func decodeRows(r io.Reader, columns map[string]string) ([]model.RawRow, []model.RowFailure, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, eris.New("pipeline: empty export file")
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: read header")
	}

	// Invert the mapping: header text -> logical field.
	logical := make(map[string]string, len(columns))
	for field, headerName := range columns {
		logical[normalizeHeader(headerName)] = field
	}

	mapped := make([]string, len(header))
	found := make(map[string]bool, len(columns))
	for i, h := range header {
		if field, ok := logical[normalizeHeader(h)]; ok {
			mapped[i] = field
			found[field] = true
		} else {
			// Unmapped columns keep their raw name; the decoder ignores them.
			mapped[i] = h
		}
	}

	for _, field := range requiredColumns {
		if !found[field] {
			return nil, nil, eris.Errorf("pipeline: export header missing required column %q (expected header %q)",
				field, columns[field])
		}
	}

	dec, err := csvutil.NewDecoder(cr, mapped...)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: create decoder")
	}

	var (
		rows     []model.RawRow
		failures []model.RowFailure
	)
	for line := 1; ; line++ {
		var row model.RawRow
		err := dec.Decode(&row)
		if err == io.EOF {
			break
		}
		if errors.Is(err, csvutil.ErrFieldCount) {
			failures = append(failures, model.RowFailure{
				Row:    line,
				Reason: err.Error(),
			})
			continue
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "pipeline: decode row")
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, failures, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
