package tabular

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// encodeCSV writes header (or the result's own column names when header is
// nil) followed by every row.
func encodeCSV(w io.Writer, header []string, rows *sql.Rows) error {
	if header == nil {
		cols, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("read result columns: %w", err)
		}
		header = cols
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	n, err := rowWidth(rows)
	if err != nil {
		return err
	}
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	record := make([]string, n)

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

func rowWidth(rows *sql.Rows) (int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("read result columns: %w", err)
	}
	return len(cols), nil
}

// formatCell renders a scanned driver value. NULL becomes an empty cell.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
