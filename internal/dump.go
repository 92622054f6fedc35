package internal

import (
	"database/sql"
	"fmt"
	"io"
)

// Dump writes a human-diffable rendering of the store's pragmas, applied
// migrations and per-session summaries. Message bodies are not included.
// Two dumps of the same unmodified store are byte-identical.
func (p *Project) Dump(w io.Writer) error {
	if _, err := io.WriteString(w, "begin project dump\n"); err != nil {
		return err
	}
	queries := []string{
		"pragma application_id",
		"pragma user_version",
		"select migration_id from migrations order by migration_id",
		"select session_id, source_type, source_param, protocol, " +
			"case when closed_at is null then 'open' else 'closed' end " +
			"as status from sessions order by session_id",
	}
	for _, query := range queries {
		if err := p.dumpQuery(w, query); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\nend project dump\n")
	return err
}

func (p *Project) dumpQuery(w io.Writer, query string) error {
	if _, err := fmt.Fprintf(w, "\n--- %s\n", query); err != nil {
		return err
	}

	rows, err := p.db.Query(query)
	if err != nil {
		return &StoreError{Path: p.path, Op: "dump", Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return &StoreError{Path: p.path, Op: "dump", Err: err}
	}

	row := 0
	for rows.Next() {
		if row == 0 {
			for i, name := range columns {
				if name == "" {
					name = fmt.Sprintf("?%d", i)
				}
				if err := writeDumpField(w, name, i == len(columns)-1); err != nil {
					return err
				}
			}
		}

		values := make([]sql.NullString, len(columns))
		dests := make([]interface{}, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return &StoreError{Path: p.path, Op: "dump", Err: err}
		}
		for i, value := range values {
			field := "NULL"
			if value.Valid {
				field = "'" + value.String + "'"
			}
			if err := writeDumpField(w, field, i == len(columns)-1); err != nil {
				return err
			}
		}
		row++
	}
	if err := rows.Err(); err != nil {
		return &StoreError{Path: p.path, Op: "dump", Err: err}
	}
	return nil
}

func writeDumpField(w io.Writer, field string, last bool) error {
	suffix := ","
	if last {
		suffix = "\n"
	}
	_, err := io.WriteString(w, field+suffix)
	return err
}
