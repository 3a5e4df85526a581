package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ReadJSONL decodes every valid line of the file at path into a T. Lines
// that are not valid JSON are skipped; lines that do not decode into T are
// an error.
func ReadJSONL[T any](path string) ([]T, error) {
	records, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for i, rec := range records {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			return nil, fmt.Errorf("record %d of %s: %w", i+1, path, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Export writes every document of the named set to path, one per line, in
// insertion order. Returns the number of documents written.
func (b *Backend) Export(ctx context.Context, name, path string) (int, error) {
	col, err := b.named(name)
	if err != nil {
		return 0, err
	}
	db, err := b.conn()
	if err != nil {
		return 0, err
	}
	rows, err := db.QueryContext(ctx, selectBodies, col.name)
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", col.name, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return 0, fmt.Errorf("scanning %s: %w", col.name, err)
		}
		records = append(records, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading %s: %w", col.name, err)
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Import replaces the named set with the documents in path. Each line must
// decode into the set's entity type. The set is untouched on error.
func (b *Backend) Import(ctx context.Context, name, path string) (int, error) {
	col, err := b.named(name)
	if err != nil {
		return 0, err
	}
	records, err := readJSONL(path)
	if err != nil {
		return 0, err
	}
	changes := make([]change, 0, len(records))
	for i, rec := range records {
		v, err := col.decode(rec)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		k, err := col.docKey(v)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		body, err := json.Marshal(v)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		changes = append(changes, change{op: opCreate, set: col, key: k, body: string(body)})
	}

	db, err := b.conn()
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteSetDocs, col.name); err != nil {
		return 0, fmt.Errorf("clearing %s: %w", col.name, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, ch := range changes {
		if err := apply(ctx, tx, ch, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(changes), nil
}
