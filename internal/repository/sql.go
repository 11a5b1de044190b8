package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "time"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
    Scan(dest ...any) error
}

// encodeList stores packed phase/category strings as a JSON array so row
// content (which contains ':' and ',') survives verbatim.
func encodeList(v []string) (string, error) {
    if v == nil {
        v = []string{}
    }
    b, err := json.Marshal(v)
    return string(b), err
}

func decodeList(s string) ([]string, error) {
    if s == "" {
        return []string{}, nil
    }
    var out []string
    if err := json.Unmarshal([]byte(s), &out); err != nil {
        return nil, err
    }
    return out, nil
}

func encodeMeta(m map[string]string) (string, error) {
    if len(m) == 0 {
        return "{}", nil
    }
    b, err := json.Marshal(m)
    return string(b), err
}

func decodeMeta(s string) map[string]string {
    if s == "" || s == "{}" {
        return nil
    }
    var m map[string]string
    if err := json.Unmarshal([]byte(s), &m); err != nil {
        return map[string]string{"raw": s}
    }
    return m
}

func utc(t time.Time) time.Time { return t.UTC() }
