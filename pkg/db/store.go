package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gbv/typesense-suggest-backend/pkg/jskos"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// UpsertLabel stores the label for a concept URI. Last writer wins.
func UpsertLabel(db DBExecutor, uri, label string) error {
	trimmedURI := strings.TrimSpace(uri)
	if trimmedURI == "" {
		return fmt.Errorf("uri must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO mapping_concepts (uri, label) VALUES (?, ?)
		ON CONFLICT(uri) DO UPDATE SET label=excluded.label`, trimmedURI, label)
	if err != nil {
		return fmt.Errorf("upsert label: %w", err)
	}
	return nil
}

// GetLabel returns the cached label for a concept URI. The second return
// value reports whether the URI was found (with a non-empty label).
func GetLabel(db DBExecutor, uri string) (string, bool, error) {
	var label sql.NullString
	err := db.QueryRow(`SELECT label FROM mapping_concepts WHERE uri = ?`, uri).Scan(&label)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !label.Valid || label.String == "" {
		return "", false, nil
	}
	return label.String, true, nil
}

// CountLabels returns the number of cached labels.
func CountLabels(db DBExecutor) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM mapping_concepts`).Scan(&n)
	return n, err
}

// RegisterScheme stores a scheme registration record keyed by its notation
// so the query endpoint can validate vocabulary parameters.
func RegisterScheme(db DBExecutor, key string, scheme *jskos.Scheme) error {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return fmt.Errorf("key must be non-empty")
	}
	data, err := json.Marshal(jskos.Registered(scheme))
	if err != nil {
		return fmt.Errorf("marshal scheme: %w", err)
	}
	_, err = db.Exec(`INSERT INTO schemes (key, json) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET json=excluded.json`, trimmedKey, string(data))
	if err != nil {
		return fmt.Errorf("upsert scheme: %w", err)
	}
	return nil
}

// ListSchemes returns every registered scheme.
func ListSchemes(db DBExecutor) ([]*jskos.Scheme, error) {
	rows, err := db.Query(`SELECT key, json FROM schemes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*jskos.Scheme
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var reg jskos.Registration
		if err := json.Unmarshal([]byte(raw), &reg); err != nil {
			return nil, fmt.Errorf("decode scheme %s: %w", key, err)
		}
		out = append(out, reg.Scheme())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
