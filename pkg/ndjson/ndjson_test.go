package ndjson

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEachReadsAllRecords(t *testing.T) {
	path := writeFile(t, `{"uri":"a"}
{"uri":"b"}

{"uri":"c"}
`)
	var uris []string
	stats, err := Each(path, func(record json.RawMessage) error {
		var obj struct {
			URI string `json:"uri"`
		}
		require.NoError(t, json.Unmarshal(record, &obj))
		uris = append(uris, obj.URI)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, uris)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 0, stats.Skipped)
}

func TestEachSkipsMalformedLines(t *testing.T) {
	path := writeFile(t, `{"uri":"a"}
{not json at all
{"uri":"b"}
`)
	count := 0
	stats, err := Each(path, func(json.RawMessage) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, stats.Skipped)
}

func TestEachIsRestartable(t *testing.T) {
	path := writeFile(t, `{"uri":"a"}
{"uri":"b"}
`)
	for i := 0; i < 2; i++ {
		count := 0
		stats, err := Each(path, func(json.RawMessage) error {
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count, "pass %d must re-read from the start", i)
		assert.Equal(t, 2, stats.Records)
	}
}

func TestEachAbortsOnCallbackError(t *testing.T) {
	path := writeFile(t, `{"uri":"a"}
{"uri":"b"}
`)
	sentinel := errors.New("stop")
	count := 0
	_, err := Each(path, func(json.RawMessage) error {
		count++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, count)
}

func TestEachMissingFile(t *testing.T) {
	_, err := Each(filepath.Join(t.TempDir(), "missing.ndjson"), func(json.RawMessage) error {
		return nil
	})
	assert.Error(t, err)
}

func TestEachRecordIsSafeToRetain(t *testing.T) {
	path := writeFile(t, `{"uri":"a"}
{"uri":"bbbbbbbb"}
`)
	var records []json.RawMessage
	_, err := Each(path, func(record json.RawMessage) error {
		records = append(records, record)
		return nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uri":"a"}`, string(records[0]), "records must not share scanner buffers")
}
