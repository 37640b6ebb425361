// Package ingest reads activity exports into store records.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lazypower/lifeaxes/internal/store"
)

// maxLine bounds a single JSONL record.
const maxLine = 1024 * 1024

// record is the wire shape of one exported activity. userId is accepted
// alongside user_id since some exporters use camelCase.
type record struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	UserIDAlt string         `json:"userId"`
	Type      string         `json:"type"`
	Subtype   string         `json:"subtype"`
	Timestamp string         `json:"timestamp"`
	Text      string         `json:"text"`
	Tags      []string       `json:"tags"`
	Metadata  map[string]any `json:"metadata"`
}

// Batch is the outcome of reading one export.
type Batch struct {
	Activities []store.Activity
	Skipped    int // malformed or incomplete lines
	Foreign    int // records owned by a different user
}

// ParseFile reads a JSONL export. userID fills records without an owner;
// records owned by someone else are skipped.
func ParseFile(path, userID string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return Parse(f, userID)
}

// ParseLines parses JSONL content from a string.
func ParseLines(content, userID string) (*Batch, error) {
	return Parse(strings.NewReader(content), userID)
}

// Parse reads activities from r. A body starting with '[' is read as a JSON
// array; a body holding one JSON object (even pretty-printed) is read as
// that object; anything else is read as JSONL, skipping bad lines.
func Parse(r io.Reader, userID string) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	b := &Batch{}
	if len(trimmed) == 0 {
		return b, nil
	}

	switch trimmed[0] {
	case '[':
		var recs []record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decode activity array: %w", err)
		}
		for _, rec := range recs {
			b.add(rec, userID)
		}
		return b, nil
	case '{':
		var rec record
		if err := json.Unmarshal(trimmed, &rec); err == nil {
			b.add(rec, userID)
			return b, nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			b.Skipped++
			continue
		}
		b.add(rec, userID)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan export: %w", err)
	}
	return b, nil
}

func (b *Batch) add(rec record, userID string) {
	owner := strings.TrimSpace(rec.UserID)
	if owner == "" {
		owner = strings.TrimSpace(rec.UserIDAlt)
	}
	if owner == "" {
		owner = userID
	}
	if userID != "" && owner != userID {
		b.Foreign++
		return
	}

	typ := strings.ToLower(strings.TrimSpace(rec.Type))
	ts := strings.TrimSpace(rec.Timestamp)
	if owner == "" || typ == "" || ts == "" {
		b.Skipped++
		return
	}

	b.Activities = append(b.Activities, store.Activity{
		ID:        strings.TrimSpace(rec.ID),
		UserID:    owner,
		Type:      typ,
		Subtype:   strings.TrimSpace(rec.Subtype),
		Timestamp: ts,
		Text:      rec.Text,
		Tags:      rec.Tags,
		Metadata:  rec.Metadata,
	})
}
