package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Catalog is the container stored in both the index file and the songs
// manifest: {"songs": [...]}.
type Catalog struct {
	Songs []Song `json:"songs"`
}

// DecodeCatalog parses a catalog document leniently. A document that is not
// a JSON object is an error. Entries that are not JSON objects are skipped
// and counted in dropped; fields of the wrong type inside an entry are read
// as their zero value (see Song.UnmarshalJSON).
func DecodeCatalog(data []byte) (cat Catalog, dropped int, err error) {
	var raw struct {
		Songs []json.RawMessage `json:"songs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Catalog{}, 0, err
	}

	cat.Songs = make([]Song, 0, len(raw.Songs))
	for _, entry := range raw.Songs {
		var s Song
		if err := json.Unmarshal(entry, &s); err != nil {
			dropped++
			continue
		}
		cat.Songs = append(cat.Songs, s)
	}
	return cat, dropped, nil
}

// UpsertDocument adds record to the front of the songs array of a stored
// catalog document and returns the re-encoded document. Existing entries are
// kept with their values unchanged, including fields Song does not know,
// unless they collide with record on file or id. Other top-level keys are
// preserved. Empty data yields a new document holding only record.
func UpsertDocument(data []byte, record Song) ([]byte, error) {
	var top map[string]json.RawMessage
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &top); err != nil {
			return nil, err
		}
	}

	var entries []json.RawMessage
	if raw, ok := top["songs"]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("songs: %w", err)
		}
	}

	songs := make([]any, 0, len(entries)+1)
	songs = append(songs, record)
	for _, entry := range entries {
		var existing Song
		if json.Unmarshal(entry, &existing) == nil && existing.Collides(record) {
			continue
		}
		songs = append(songs, entry)
	}

	doc := make(map[string]any, len(top)+1)
	for k, v := range top {
		doc[k] = v
	}
	doc["songs"] = songs
	return MarshalDocument(doc)
}

// MarshalDocument encodes v as two-space indented JSON with a trailing
// newline, the layout used for every JSON file written to the repository.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}
