package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// DecodeSource parses one extraction result. Two shapes are accepted: a full
// entry ({"raw_text", "record", "status", "confidence"}) or a bare record.
func DecodeSource(data []byte, kind core.SourceKind) (core.SourceEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return core.SourceEntry{}, core.Invalid("source", "empty file")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return core.SourceEntry{}, &core.ValidationError{Field: "source", Reason: err.Error()}
	}

	var entry core.SourceEntry
	_, hasRecord := keys["record"]
	_, hasText := keys["raw_text"]
	if hasRecord || hasText {
		// kind comes from the file name, never from the body
		delete(keys, "kind")
		body, err := json.Marshal(keys)
		if err != nil {
			return core.SourceEntry{}, err
		}
		if err := json.Unmarshal(body, &entry); err != nil {
			return core.SourceEntry{}, &core.ValidationError{Field: "source", Reason: err.Error()}
		}
	} else {
		var rec core.CreditAgreementData
		if err := json.Unmarshal(data, &rec); err != nil {
			return core.SourceEntry{}, &core.ValidationError{Field: "record", Reason: err.Error()}
		}
		entry.Record = &rec
		entry.Status = rec.ExtractionStatus
	}
	entry.Kind = kind
	if err := entry.Validate(); err != nil {
		return core.SourceEntry{}, err
	}
	return entry, nil
}

// ReadSource reads and decodes a source file.
func ReadSource(path string, kind core.SourceKind) (core.SourceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.SourceEntry{}, err
	}
	entry, err := DecodeSource(data, kind)
	if err != nil {
		return core.SourceEntry{}, fmt.Errorf("%s: %w", path, err)
	}
	return entry, nil
}
