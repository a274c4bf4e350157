package session

import (
	"encoding/json"
	"strings"
)

// Record is the persisted session state, one per browser/profile install.
// Exp is absolute expiry in Unix milliseconds; nil means the record never
// expires (written by old widget builds that had no TTL).
type Record struct {
	ID          string    `json:"id"`
	Exp         *int64    `json:"exp"`
	VendorID    string    `json:"vendorId,omitempty"`
	UserInfo    *UserInfo `json:"userInfo,omitempty"`
	ChatHistory []Message `json:"chatHistory,omitempty"`
}

// decodeRecord turns a raw stored value into a Record. Three shapes exist in
// the wild and are handled explicitly rather than inferred at call sites:
//
//   - a JSON object: the current format;
//   - a JSON string: legacy builds stored the bare session id, re-encoded;
//   - a plain unquoted token: the oldest builds wrote the id verbatim.
//
// Anything else (corrupt JSON, empty value, object without an id) reports
// absent. Decoding never mutates storage.
func decodeRecord(raw string) (Record, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Record{}, false
	}
	switch trimmed[0] {
	case '{':
		var rec Record
		if err := json.Unmarshal([]byte(trimmed), &rec); err != nil || rec.ID == "" {
			return Record{}, false
		}
		return rec, true
	case '"':
		var id string
		if err := json.Unmarshal([]byte(trimmed), &id); err != nil || id == "" {
			return Record{}, false
		}
		return Record{ID: id}, true
	case '[':
		return Record{}, false
	default:
		return Record{ID: trimmed}, true
	}
}

func encodeRecord(rec Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMessages(raw string) []Message {
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil
	}
	return msgs
}

func encodeMessages(msgs []Message) (string, error) {
	if msgs == nil {
		msgs = []Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// capTail keeps at most limit entries, dropping the oldest first.
func capTail(msgs []Message, limit int) []Message {
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}
