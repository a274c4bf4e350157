// Package session tracks the chat widget's client-side conversation state:
// the server-issued session id, the contact details of the current actor,
// and a bounded message history. State survives restarts through a kv.Store
// and is invalidated on expiry or when the acting vendor changes.
package session

import (
	"encoding/json"
	"reflect"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single chat history entry. Immutable once created; slice
// order is chronological.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserInfo carries the contact details attached to a session. The wire and
// storage layout is a flat JSON object: the three well-known fields plus any
// extra keys the answering service chooses to send, which are preserved
// round-trip in Extra.
type UserInfo struct {
	Name  string
	Email string
	Phone string
	Extra map[string]any
}

func (u UserInfo) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(u.Extra)+3)
	for k, v := range u.Extra {
		m[k] = v
	}
	if u.Name != "" {
		m["name"] = u.Name
	}
	if u.Email != "" {
		m["email"] = u.Email
	}
	if u.Phone != "" {
		m["phone"] = u.Phone
	}
	return json.Marshal(m)
}

func (u *UserInfo) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*u = UserInfo{}
	for k, v := range m {
		s, isString := v.(string)
		switch {
		case k == "name" && isString:
			u.Name = s
		case k == "email" && isString:
			u.Email = s
		case k == "phone" && isString:
			u.Phone = s
		default:
			if u.Extra == nil {
				u.Extra = map[string]any{}
			}
			u.Extra[k] = v
		}
	}
	return nil
}

// Equal compares by value, including extra fields. Two nil pointers are
// equal; nil and an all-empty value are not considered equal, mirroring the
// distinction between "absent" and "present but blank" on the wire.
func (u *UserInfo) Equal(other *UserInfo) bool {
	if u == nil || other == nil {
		return u == other
	}
	if u.Name != other.Name || u.Email != other.Email || u.Phone != other.Phone {
		return false
	}
	if len(u.Extra) == 0 && len(other.Extra) == 0 {
		return true
	}
	return reflect.DeepEqual(u.Extra, other.Extra)
}

// Clone returns a shallow-plus-extras copy so callers can mutate fearlessly.
func (u *UserInfo) Clone() *UserInfo {
	if u == nil {
		return nil
	}
	out := &UserInfo{Name: u.Name, Email: u.Email, Phone: u.Phone}
	if len(u.Extra) > 0 {
		out.Extra = make(map[string]any, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
