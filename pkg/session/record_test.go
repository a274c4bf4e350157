package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRecord_Object(t *testing.T) {
	exp := int64(1234)
	raw, err := encodeRecord(Record{
		ID:       "s1",
		Exp:      &exp,
		VendorID: "a@x.com",
		UserInfo: &UserInfo{Name: "A", Email: "a@x.com"},
		ChatHistory: []Message{
			{ID: "m1", Role: RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)

	rec, ok := decodeRecord(raw)
	require.True(t, ok)
	require.Equal(t, "s1", rec.ID)
	require.NotNil(t, rec.Exp)
	require.Equal(t, int64(1234), *rec.Exp)
	require.Equal(t, "a@x.com", rec.VendorID)
	require.Len(t, rec.ChatHistory, 1)
	require.Equal(t, RoleUser, rec.ChatHistory[0].Role)
}

func TestDecodeRecord_LegacyShapes(t *testing.T) {
	// Legacy builds stored the id as a JSON string or as the bare token.
	rec, ok := decodeRecord(`"legacy-id"`)
	require.True(t, ok)
	require.Equal(t, "legacy-id", rec.ID)
	require.Nil(t, rec.Exp)

	rec, ok = decodeRecord("legacy-id")
	require.True(t, ok)
	require.Equal(t, "legacy-id", rec.ID)
	require.Nil(t, rec.Exp)
}

func TestDecodeRecord_Malformed(t *testing.T) {
	for _, raw := range []string{"", "   ", `{"exp": 12}`, `{"id": `, `""`, `[1,2]`} {
		_, ok := decodeRecord(raw)
		require.False(t, ok, "raw %q should decode as absent", raw)
	}
}

func TestUserInfoJSON_FlattensExtras(t *testing.T) {
	info := UserInfo{
		Name:  "A",
		Email: "a@x.com",
		Extra: map[string]any{"company": "ACME"},
	}
	data, err := json.Marshal(info)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "A", m["name"])
	require.Equal(t, "a@x.com", m["email"])
	require.Equal(t, "ACME", m["company"])
	_, hasExtraKey := m["Extra"]
	require.False(t, hasExtraKey)

	var back UserInfo
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, "A", back.Name)
	require.Equal(t, "a@x.com", back.Email)
	require.Equal(t, "ACME", back.Extra["company"])
}

func TestUserInfoEqual(t *testing.T) {
	a := &UserInfo{Name: "A", Email: "a@x.com"}
	b := &UserInfo{Name: "A", Email: "a@x.com"}
	require.True(t, a.Equal(b))
	require.True(t, (*UserInfo)(nil).Equal(nil))
	require.False(t, a.Equal(nil))

	b.Phone = "123"
	require.False(t, a.Equal(b))

	c := &UserInfo{Name: "A", Email: "a@x.com", Extra: map[string]any{"k": "v"}}
	d := &UserInfo{Name: "A", Email: "a@x.com", Extra: map[string]any{"k": "v"}}
	require.True(t, c.Equal(d))
	d.Extra["k"] = "w"
	require.False(t, c.Equal(d))
}

func TestCapTail(t *testing.T) {
	msgs := make([]Message, 0, 60)
	for i := 0; i < 60; i++ {
		msgs = append(msgs, Message{ID: string(rune('a' + i%26))})
	}
	capped := capTail(msgs, 50)
	require.Len(t, capped, 50)
	require.Equal(t, msgs[10], capped[0])
	require.Equal(t, msgs[59], capped[49])
	require.Len(t, capTail(msgs[:3], 50), 3)
}
