package kv

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CHAT_WIDGET_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHAT_WIDGET_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(addr)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}
