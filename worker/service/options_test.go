package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionHelpers(t *testing.T) {
	// Round-trip through JSON so the values carry the types a real task
	// payload would have.
	raw := `{"language":"ru","width":480,"start":1.5,"crop":true,"task_ids":["a","b",7]}`
	var opts map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &opts))

	require.Equal(t, "ru", optString(opts, "language", "en"))
	require.Equal(t, "en", optString(opts, "missing", "en"))
	require.Equal(t, 480, optInt(opts, "width", 0))
	require.Equal(t, 10, optInt(opts, "missing", 10))
	require.Equal(t, 1.5, optFloat(opts, "start", 0))
	require.Equal(t, true, optBool(opts, "crop", false))
	require.Equal(t, false, optBool(opts, "missing", false))
	require.Equal(t, []string{"a", "b"}, optStringSlice(opts, "task_ids"))
	require.Nil(t, optStringSlice(opts, "missing"))
}

func TestOptionHelpers_WrongTypesFallBack(t *testing.T) {
	opts := map[string]any{"width": "wide", "crop": "yes", "language": ""}

	require.Equal(t, 0, optInt(opts, "width", 0))
	require.Equal(t, false, optBool(opts, "crop", false))
	require.Equal(t, "en", optString(opts, "language", "en"))
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad pixels")
	wrapped := Permanent(base)

	require.True(t, IsPermanent(wrapped))
	require.True(t, IsPermanent(fmt.Errorf("handling image: %w", wrapped)))
	require.ErrorIs(t, wrapped, base)

	require.False(t, IsPermanent(base))
	require.False(t, IsPermanent(nil))
	require.Nil(t, Permanent(nil))
}
