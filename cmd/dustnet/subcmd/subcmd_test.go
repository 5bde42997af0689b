package subcmd

import (
	"context"
	"testing"

	"github.com/dustnet/dustnet/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, *state.Config) error { return nil }
	mods := []Mod{{Name: "gateway", Main: noop}, {Name: "leaf", Main: noop}}

	m, err := Parse("leaf", mods)
	require.NoError(t, err)
	assert.Equal(t, "leaf", m.Name)

	_, err = Parse("", mods)
	assert.EqualError(t, err, "empty command")
	_, err = Parse("toaster", mods)
	assert.EqualError(t, err, "unknown command='toaster'")
	assert.Panics(t, func() { _, _ = Parse("x", []Mod{{}}) })
}
