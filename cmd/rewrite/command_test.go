package rewrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jspdown/deckhand/internal/compose"
)

func TestRewrite(t *testing.T) {
	t.Parallel()

	doc, err := rewrite([]byte("services:\n  web:\n    image: nginx\n"), "t1", compose.ModeIsolated, "front")
	require.NoError(t, err)

	assert.Equal(t, []string{"t1", "front"}, doc.Names(compose.SectionNetworks))
	assert.True(t, doc.HasService("web"))

	_, err = rewrite([]byte("services:\n  web:\n    image: nginx\n"), "t 1", compose.ModeSuffix, "")
	assert.ErrorIs(t, err, compose.ErrInvalidToken)
}

func TestReadInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: {}\n"), 0o600))

	data, err := readInput(path)
	require.NoError(t, err)
	assert.Equal(t, "services: {}\n", string(data))

	_, err = readInput(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")
}
