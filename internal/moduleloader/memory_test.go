package moduleloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/internal/bytecode/builder"
)

func TestMemoryLoaderRegisterAndLoad(t *testing.T) {
	img := builder.NewImage()
	_, id := img.AddFunc("mod")

	loader := NewMemoryLoader()
	loader.Register("mod", &ModuleSource{
		Image:           img.Build(),
		EntryChunk:      id,
		DeclaredExports: []string{"value"},
	})

	src, err := loader.Load("mod")
	require.NoError(t, err)
	assert.Equal(t, id, src.EntryChunk)
	assert.Equal(t, []string{"value"}, src.DeclaredExports)
}

func TestMemoryLoaderMissingModule(t *testing.T) {
	loader := NewMemoryLoader()
	_, err := loader.Load("nope")
	require.Error(t, err)
}
