package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreFromEnv_Memory(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "Memory")

	vs, err := NewStoreFromEnv(context.Background(), 4)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, vs)
}

func TestNewSharedStoreFromEnv_RejectsMemory(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "memory")

	vs, err := NewSharedStoreFromEnv(context.Background(), 4)
	require.ErrorIs(t, err, ErrProcessLocal)
	assert.Nil(t, vs)
}

func TestNewStoreFromEnv_Unsupported(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "faiss")

	_, err := NewStoreFromEnv(context.Background(), 4)
	assert.ErrorContains(t, err, "unsupported VECTOR_BACKEND")
}
