package ingestion

import (
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// Metadata keys attached to every stored chunk.
const (
	MetaBatchID    = "batch_id"
	MetaFileName   = "file_name"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
)

// chunkNamespace seeds the name-based UUIDs used as chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("resumechat.chunk"))

// ChunkID returns the deterministic ID of the index-th chunk of page in the
// file at path within batch. Re-ingesting the same batch yields the same IDs,
// so stores overwrite rather than duplicate.
func ChunkID(batchID, path string, page, index int) string {
	name := batchID + "|" + path + "#" + strconv.Itoa(page) + "#" + strconv.Itoa(index)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// chunkMetadata builds the metadata map stored alongside a chunk.
func chunkMetadata(batchID, path string, page, index int) map[string]string {
	return map[string]string{
		MetaBatchID:    batchID,
		MetaFileName:   filepath.Base(path),
		MetaPage:       strconv.Itoa(page),
		MetaChunkIndex: strconv.Itoa(index),
	}
}
