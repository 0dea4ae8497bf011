package rangeserver

import (
	"github.com/marmos91/streamcore/internal/fetcher"
	"github.com/marmos91/streamcore/internal/prefetch"
	"github.com/marmos91/streamcore/internal/remote"
)

// Stream is a registered playable object: everything the Range Server
// needs to answer HTTP requests for one stream_id.
type Stream struct {
	ID       string
	Handle   remote.Handle
	FileSize int64
	MimeType string
	DCID     int32
	Engine   *prefetch.Engine
}

// TotalChunks returns ceil(FileSize / ChunkSize).
func (s *Stream) TotalChunks() uint32 {
	return uint32((s.FileSize + fetcher.ChunkSize - 1) / fetcher.ChunkSize)
}
