package fdtable

import (
	"go.uber.org/atomic"

	"oskern/config"
	"oskern/usermem"
	"oskern/util/freelist"
)

const NBUF = 16 // I/O buffers kept on the free list

// Stats are shared by every table of one kernel.
type Stats struct {
	Live         atomic.Int64  // handles not yet freed
	Opened       atomic.Uint64 // handles ever created
	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64
}

// Params holds what every descriptor table of a kernel has in common.
type Params struct {
	OpenMax     int
	FdIncrement int
	IOChunk     int
	Copier      usermem.Copier
	Stats       *Stats
	bufs        *freelist.FreeList[[]byte]
}

func NewParams(cfg *config.Config, copier usermem.Copier) *Params {
	chunk := cfg.IOChunk
	return &Params{
		OpenMax:     cfg.OpenMax,
		FdIncrement: cfg.FdIncrement,
		IOChunk:     chunk,
		Copier:      copier,
		Stats:       &Stats{},
		bufs: freelist.NewFreeList[[]byte](NBUF, func() *[]byte {
			b := make([]byte, chunk)
			return &b
		}),
	}
}
