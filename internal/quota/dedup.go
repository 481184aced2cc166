package quota

import (
	"io"
	"os"
	"path/filepath"

	"github.com/FairForge/vaultaire/internal/chunk"
)

// DuplicateSet groups every scanned path that shares one content-defined
// chunk's digest, naming how many bytes that chunk occupies on disk across
// every path but the first.
type DuplicateSet struct {
	Digest        string
	ChunkSize     int64
	Paths         []string
	DuplicateSize int64
}

// DedupReport summarizes one ScanDedup pass over a storage root.
type DedupReport struct {
	FilesScanned    int64
	ChunksScanned   int64
	DuplicateChunks int64
	DuplicateBytes  int64
	Sets            []DuplicateSet
}

// ScanDedup walks the manager's storage root, splitting every regular file
// into content-defined chunks bounded by [minChunkSize, maxChunkSize] and
// hashing each with SHA-256, to find byte runs shared across otherwise
// unrelated files that a whole-file comparison would miss. It is a
// read-only report: callers decide what, if anything, to do with a
// DuplicateSet (e.g. replacing later copies with a reflink or a pointer
// into the first).
func (m *Manager) ScanDedup(minChunkSize, maxChunkSize int) (DedupReport, error) {
	digests := make(map[string]*DuplicateSet)
	var report DedupReport

	err := filepath.WalkDir(m.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		report.FilesScanned++

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		splitter, err := chunk.NewCDCSplitter(f, minChunkSize, maxChunkSize)
		if err != nil {
			return err
		}

		for {
			payload, nextErr := splitter.Next()
			if len(payload) > 0 {
				report.ChunksScanned++
				digest := chunk.SHA256Bytes(payload)

				set, ok := digests[digest]
				if !ok {
					digests[digest] = &DuplicateSet{
						Digest:    digest,
						ChunkSize: int64(len(payload)),
						Paths:     []string{path},
					}
				} else if set.Paths[len(set.Paths)-1] != path {
					set.Paths = append(set.Paths, path)
					set.DuplicateSize += int64(len(payload))
					report.DuplicateBytes += int64(len(payload))
					if len(set.Paths) == 2 {
						report.DuplicateChunks++
					}
				}
			}
			if nextErr == io.EOF {
				break
			}
			if nextErr != nil {
				return nextErr
			}
		}
		return nil
	})
	if err != nil {
		return DedupReport{}, err
	}

	for _, set := range digests {
		if len(set.Paths) > 1 {
			report.Sets = append(report.Sets, *set)
		}
	}
	return report, nil
}
