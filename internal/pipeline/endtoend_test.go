package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/vaultaire/internal/chunk"
)

// splitIntoChunks cuts data into fixed-size chunks and returns the Header
// each one would carry on the wire, mirroring what a real sender does before
// submitting jobs into the upload chain.
func splitIntoChunks(id chunk.TransferID, data []byte, chunkSize int) []chunk.Header {
	var headers []chunk.Header
	var idx uint64
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		payload := data[offset:end]
		var flags byte
		if offset == 0 {
			flags |= chunk.FlagFirst
		}
		if end == len(data) {
			flags |= chunk.FlagLast
		}
		headers = append(headers, chunk.Header{
			TransferID:     id,
			ChunkIndex:     idx,
			ChunkOffset:    uint64(offset),
			OriginalSize:   uint32(len(payload)),
			CompressedSize: uint32(len(payload)),
			Checksum:       chunk.CRC32(payload),
			Flags:          flags,
		})
		idx++
	}
	return headers
}

func testFileData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 2654435761 >> 13)
	}
	return data
}

// TestUploadRoundTripByteForByte exercises §8.3: a full upload chain
// (decompress -> verify -> write, decrypt left as pass-through) reassembles
// the source file byte for byte at destRoot and renames it into place.
func TestUploadRoundTripByteForByte(t *testing.T) {
	const chunkSize = 256 * 1024
	data := testFileData(int(2.5 * 1024 * 1024))
	id := chunk.NewTransferID()
	headers := splitIntoChunks(id, data, chunkSize)

	meta := chunk.FileMetadata{
		Filename:    "roundtrip.bin",
		FileSize:    int64(len(data)),
		TotalChunks: uint64(len(headers)),
		ChunkSize:   chunkSize,
		SHA256Hash:  chunk.SHA256Bytes(data),
	}
	require.True(t, meta.Validate())

	destRoot := t.TempDir()

	var mu sync.Mutex
	done := make(chan struct{})
	var completeErr error
	pctx := NewContext(2, nil, nil, nil, Callbacks{
		UploadComplete: func(_ *Job, err error) {
			mu.Lock()
			completeErr = err
			mu.Unlock()
			close(done)
		},
	})
	p := New(Config{QueueSize: 32, IOWorkers: 2, CompressionWorkers: 2, NetworkWorkers: 1, EncryptionWorkers: 1}, pctx, Stages{
		Decompress: DecompressStage(),
		Verify:     VerifyStage(),
		Write:      WriteStage(destRoot),
	})
	require.NoError(t, p.Start())
	defer p.Stop(true)

	ctx := context.Background()
	for _, h := range headers {
		offset := h.ChunkOffset
		payload := append([]byte{}, data[offset:offset+uint64(h.OriginalSize)]...)
		require.NoError(t, p.SubmitUploadChunk(ctx, &Job{Ctx: ctx, Header: h, Payload: payload, Meta: meta}))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, completeErr)

	got, err := os.ReadFile(filepath.Join(destRoot, meta.Filename))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))

	_, err = os.Stat(filepath.Join(destRoot, meta.Filename+".tmp"))
	assert.True(t, os.IsNotExist(err), "partial .tmp file should be gone after a successful assembly")
}

// TestUploadResumeAcrossTwoBatches exercises §8.7: the first half of a
// transfer's chunks lands, then (simulating a reconnect) the remaining
// chunks are submitted later into the same running pipeline; the assembled
// file is still byte-for-byte correct once every chunk has arrived.
func TestUploadResumeAcrossTwoBatches(t *testing.T) {
	const chunkSize = 256 * 1024
	data := testFileData(int(2.5 * 1024 * 1024))
	id := chunk.NewTransferID()
	headers := splitIntoChunks(id, data, chunkSize)
	require.True(t, len(headers) > 2)

	meta := chunk.FileMetadata{
		Filename:    "resumed.bin",
		FileSize:    int64(len(data)),
		TotalChunks: uint64(len(headers)),
		ChunkSize:   chunkSize,
		SHA256Hash:  chunk.SHA256Bytes(data),
	}

	destRoot := t.TempDir()

	done := make(chan struct{})
	var mu sync.Mutex
	var completeErr error
	pctx := NewContext(1, nil, nil, nil, Callbacks{
		UploadComplete: func(_ *Job, err error) {
			mu.Lock()
			completeErr = err
			mu.Unlock()
			close(done)
		},
	})
	p := New(Config{QueueSize: 32, IOWorkers: 1, CompressionWorkers: 1, NetworkWorkers: 1, EncryptionWorkers: 1}, pctx, Stages{
		Verify: VerifyStage(),
		Write:  WriteStage(destRoot),
	})
	require.NoError(t, p.Start())
	defer p.Stop(true)

	ctx := context.Background()
	submit := func(h chunk.Header) {
		payload := append([]byte{}, data[h.ChunkOffset:h.ChunkOffset+uint64(h.OriginalSize)]...)
		require.NoError(t, p.SubmitUploadChunk(ctx, &Job{Ctx: ctx, Header: h, Payload: payload, Meta: meta}))
	}

	half := len(headers) / 2
	for _, h := range headers[:half] {
		submit(h)
	}

	// Give the first batch time to land before the "reconnect".
	time.Sleep(50 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("upload completed before every chunk was submitted")
	default:
	}

	for _, h := range headers[half:] {
		submit(h)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resumed upload never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, completeErr)

	got, err := os.ReadFile(filepath.Join(destRoot, meta.Filename))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

// TestVerifyStageRequestsResendOnCRCMismatch exercises the data phase's
// per-chunk CRC check: a corrupted chunk never reaches write, and the
// chunk_index it names is reported back via RequestChunk.
func TestVerifyStageRequestsResendOnCRCMismatch(t *testing.T) {
	data := testFileData(4096)
	id := chunk.NewTransferID()
	h := chunk.Header{
		TransferID:     id,
		ChunkIndex:     0,
		OriginalSize:   uint32(len(data)),
		CompressedSize: uint32(len(data)),
		Checksum:       chunk.CRC32(data) + 1, // deliberately wrong
		Flags:          chunk.FlagFirst | chunk.FlagLast,
	}
	meta := chunk.FileMetadata{Filename: "corrupt.bin", FileSize: int64(len(data)), TotalChunks: 1, ChunkSize: uint32(len(data)), SHA256Hash: chunk.SHA256Bytes(data)}

	destRoot := t.TempDir()

	var mu sync.Mutex
	var requested bool
	var requestedIndex uint64
	errCalled := make(chan struct{})
	pctx := NewContext(1, nil, nil, nil, Callbacks{
		RequestChunk: func(_ chunk.TransferID, chunkIndex uint64) {
			mu.Lock()
			requested = true
			requestedIndex = chunkIndex
			mu.Unlock()
		},
		Error: func(_, _ string) {
			select {
			case <-errCalled:
			default:
				close(errCalled)
			}
		},
	})
	p := New(Config{QueueSize: 8, IOWorkers: 1, CompressionWorkers: 1, NetworkWorkers: 1, EncryptionWorkers: 1}, pctx, Stages{
		Verify: VerifyStage(),
		Write:  WriteStage(destRoot),
	})
	require.NoError(t, p.Start())
	defer p.Stop(true)

	ctx := context.Background()
	require.NoError(t, p.SubmitUploadChunk(ctx, &Job{Ctx: ctx, Header: h, Payload: append([]byte{}, data...), Meta: meta}))

	select {
	case <-errCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("verify stage never reported the checksum mismatch")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, requested)
	assert.Equal(t, uint64(0), requestedIndex)

	_, err := os.Stat(filepath.Join(destRoot, meta.Filename))
	assert.True(t, os.IsNotExist(err), "a CRC-failed chunk must never reach the write stage")
}

// TestWriteStageDeletesOnWholeFileHashMismatch exercises the last-chunk
// whole-file verification: every chunk passes CRC, but the assembled file's
// SHA-256 doesn't match Meta.SHA256Hash, so the .tmp file is deleted rather
// than renamed into place (file_hash_mismatch, §7).
func TestWriteStageDeletesOnWholeFileHashMismatch(t *testing.T) {
	data := testFileData(4096)
	id := chunk.NewTransferID()
	h := chunk.Header{
		TransferID:     id,
		ChunkIndex:     0,
		OriginalSize:   uint32(len(data)),
		CompressedSize: uint32(len(data)),
		Checksum:       chunk.CRC32(data),
		Flags:          chunk.FlagFirst | chunk.FlagLast,
	}
	meta := chunk.FileMetadata{
		Filename:    "mismatched.bin",
		FileSize:    int64(len(data)),
		TotalChunks: 1,
		ChunkSize:   uint32(len(data)),
		SHA256Hash:  "0000000000000000000000000000000000000000000000000000000000000", // wrong on purpose
	}

	destRoot := t.TempDir()

	done := make(chan struct{})
	var mu sync.Mutex
	var completeErr error
	pctx := NewContext(1, nil, nil, nil, Callbacks{
		UploadComplete: func(_ *Job, err error) {
			mu.Lock()
			completeErr = err
			mu.Unlock()
			close(done)
		},
	})
	p := New(Config{QueueSize: 8, IOWorkers: 1, CompressionWorkers: 1, NetworkWorkers: 1, EncryptionWorkers: 1}, pctx, Stages{
		Verify: VerifyStage(),
		Write:  WriteStage(destRoot),
	})
	require.NoError(t, p.Start())
	defer p.Stop(true)

	ctx := context.Background()
	require.NoError(t, p.SubmitUploadChunk(ctx, &Job{Ctx: ctx, Header: h, Payload: append([]byte{}, data...), Meta: meta}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write stage never finished the assembly")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, completeErr)

	_, err := os.Stat(filepath.Join(destRoot, meta.Filename))
	assert.True(t, os.IsNotExist(err), "destination file must not exist after a hash mismatch")
	_, err = os.Stat(filepath.Join(destRoot, meta.Filename+".tmp"))
	assert.True(t, os.IsNotExist(err), ".tmp partial file must be deleted after a hash mismatch")
}

// TestDownloadRoundTrip exercises the download chain's read -> compress ->
// send path: bytes read off srcRoot reassemble, after reversing whatever
// compression was applied, to the original source file.
func TestDownloadRoundTrip(t *testing.T) {
	const chunkSize = 256 * 1024
	data := testFileData(int(2.5 * 1024 * 1024))
	id := chunk.NewTransferID()
	headers := splitIntoChunks(id, data, chunkSize)

	meta := chunk.FileMetadata{
		Filename:    "download.bin",
		FileSize:    int64(len(data)),
		TotalChunks: uint64(len(headers)),
		ChunkSize:   chunkSize,
		SHA256Hash:  chunk.SHA256Bytes(data),
	}

	srcRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, meta.Filename), data, 0o644))

	var mu sync.Mutex
	received := make(map[uint64]*Job)
	allDone := make(chan struct{})
	var once sync.Once
	pctx := NewContext(2, nil, nil, nil, Callbacks{
		DownloadReady: func(job *Job) {
			mu.Lock()
			received[job.Header.ChunkIndex] = job
			n := len(received)
			mu.Unlock()
			if n == len(headers) {
				once.Do(func() { close(allDone) })
			}
		},
	})
	p := New(Config{QueueSize: 32, IOWorkers: 2, CompressionWorkers: 2, NetworkWorkers: 2, EncryptionWorkers: 1}, pctx, Stages{
		Read:     ReadStage(srcRoot),
		Compress: CompressStage(),
		Send:     SendStage(),
	})
	require.NoError(t, p.Start())
	defer p.Stop(true)

	ctx := context.Background()
	for _, h := range headers {
		require.NoError(t, p.SubmitDownloadChunk(ctx, &Job{Ctx: ctx, Header: h, Meta: meta}))
	}

	select {
	case <-allDone:
	case <-time.After(5 * time.Second):
		t.Fatal("download never produced every chunk")
	}

	mu.Lock()
	defer mu.Unlock()

	var indices []uint64
	for idx := range received {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	var reassembled []byte
	for _, idx := range indices {
		job := received[idx]
		payload := job.Payload
		if job.Header.Compressed() {
			original, err := pctx.DecompressEngine(0).DecompressChunk(payload, int(job.Header.OriginalSize))
			require.NoError(t, err)
			payload = original
		}
		reassembled = append(reassembled, payload...)
	}

	assert.True(t, bytes.Equal(data, reassembled))
}
