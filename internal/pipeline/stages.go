package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/FairForge/vaultaire/internal/chunk"
)

// EncryptStage builds the download chain's "encrypt?" processFunc (§4.F):
// when the context carries an encryptor it seals the payload, stamps
// FlagEncrypted, and prepends the nonce so the peer's decrypt stage can
// split it back off; with no encryptor configured the job passes through
// untouched and the flag is never set.
func EncryptStage() processFunc {
	return func(pctx *Context, job *Job) (*Job, error) {
		enc := pctx.Encryptor()
		if enc == nil || enc.Algorithm() == "" || enc.KeySize() == 0 {
			return job, nil
		}

		key, err := pctx.TransferKey(job.Header.TransferID.String())
		if err != nil {
			return nil, fmt.Errorf("derive key for chunk %d: %w", job.Header.ChunkIndex, err)
		}
		ciphertext, nonce, err := enc.Seal(key, job.Payload)
		if err != nil {
			return nil, fmt.Errorf("encrypt chunk %d: %w", job.Header.ChunkIndex, err)
		}

		job.Payload = append(nonce, ciphertext...)
		job.Header.Flags |= chunk.FlagEncrypted
		return job, nil
	}
}

// DecryptStage builds the upload chain's "decrypt?" processFunc. Chunks
// without FlagEncrypted pass through untouched; this is what lets a
// transfer mix encrypted and plaintext chunks across a resume boundary
// without the pipeline needing to know why.
func DecryptStage() processFunc {
	return func(pctx *Context, job *Job) (*Job, error) {
		if !job.Header.Encrypted() {
			return job, nil
		}

		enc := pctx.Encryptor()
		if enc == nil {
			return nil, fmt.Errorf("chunk %d is encrypted but no encryptor is configured", job.Header.ChunkIndex)
		}

		nonceSize := enc.NonceSize()
		if len(job.Payload) < nonceSize {
			return nil, fmt.Errorf("chunk %d: payload shorter than nonce", job.Header.ChunkIndex)
		}

		key, err := pctx.TransferKey(job.Header.TransferID.String())
		if err != nil {
			return nil, fmt.Errorf("derive key for chunk %d: %w", job.Header.ChunkIndex, err)
		}

		nonce, ciphertext := job.Payload[:nonceSize], job.Payload[nonceSize:]
		plaintext, err := enc.Open(key, nonce, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("decrypt chunk %d: %w", job.Header.ChunkIndex, err)
		}

		job.Payload = plaintext
		return job, nil
	}
}

// DecompressStage builds the upload chain's "decompress" processFunc.
// Chunks without FlagCompressed pass through untouched; otherwise the
// context's decompress-pool engine bound to this job's worker_id reverses
// CompressChunk using the wire header's original_size.
func DecompressStage() processFunc {
	return func(pctx *Context, job *Job) (*Job, error) {
		if !job.Header.Compressed() {
			return job, nil
		}

		engine := pctx.DecompressEngine(job.WorkerID)
		original, err := engine.DecompressChunk(job.Payload, int(job.Header.OriginalSize))
		if err != nil {
			return nil, fmt.Errorf("decompress chunk %d: %w", job.Header.ChunkIndex, err)
		}
		job.Payload = original
		return job, nil
	}
}

// VerifyStage builds the upload chain's "verify" processFunc (§4.G data
// phase): it recomputes CRC32 over the fully decompressed/decrypted payload
// and compares it to the wire header's checksum. A mismatch fires
// RequestChunk, naming the chunk_index the peer must resend, and the job
// does not advance to write.
func VerifyStage() processFunc {
	return func(pctx *Context, job *Job) (*Job, error) {
		if chunk.VerifyCRC32(job.Payload, job.Header.Checksum) {
			return job, nil
		}
		if pctx.Callbacks.RequestChunk != nil {
			pctx.Callbacks.RequestChunk(job.Header.TransferID, job.Header.ChunkIndex)
		}
		return nil, fmt.Errorf("chunk %d: crc32 mismatch, requested resend", job.Header.ChunkIndex)
	}
}

// WriteStage builds the upload chain's terminal "write" processFunc: it
// writes the verified payload into a .tmp sibling of destRoot/Meta.Filename
// at chunk_offset, and once every chunk_index has arrived, verifies the
// assembled file's whole-file SHA-256 and either renames it into place or
// deletes it and reports a file_hash_mismatch error (§4.G, §7). One
// WriteStage call owns one uploadTracker, so every upload job submitted
// through the pipeline it's wired into shares destination-file state.
func WriteStage(destRoot string) processFunc {
	tracker := newUploadTracker()
	return func(pctx *Context, job *Job) (*Job, error) {
		if pctx.RecvLimiter != nil {
			if err := pctx.RecvLimiter.Acquire(job.Ctx, float64(len(job.Payload))); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", job.Header.ChunkIndex, err)
			}
		}

		assembly, err := tracker.assemblyFor(job.Header.TransferID, destRoot, job.Meta)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", job.Header.ChunkIndex, err)
		}

		complete, err := assembly.writeChunk(job.Header, job.Payload)
		if err != nil {
			return nil, err
		}
		if !complete {
			return nil, nil
		}

		tracker.forget(job.Header.TransferID)
		finishErr := assembly.finish()
		if pctx.Callbacks.UploadComplete != nil {
			pctx.Callbacks.UploadComplete(job, finishErr)
		}
		return nil, finishErr
	}
}

// ReadStage builds the download chain's entry "read" processFunc: it reads
// exactly the job's header-declared span out of srcRoot/Meta.Filename and
// stamps the wire header's original_size/checksum from the plaintext bytes,
// before encrypt/compress get a chance to transform the payload.
func ReadStage(srcRoot string) processFunc {
	return func(pctx *Context, job *Job) (*Job, error) {
		path := filepath.Join(srcRoot, job.Meta.Filename)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open source for chunk %d: %w", job.Header.ChunkIndex, err)
		}
		defer f.Close()

		buf := make([]byte, job.Header.OriginalSize)
		n, err := f.ReadAt(buf, int64(job.Header.ChunkOffset))
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read chunk %d: %w", job.Header.ChunkIndex, err)
		}

		job.Payload = buf[:n]
		job.Header.OriginalSize = uint32(n)
		job.Header.CompressedSize = uint32(n)
		job.Header.Checksum = chunk.CRC32(job.Payload)
		job.OriginalSize = int64(n)
		return job, nil
	}
}

// CompressStage builds the download chain's "compress" processFunc: it
// applies the context's compress-pool engine bound to this job's worker_id
// to whatever payload reaches it (plaintext or, once Encrypt has run,
// ciphertext) and stamps FlagCompressed/compressed_size on the wire header
// so the peer's DecompressStage can reverse it.
func CompressStage() processFunc {
	return func(pctx *Context, job *Job) (*Job, error) {
		engine := pctx.CompressEngine(job.WorkerID)
		job.Header.OriginalSize = uint32(len(job.Payload))

		wire, compressed, err := engine.CompressChunk(job.Payload)
		if err != nil {
			return nil, fmt.Errorf("compress chunk %d: %w", job.Header.ChunkIndex, err)
		}
		if compressed {
			job.Header.Flags |= chunk.FlagCompressed
		}
		job.Header.CompressedSize = uint32(len(wire))
		job.Payload = wire
		return job, nil
	}
}

// SendStage builds the download chain's terminal "send" processFunc: it
// hands the finished wire chunk to DownloadReady, the hook a transport
// layer wires up to actually put bytes on the connection.
func SendStage() processFunc {
	return func(pctx *Context, job *Job) (*Job, error) {
		if pctx.SendLimiter != nil {
			if err := pctx.SendLimiter.Acquire(job.Ctx, float64(len(job.Payload))); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", job.Header.ChunkIndex, err)
			}
		}
		if pctx.Callbacks.DownloadReady != nil {
			pctx.Callbacks.DownloadReady(job)
		}
		return nil, nil
	}
}
