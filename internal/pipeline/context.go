package pipeline

import (
	"sync/atomic"

	"github.com/FairForge/vaultaire/internal/bandwidth"
	"github.com/FairForge/vaultaire/internal/chunk"
	"github.com/FairForge/vaultaire/internal/compress"
	"github.com/FairForge/vaultaire/internal/crypto"
	"github.com/FairForge/vaultaire/internal/stats"
)

// Callbacks are delivered from worker goroutines and must be reentrant-safe.
type Callbacks struct {
	StageComplete  func(stage string, job *Job)
	Error          func(stage string, message string)
	UploadComplete func(job *Job, err error)
	DownloadReady  func(job *Job)

	// RequestChunk is invoked from the verify stage when a chunk's CRC32
	// fails, naming the specific chunk_index the peer must resend (§4.G).
	RequestChunk func(id chunk.TransferID, chunkIndex uint64)
}

// Context is the shared, immutable handle every stage worker observes: queue
// handles are held by the Pipeline itself, but the per-worker engines,
// limiters, statistics pointer, running flag and callbacks live here so a
// job can reach them without any stage-to-stage coupling. The compress and
// decompress stages each get their own engine pool indexed by worker_id
// with no locking: sharing one pool between both stages would let a
// compress-stage worker and a decompress-stage worker with the same
// worker_id race on the same *compress.Engine.
type Context struct {
	compressEngines   []*compress.Engine
	decompressEngines []*compress.Engine

	encryptor crypto.Encryptor
	masterKey []byte

	RecvLimiter *bandwidth.Limiter
	SendLimiter *bandwidth.Limiter
	Stats       *stats.Collector

	running atomic.Bool

	Callbacks Callbacks
}

// NewContext builds a pipeline context with independent compress and
// decompress engine pools, one engine per compression worker slot in each.
func NewContext(compressionWorkers int, recv, send *bandwidth.Limiter, collector *stats.Collector, cb Callbacks) *Context {
	newPool := func() []*compress.Engine {
		pool := make([]*compress.Engine, compressionWorkers)
		for i := range pool {
			pool[i] = compress.NewEngine(compress.ModeAdaptive)
		}
		return pool
	}
	c := &Context{
		compressEngines:   newPool(),
		decompressEngines: newPool(),
		RecvLimiter:       recv,
		SendLimiter:       send,
		Stats:             collector,
		Callbacks:         cb,
	}
	c.running.Store(true)
	return c
}

// WithEncryption equips the context with an encryption engine and the
// master key its transfer-scoped subkeys derive from. Without this call the
// encrypt/decrypt stages pass through untouched.
func (c *Context) WithEncryption(enc crypto.Encryptor, masterKey []byte) *Context {
	c.encryptor = enc
	c.masterKey = masterKey
	return c
}

// Encryptor returns the configured encryption engine, or nil if none was
// set via WithEncryption.
func (c *Context) Encryptor() crypto.Encryptor { return c.encryptor }

// TransferKey derives the per-transfer subkey for transferID, sized to the
// configured encryptor's key size.
func (c *Context) TransferKey(transferID string) ([]byte, error) {
	return crypto.DeriveTransferKey(c.masterKey, transferID, c.encryptor.KeySize())
}

// CompressEngine returns the compress-stage engine bound to workerID.
// Caller supplies a workerID in [0, len) — the pipeline assigns these
// round-robin at stage construction so no lock is ever needed here.
func (c *Context) CompressEngine(workerID int) *compress.Engine {
	return c.compressEngines[workerID%len(c.compressEngines)]
}

// DecompressEngine returns the decompress-stage engine bound to workerID,
// from a pool independent of CompressEngine's.
func (c *Context) DecompressEngine(workerID int) *compress.Engine {
	return c.decompressEngines[workerID%len(c.decompressEngines)]
}

// Running reports whether the owning pipeline is still accepting work.
func (c *Context) Running() bool { return c.running.Load() }

func (c *Context) setRunning(v bool) { c.running.Store(v) }

func (c *Context) onError(stage, message string) {
	if c.Callbacks.Error != nil {
		c.Callbacks.Error(stage, message)
	}
}

func (c *Context) onStageComplete(stage string, job *Job) {
	if c.Callbacks.StageComplete != nil {
		c.Callbacks.StageComplete(stage, job)
	}
}
