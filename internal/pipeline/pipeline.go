// Package pipeline implements the bounded multi-stage job graph of §4.F:
// chunks flow through per-stage bounded queues, each serviced by its own
// worker pool, with explicit backpressure and stall handling instead of
// unbounded buffering at any hop.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the pipeline's own lifecycle, independent of any single
// transfer's state: stopped -> starting -> running -> stopping -> stopped.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Pipeline owns the stage chain, the shared Context, and the lifecycle state
// machine. One Pipeline processes both upload and download stage chains
// concurrently; a caller submits into whichever entry stage matches its
// direction.
type Pipeline struct {
	cfg  Config
	pctx *Context

	uploadEntry   *stage
	downloadEntry *stage
	allStages     []*stage

	state              atomic.Int32
	backpressureEvents atomic.Int64

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	wg             sync.WaitGroup
}

// New builds a pipeline with the classic upload chain
// (decompress -> decrypt? -> verify -> write) and download chain
// (read -> encrypt? -> compress -> send), wired per cfg.
func New(cfg Config, pctx *Context, stages Stages) *Pipeline {
	def := DefaultConfig()
	if cfg.IOWorkers <= 0 {
		cfg.IOWorkers = def.IOWorkers
	}
	if cfg.CompressionWorkers <= 0 {
		cfg.CompressionWorkers = def.CompressionWorkers
	}
	if cfg.NetworkWorkers <= 0 {
		cfg.NetworkWorkers = def.NetworkWorkers
	}
	if cfg.EncryptionWorkers <= 0 {
		cfg.EncryptionWorkers = def.EncryptionWorkers
	}
	qs := cfg.queueSize()

	p := &Pipeline{cfg: cfg, pctx: pctx}

	write := newStage("write", qs, cfg.IOWorkers, passthroughIfNil(stages.Write))
	verify := newStage("verify", qs, cfg.IOWorkers, passthroughIfNil(stages.Verify))
	verify.next = write
	decrypt := newStage("decrypt", qs, cfg.EncryptionWorkers, passthroughIfNil(stages.Decrypt))
	decrypt.next = verify
	decompress := newStage("decompress", qs, cfg.CompressionWorkers, passthroughIfNil(stages.Decompress))
	decompress.next = decrypt

	send := newStage("send", qs, cfg.NetworkWorkers, passthroughIfNil(stages.Send))
	compress := newStage("compress", qs, cfg.CompressionWorkers, passthroughIfNil(stages.Compress))
	compress.next = send
	encrypt := newStage("encrypt", qs, cfg.EncryptionWorkers, passthroughIfNil(stages.Encrypt))
	encrypt.next = compress
	read := newStage("read", qs, cfg.IOWorkers, passthroughIfNil(stages.Read))
	read.next = encrypt

	p.uploadEntry = decompress
	p.downloadEntry = read
	p.allStages = []*stage{decompress, decrypt, verify, write, read, encrypt, compress, send}

	return p
}

// Stages supplies the per-stage transform functions. A nil function is
// treated as a pass-through (job unchanged, advance to the next stage).
type Stages struct {
	Decompress processFunc
	Decrypt    processFunc
	Verify     processFunc
	Write      processFunc

	Read     processFunc
	Encrypt  processFunc
	Compress processFunc
	Send     processFunc
}

func passthroughIfNil(fn processFunc) processFunc {
	if fn != nil {
		return fn
	}
	return func(_ *Context, j *Job) (*Job, error) { return j, nil }
}

// Start transitions stopped -> starting -> running, launching every stage's
// worker pool. Starting a pipeline that isn't stopped fails with
// ErrAlreadyInitialized.
func (p *Pipeline) Start() error {
	if !p.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyInitialized
	}

	p.shutdownCtx, p.shutdownCancel = context.WithCancel(context.Background())
	p.pctx.setRunning(true)

	for _, s := range p.allStages {
		s.run(p.pctx, p.shutdownCtx, &p.wg)
	}

	p.state.Store(int32(StateRunning))
	return nil
}

// Stop transitions running -> stopping -> stopped. It flips the shared
// Context's running flag (so in-flight jobs observe cancellation and return
// without advancing), cancels the shutdown context, and, if wait is true,
// blocks until every worker goroutine has exited.
func (p *Pipeline) Stop(wait bool) error {
	if !p.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrNotInitialized
	}

	p.pctx.setRunning(false)
	p.shutdownCancel()

	if wait {
		p.wg.Wait()
	}

	p.state.Store(int32(StateStopped))
	return nil
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// SubmitUploadChunk tries to enqueue job at the upload chain's entry stage.
// If that queue is full it increments backpressure_events and returns
// ErrBackpressure; the caller should slow its network reader.
func (p *Pipeline) SubmitUploadChunk(ctx context.Context, job *Job) error {
	if job.Ctx == nil {
		job.Ctx = ctx
	}
	select {
	case p.uploadEntry.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.backpressureEvents.Add(1)
		return ErrBackpressure
	}
}

// TrySubmitUploadChunk never blocks: it reports whether job was accepted.
func (p *Pipeline) TrySubmitUploadChunk(job *Job) bool {
	select {
	case p.uploadEntry.queue <- job:
		return true
	default:
		return false
	}
}

// SubmitDownloadChunk mirrors SubmitUploadChunk for the download chain's
// entry stage.
func (p *Pipeline) SubmitDownloadChunk(ctx context.Context, job *Job) error {
	if job.Ctx == nil {
		job.Ctx = ctx
	}
	select {
	case p.downloadEntry.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.backpressureEvents.Add(1)
		return ErrBackpressure
	}
}

// BackpressureEvents returns how many submissions were rejected because
// their entry queue was full.
func (p *Pipeline) BackpressureEvents() int64 {
	return p.backpressureEvents.Load()
}

// StallEvents sums the stall_detected count across every stage's
// inter-stage handoff.
func (p *Pipeline) StallEvents() int64 {
	var total int64
	for _, s := range p.allStages {
		total += s.stalls()
	}
	return total
}
