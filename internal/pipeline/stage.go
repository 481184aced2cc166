package pipeline

import (
	"context"
	"sync"
	"time"
)

// stallYield is the pause before an inter-stage handoff retries against a
// full downstream queue.
const stallYield = 2 * time.Millisecond

// processFunc transforms a job at one stage. Returning a nil job with a nil
// error means the stage fully handled the job itself (e.g. the final write
// stage delivered upload_complete) and nothing advances further.
type processFunc func(pctx *Context, job *Job) (*Job, error)

// stage owns one bounded FIFO queue and its dedicated worker pool, per §4.F:
// "Every stage has a dedicated bounded FIFO queue... sized from the
// configuration." Built on a bounded channel and a fixed worker-goroutine
// pool, chaining into a configurable next stage instead of returning a
// result synchronously.
type stage struct {
	name    string
	queue   chan *Job
	workers int
	process processFunc
	next    *stage

	stallCount int64
	mu         sync.Mutex
}

func newStage(name string, queueSize, workers int, fn processFunc) *stage {
	return &stage{
		name:    name,
		queue:   make(chan *Job, queueSize),
		workers: workers,
		process: fn,
	}
}

// run starts the stage's worker pool. shutdownCtx is the pipeline-wide
// cancellation signal distinct from any individual job's own context.
func (s *stage) run(pctx *Context, shutdownCtx context.Context, wg *sync.WaitGroup) {
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-shutdownCtx.Done():
					return
				case job, ok := <-s.queue:
					if !ok {
						return
					}
					s.handle(pctx, workerID, job)
				}
			}
		}(w)
	}
}

func (s *stage) handle(pctx *Context, workerID int, job *Job) {
	if !pctx.Running() || job.canceled() {
		return // operation_canceled: silent, does not touch the next stage
	}

	job.WorkerID = workerID
	result, err := s.process(pctx, job)
	if err != nil {
		pctx.onError(s.name, err.Error())
		return
	}
	pctx.onStageComplete(s.name, job)

	if result == nil || s.next == nil {
		return
	}
	s.next.handoff(pctx, result)
}

// handoff enqueues job on the next stage, recording a stall when the
// downstream queue is momentarily full and retrying with a short yield
// instead of blocking indefinitely (§4.F backpressure).
func (s *stage) handoff(pctx *Context, job *Job) {
	for {
		select {
		case s.queue <- job:
			return
		default:
		}

		s.mu.Lock()
		s.stallCount++
		s.mu.Unlock()

		select {
		case s.queue <- job:
			return
		case <-job.Ctx.Done():
			return
		case <-time.After(stallYield):
			if !pctx.Running() {
				return
			}
		}
	}
}

func (s *stage) stalls() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stallCount
}
