package review

import (
	"context"
	"runtime"

	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/internal/storage"
)

// probePool bounds the number of concurrent image-header probes. One
// pool serves the whole process; pages share its workers.
type probePool struct {
	media       storage.MediaStore
	jobs        chan *probeJob
	workerCount int
	shutdown    chan struct{}
}

type probeJob struct {
	ctx      context.Context
	filename string
	resultCh chan probeResult
}

type probeResult struct {
	width  int
	height int
}

// newProbePool starts a pool sized to the container: 75% of available
// CPUs, at least 2 workers.
func newProbePool(media storage.MediaStore) *probePool {
	workerCount := (runtime.NumCPU() * 3) / 4
	if workerCount < 2 {
		workerCount = 2
	}

	log.Infof("Initializing image probe worker pool with %d workers", workerCount)

	pool := &probePool{
		media:       media,
		jobs:        make(chan *probeJob, workerCount*2),
		workerCount: workerCount,
		shutdown:    make(chan struct{}),
	}
	pool.startWorkers()
	return pool
}

func (p *probePool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		go func(workerID int) {
			for {
				select {
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					width, height := p.media.Dimensions(job.filename)

					select {
					case job.resultCh <- probeResult{width: width, height: height}:
					case <-job.ctx.Done():
					}

				case <-p.shutdown:
					log.Debugf("Probe worker %d received shutdown signal", workerID)
					return
				}
			}
		}(i)
	}
}

// dimensions probes one image through the pool, blocking until a worker
// picks it up. Cancellation degrades to (0, 0) like any other probe
// failure.
func (p *probePool) dimensions(ctx context.Context, filename string) (int, int) {
	resultCh := make(chan probeResult, 1)
	job := &probeJob{ctx: ctx, filename: filename, resultCh: resultCh}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return 0, 0
	}

	select {
	case result := <-resultCh:
		return result.width, result.height
	case <-ctx.Done():
		return 0, 0
	}
}

// Shutdown stops the pool workers.
func (p *probePool) Shutdown() {
	close(p.shutdown)
}
