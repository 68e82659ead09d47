// Package uploader provides an asynchronous worker pool that uploads
// documents to the document service.
//
// Uploads are paced by a token bucket so that bulk uploads and the docs
// watcher never flood the service with processing work.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cloudlearn/study/pkg/client"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("upload pool closed")

// Uploader uploads one document. *client.Client satisfies it.
type Uploader interface {
	UploadDocument(ctx context.Context, path string) (*client.UploadResult, error)
}

// Job is a unit of work for the pool.
type Job struct {
	// Path is the file to upload.
	Path string

	// Index is the position of the job in a batch. It is copied to the Result.
	Index int
}

// Result is the outcome of one Job.
type Result struct {
	Job      Job
	Upload   *client.UploadResult
	Err      error
	Duration time.Duration
}

// Config is the configuration options for the pool.
type Config struct {
	// Uploader performs the uploads.
	Uploader Uploader

	// NumWorkers is the number of concurrent uploads (defaults to 2).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// RatePerMinute caps upload starts per minute. Zero means unlimited.
	RatePerMinute uint

	// OnResult is called from worker goroutines after each job and must be
	// safe for concurrent use.
	OnResult func(Result)

	Logger *slog.Logger
}

// Pool processes upload jobs asynchronously.
type Pool struct {
	config  *Config
	ctx     context.Context
	queue   chan Job
	limiter *rate.Limiter
	logger  *slog.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its workers. Cancelling ctx aborts
// queued and in-flight uploads.
func NewPool(ctx context.Context, c *Config) (*Pool, error) {
	if c.Uploader == nil {
		return nil, errors.New("uploader is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Pool{
		config:  c,
		ctx:     ctx,
		queue:   make(chan Job, c.QueueSize),
		limiter: newLimiter(c.RatePerMinute),
		logger:  logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// newLimiter returns a limiter allowing perMinute starts per minute with a
// burst of one. Zero disables limiting.
func newLimiter(perMinute uint) *rate.Limiter {
	if perMinute == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
}

// Enqueue submits a job without blocking.
// Returns true if enqueued, false if the queue is full or the pool is closed.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("upload queued", "path", job.Path)
		return true
	default:
		p.logger.Error("upload not queued, queue full, job dropped", "path", job.Path)
		return false
	}
}

// Submit submits a job, blocking until there is room in the queue or ctx is
// done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- job:
		p.logger.Debug("upload queued", "path", job.Path)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued uploads to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker continuously pulls jobs off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("upload worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("upload worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	start := time.Now()
	res := Result{Job: job}

	if err := p.limiter.Wait(p.ctx); err != nil {
		res.Err = fmt.Errorf("waiting for upload slot: %w", err)
	} else {
		res.Upload, res.Err = p.config.Uploader.UploadDocument(p.ctx, job.Path)
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		p.logger.Warn("upload failed", "path", job.Path, "error", res.Err)
	} else {
		p.logger.Info("document uploaded",
			"path", job.Path,
			"document_id", res.Upload.ID.String(),
			"duration", res.Duration,
		)
	}

	if p.config.OnResult != nil {
		p.config.OnResult(res)
	}
}

// UploadAll uploads every path through a pool configured by c and returns
// the results in the order of paths. c.OnResult is still called as each
// upload finishes.
func UploadAll(ctx context.Context, c Config, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))

	onResult := c.OnResult
	var mu sync.Mutex
	c.OnResult = func(r Result) {
		mu.Lock()
		results[r.Job.Index] = r
		mu.Unlock()

		if onResult != nil {
			onResult(r)
		}
	}

	p, err := NewPool(ctx, &c)
	if err != nil {
		return nil, err
	}

	for i, path := range paths {
		if err := p.Submit(ctx, Job{Path: path, Index: i}); err != nil {
			p.Close()
			return nil, err
		}
	}
	p.Close()

	return results, nil
}
