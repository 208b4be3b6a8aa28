// Package batch runs many merge jobs through a worker pool. Jobs are
// independent and share no mutable state; the pool dispatches whole jobs, not
// sub-phases.
package batch

import (
	"context"
	"sync"

	"github.com/xiaoyuanzhu-com/bilisub/log"
	"github.com/xiaoyuanzhu-com/bilisub/pipeline"
)

// Outcome is one job's result line.
type Outcome struct {
	Job    pipeline.Job
	Report *pipeline.Report
	Err    error
}

// Pool processes merge jobs with a bounded number of workers.
type Pool struct {
	workers int
	collab  pipeline.Collaborators

	queue    chan pipeline.Job
	results  chan Outcome
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPool creates a pool with the given parallelism (min 1).
func NewPool(workers int, collab pipeline.Collaborators) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers:  workers,
		collab:   collab,
		queue:    make(chan pipeline.Job, 64),
		results:  make(chan Outcome, 64),
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	log.Info().Int("workers", p.workers).Msg("starting batch pool")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.processLoop(ctx, i)
	}
}

// Submit enqueues one job. Blocks when the queue is full.
func (p *Pool) Submit(job pipeline.Job) {
	select {
	case p.queue <- job:
	case <-p.stopChan:
	}
}

// Results delivers one Outcome per submitted job.
func (p *Pool) Results() <-chan Outcome {
	return p.results
}

// Stop drains the workers and closes the results channel. Safe to call once
// after all Submits are done.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
	close(p.results)
	log.Info().Msg("batch pool stopped")
}

func (p *Pool) processLoop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.queue:
			report, err := pipeline.Run(ctx, job, p.collab)
			if err != nil {
				log.Error().Err(err).Int("worker", id).Str("video", job.Video).Msg("job failed")
			}
			select {
			case p.results <- Outcome{Job: job, Report: report, Err: err}:
			case <-p.stopChan:
				return
			}
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunAll processes jobs with the given parallelism and returns outcomes in
// completion order.
func RunAll(ctx context.Context, jobs []pipeline.Job, collab pipeline.Collaborators, workers int) []Outcome {
	pool := NewPool(workers, collab)
	pool.Start(ctx)

	go func() {
		for _, job := range jobs {
			pool.Submit(job)
		}
	}()

	outcomes := make([]Outcome, 0, len(jobs))
	for range jobs {
		out, ok := <-pool.Results()
		if !ok {
			break
		}
		outcomes = append(outcomes, out)
	}
	pool.Stop()
	return outcomes
}
