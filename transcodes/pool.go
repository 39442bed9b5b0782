package transcodes

import (
	"context"
	"sync"
	"time"
)

type Processor interface {
	Process(ctx context.Context, job *QueuedJob) error
}

// Pool claims jobs from the queue and hands them to the Processor.
type Pool struct {
	Queue        *Queue
	Processor    Processor
	Broker       *Broker
	Concurrency  int
	PollInterval time.Duration
}

// Run resets jobs left active by a previous run, then processes jobs until
// ctx is cancelled. It returns once every worker has exited. A job that is
// running when ctx is cancelled is left active and picked up again by the
// next ResetStale.
func (p *Pool) Run(ctx context.Context) {
	if n, err := p.Queue.ResetStale(ctx); err != nil {
		log.Errorln("reset stale jobs:", err)
	} else if n > 0 {
		log.Infof("reset %d stale jobs to pending", n)
	}

	workers := p.Concurrency
	if workers <= 0 {
		workers = 1
	}
	interval := p.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.worker(ctx, worker, interval)
		}(i)
	}
	wg.Wait()
	log.Infoln("transcode workers stopped")
}

func (p *Pool) worker(ctx context.Context, worker int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.drain(ctx, worker)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain processes jobs until the queue has nothing pending.
func (p *Pool) drain(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		job, err := p.Queue.Claim(ctx)
		if err != nil {
			log.Errorln("worker", worker, err)
			return
		}
		if job == nil {
			log.Debugln("worker", worker, "no pending transcode jobs")
			return
		}
		p.process(ctx, worker, job)
	}
}

func (p *Pool) process(ctx context.Context, worker int, job *QueuedJob) {
	log.Infoln("worker", worker, "claimed job", job.ID, "attempt", job.Attempts)
	p.publish(job, StatusActive, "")

	err := p.Processor.Process(ctx, job)
	if ctx.Err() != nil {
		log.Warnln("worker", worker, "interrupted job", job.ID)
		return
	}

	bg := context.WithoutCancel(ctx)
	if err != nil {
		if ferr := p.Queue.Fail(bg, job.ID, err); ferr != nil {
			log.Errorln("mark job", job.ID, "failed:", ferr)
		}
		p.publish(job, StatusFailed, err.Error())
		return
	}
	if cerr := p.Queue.Complete(bg, job.ID); cerr != nil {
		log.Errorln("mark job", job.ID, "completed:", cerr)
	}
	p.publish(job, StatusCompleted, "")
}

func (p *Pool) publish(job *QueuedJob, status Status, msg string) {
	p.Broker.Publish(job.UserID, Event{
		Kind:    EventStatus,
		JobID:   job.ID,
		VideoID: job.VideoID,
		Status:  status,
		Error:   msg,
	})
}
