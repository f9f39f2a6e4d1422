package services

import (
	"context"
	"sync"

	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/models"
)

// JobProcessor processes a single job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *models.ScanJob) error
}

// DefaultJobConsumer processes jobs with a fixed number of workers. Jobs
// processed without error are acknowledged; failed jobs are left for
// redelivery.
type DefaultJobConsumer struct {
	Processor JobProcessor
	Producer  JobProducer
	Workers   int
}

// Start consumes jobs until the channel closes and every worker is idle.
func (c *DefaultJobConsumer) Start(ctx context.Context, jobs <-chan *models.ScanJob) {
	workers := c.Workers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobs {
				logger.Log.Debugf("[Consumer Worker %d] processing job %s", workerID, job.ScanID)
				if err := c.Processor.ProcessJob(ctx, job); err != nil {
					logger.Log.Errorf("[Consumer Worker %d] job %s failed: %v", workerID, job.ScanID, err)
					continue
				}
				if c.Producer == nil {
					continue
				}
				if err := c.Producer.Ack(ctx, job); err != nil {
					logger.Log.Warnf("[Consumer Worker %d] ack job %s: %v", workerID, job.ScanID, err)
				}
			}
		}(i)
	}
	wg.Wait()
}
