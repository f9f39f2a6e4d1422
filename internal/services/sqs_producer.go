// Package services runs the queue worker: it receives scan jobs from SQS,
// clones and scans each repository, and stores the issues found.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/lockwhz/hogscan/internal/logger"
	"github.com/lockwhz/hogscan/models"
)

// SQSAPI is the part of the SQS client used by the producer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// JobProducer delivers scan jobs and acknowledges the ones processed.
type JobProducer interface {
	Start(ctx context.Context) <-chan *models.ScanJob
	Ack(ctx context.Context, job *models.ScanJob) error
}

// DefaultSQSProducer long-polls an SQS queue for scan jobs.
type DefaultSQSProducer struct {
	Client      SQSAPI
	QueueURL    string
	WaitSeconds int32
	MaxMessages int32
}

// Start polls until ctx is done, then closes the returned channel.
// Messages that are not valid jobs are logged and deleted.
func (p *DefaultSQSProducer) Start(ctx context.Context) <-chan *models.ScanJob {
	jobs := make(chan *models.ScanJob)
	go func() {
		defer close(jobs)
		for ctx.Err() == nil {
			out, err := p.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(p.QueueURL),
				MaxNumberOfMessages: p.maxMessages(),
				WaitTimeSeconds:     p.WaitSeconds,
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Log.Errorf("SQSProducer: receive from %s: %v", p.QueueURL, err)
				sleep(ctx, time.Second)
				continue
			}
			for _, msg := range out.Messages {
				job, err := decodeJob(msg)
				if err != nil {
					logger.Log.Errorf("SQSProducer: dropping message %s: %v", aws.ToString(msg.MessageId), err)
					p.delete(ctx, msg.ReceiptHandle)
					continue
				}
				select {
				case jobs <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return jobs
}

// Ack deletes the message that carried job.
func (p *DefaultSQSProducer) Ack(ctx context.Context, job *models.ScanJob) error {
	_, err := p.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.QueueURL),
		ReceiptHandle: aws.String(job.ReceiptHandle),
	})
	return err
}

func (p *DefaultSQSProducer) delete(ctx context.Context, handle *string) {
	if _, err := p.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.QueueURL),
		ReceiptHandle: handle,
	}); err != nil {
		logger.Log.Warnf("SQSProducer: delete message: %v", err)
	}
}

func (p *DefaultSQSProducer) maxMessages() int32 {
	if p.MaxMessages <= 0 || p.MaxMessages > 10 {
		return 10
	}
	return p.MaxMessages
}

func decodeJob(msg types.Message) (*models.ScanJob, error) {
	var job models.ScanJob
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &job); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	job.ReceiptHandle = aws.ToString(msg.ReceiptHandle)
	return &job, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
