package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/executor"
	"github.com/t77yq/macroflow/internal/model"
)

const (
	executionStreamName    = "EXECUTIONS"
	executionSubjects      = "execution.*"
	executionSubmitSubject = "execution.submit"
	executionQueueGroup    = "executors"

	streamMaxAge = 24 * time.Hour
	ackWait      = 30 * time.Second
	maxDeliver   = 3
)

// ExecutionRequest is one unit of immediate work handed to the queue. Either
// Command (translated on the consumer side) or Task (pre-bound action) is set.
type ExecutionRequest struct {
	ID          string      `json:"id"`
	Command     string      `json:"command,omitempty"`
	Task        *model.Task `json:"task,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Queue decouples the API layer from command execution: producers enqueue and
// return immediately, a queue-subscribed consumer drains through the executor.
// Delivery is at-least-once, best-effort.
type Queue struct {
	logger   *zap.Logger
	js       nats.JetStreamContext
	executor *executor.Executor
}

// New creates the queue, its backing stream, and the consumer subscription.
func New(js nats.JetStreamContext, exec *executor.Executor, logger *zap.Logger) (*Queue, error) {
	q := &Queue{
		logger:   logger.Named("execution-queue"),
		js:       js,
		executor: exec,
	}

	if err := q.setupStream(); err != nil {
		return nil, fmt.Errorf("failed to setup execution stream: %w", err)
	}

	if err := q.subscribe(); err != nil {
		return nil, fmt.Errorf("failed to subscribe to executions: %w", err)
	}

	return q, nil
}

func (q *Queue) setupStream() error {
	_, err := q.js.AddStream(&nats.StreamConfig{
		Name:     executionStreamName,
		Subjects: []string{executionSubjects},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  -1,
	})
	if err != nil {
		if err == nats.ErrStreamNameAlreadyInUse {
			q.logger.Info("Stream already exists", zap.String("stream", executionStreamName))
			return nil
		}
		return err
	}

	q.logger.Info("Stream created successfully", zap.String("stream", executionStreamName))
	return nil
}

func (q *Queue) subscribe() error {
	_, err := q.js.QueueSubscribe(
		executionSubmitSubject,
		executionQueueGroup,
		func(msg *nats.Msg) {
			var req ExecutionRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				q.logger.Error("Failed to unmarshal execution request", zap.Error(err))
				if err := msg.Ack(); err != nil {
					q.logger.Error("Failed to acknowledge message", zap.Error(err))
				}
				return
			}

			// Run off the subscription callback so a slow handler does not
			// stall the consumer.
			go q.run(&req)

			if err := msg.Ack(); err != nil {
				q.logger.Error("Failed to acknowledge message", zap.Error(err))
			}
		},
		nats.ManualAck(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(maxDeliver),
	)
	return err
}

func (q *Queue) run(req *ExecutionRequest) {
	q.logger.Info("Draining execution request",
		zap.String("request_id", req.ID),
		zap.String("command", req.Command))

	ctx := context.Background()
	if req.Task != nil {
		q.executor.Dispatch(ctx, req.Task)
		return
	}
	q.executor.Run(ctx, req.Command)
}

// Submit enqueues a request and returns as soon as it is accepted by the
// stream. It never waits for execution.
func (q *Queue) Submit(ctx context.Context, req *ExecutionRequest) (string, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal execution request: %w", err)
	}

	if _, err := q.js.Publish(executionSubmitSubject, data, nats.Context(ctx)); err != nil {
		return "", fmt.Errorf("failed to publish execution request: %w", err)
	}

	return req.ID, nil
}
