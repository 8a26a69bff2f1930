package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskRequestReindex refreshes derived pricing data for one purchase
	// request after a mutation.
	TaskRequestReindex = "request:reindex"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskSendMail delivers a transactional notification email.
	TaskSendMail = "mail:send"
)

// RequestReindexPayload identifies the purchase request to refresh.
type RequestReindexPayload struct {
	RequestID int64 `json:"requestId"`
}

// NewRequestReindexTask builds a reindex task for a single request.
func NewRequestReindexTask(requestID int64) (*asynq.Task, error) {
	body, err := json.Marshal(RequestReindexPayload{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRequestReindex, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// SendMailPayload describes the information required to send an email.
type SendMailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendMailTask constructs an Asynq task for a notification email.
func NewSendMailTask(payload SendMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendMail, data, asynq.Queue(QueueDefault)), nil
}
