// Package jobs wires background processing: the Asynq worker, the
// enqueue client and the task handlers for asynchronous document
// extraction.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOCRProcess runs the ingestion cascade over a stored document.
	TaskOCRProcess = "ocr:process"
	// TaskOCRSweep retries extraction for FAILED sentinel invoices.
	TaskOCRSweep = "ocr:sweep_failed"
)

// OCRProcessPayload identifies the stored document to extract.
type OCRProcessPayload struct {
	Location string `json:"location"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	ActorID  int64  `json:"actor_id"`
}

// NewOCRProcessTask constructs an Asynq task for document extraction.
func NewOCRProcessTask(payload OCRProcessPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOCRProcess, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewOCRSweepTask constructs the periodic sweep task. It carries no
// payload; the handler scans the database for FAILED extractions.
func NewOCRSweepTask() *asynq.Task {
	return asynq.NewTask(TaskOCRSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
