// Package jobs defines the asynq task types shared by the API (producer)
// and the worker (consumer).
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TaskAuditPurge removes deletion-audit entries past retention.
	TaskAuditPurge = "audit:purge"

	// QueueMaintenance is the queue the worker drains for housekeeping
	// tasks.
	QueueMaintenance = "maintenance"
)

// AuditPurgePayload carries the retention window for one purge run.
type AuditPurgePayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditPurgeTask builds the purge task for the given retention window
// in hours.
func NewAuditPurgeTask(retentionHours int) (*asynq.Task, error) {
	if retentionHours <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %d hours", retentionHours)
	}
	payload, err := json.Marshal(AuditPurgePayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, payload, asynq.Queue(QueueMaintenance)), nil
}
