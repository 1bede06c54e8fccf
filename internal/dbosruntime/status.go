package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

// ErrWorkflowNotFound is returned when no workflow has the requested ID
var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowStatusInfo represents the status of a workflow
type WorkflowStatusInfo struct {
	WorkflowUUID string
	Status       string
	Name         string
	CreatedAt    int64
	UpdatedAt    int64
}

// State maps the DBOS status column onto the warm states
func (i *WorkflowStatusInfo) State() string {
	switch strings.ToUpper(i.Status) {
	case "SUCCESS":
		return pipeline.StateSucceeded
	case "ERROR", "MAX_RECOVERY_ATTEMPTS_EXCEEDED", "RETRIES_EXCEEDED":
		return pipeline.StateFailed
	case "CANCELLED":
		return pipeline.StateCancelled
	case "ENQUEUED":
		return pipeline.StateEnqueued
	default:
		return pipeline.StatePending
	}
}

// GetWorkflowStatus retrieves the status of a workflow from the DBOS status table
func (r *Runtime) GetWorkflowStatus(ctx context.Context, workflowUUID string) (*WorkflowStatusInfo, error) {
	query := `
		SELECT workflow_uuid, status, name, created_at, updated_at
		FROM dbos.workflow_status
		WHERE workflow_uuid = $1
	`

	var info WorkflowStatusInfo
	err := r.db.QueryRowContext(ctx, query, workflowUUID).Scan(
		&info.WorkflowUUID,
		&info.Status,
		&info.Name,
		&info.CreatedAt,
		&info.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow status: %w", err)
	}

	return &info, nil
}
