package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	appErr "github.com/collabdesk/engine/pkg/errors"
	"github.com/collabdesk/engine/pkg/logger"
)

// TypeCollaboratorImport is the asynq task type for CSV import runs.
const TypeCollaboratorImport = "collaborators:import"

// TaskEnqueuer is the subset of *asynq.Client the import service needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ImportService interface {
	// Enqueue schedules an import run for an uploaded file. It returns
	// accepted=false when an identical task is already pending inside the
	// dedup window; that enqueue is suppressed, not queued twice.
	Enqueue(ctx context.Context, filePath string, ownerID uuid.UUID) (accepted bool, err error)
}

type importService struct {
	client      TaskEnqueuer
	dedupWindow time.Duration
}

func NewImportService(client TaskEnqueuer, dedupWindow time.Duration) ImportService {
	return &importService{client: client, dedupWindow: dedupWindow}
}

var _ ImportService = (*importService)(nil)

func (s *importService) Enqueue(ctx context.Context, filePath string, ownerID uuid.UUID) (bool, error) {
	payload, err := json.Marshal(map[string]string{
		"file_path": filePath,
		"owner_id":  ownerID.String(),
	})
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "marshal import payload failed")
	}

	task := asynq.NewTask(TypeCollaboratorImport, payload)
	// MaxRetry(0) keeps the run at-most-once; a failed import is reported by
	// mail, never replayed. Unique(...) drops a second enqueue for the same
	// file inside the window.
	_, err = s.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Unique(s.dedupWindow),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			logger.L().Info("duplicate import enqueue suppressed",
				zap.String("file_path", filePath),
				zap.String("owner_id", ownerID.String()),
			)
			return false, nil
		}
		return false, appErr.Wrap(err, appErr.CodeInternal, "enqueue import task failed")
	}

	logger.L().Info("import task enqueued",
		zap.String("file_path", filePath),
		zap.String("owner_id", ownerID.String()),
	)
	return true, nil
}
