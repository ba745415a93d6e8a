package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRoleExpirySweep deactivates admin role assignments whose expiry
	// has passed and drops cached authority for the affected users.
	TaskRoleExpirySweep = "authz:role_expiry_sweep"
)

// NewRoleExpirySweepTask constructs the sweep task. The sweep carries no
// payload; the database decides what is expired at execution time.
func NewRoleExpirySweepTask() *asynq.Task {
	return asynq.NewTask(TaskRoleExpirySweep, nil)
}

// ExpirySweeper deactivates expired assignments. Satisfied by
// adminroles.Service.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// NewRoleExpirySweepHandler returns the asynq handler for the sweep task.
func NewRoleExpirySweepHandler(sweeper ExpirySweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		count, err := sweeper.SweepExpired(ctx)
		if err != nil {
			logger.Error("role expiry sweep", slog.Any("error", err))
			return err
		}
		if count > 0 {
			logger.Info("role expiry sweep", slog.Int("deactivated", count))
		}
		return nil
	}
}
