package usecase

import (
	"context"
	"fmt"

	"FinScore/internal/domain/models"
	applogger "FinScore/pkg/logger"
	"FinScore/pkg/queue"
)

// RetrainJobType is the queue message type carrying a models.RetrainTarget.
const RetrainJobType = "model.retrain"

// Retrainer runs one blocking retrain. ModelLifecycleManager implements it.
type Retrainer interface {
	Retrain(ctx context.Context, target models.RetrainTarget) (*models.ModelBundle, error)
}

// RetrainJob executes queued retrain requests.
type RetrainJob struct {
	retrainer Retrainer
	log       *applogger.Logger
}

var _ queue.Job = (*RetrainJob)(nil)

func NewRetrainJob(r Retrainer, log *applogger.Logger) *RetrainJob {
	if log == nil {
		log = applogger.NewNop()
	}
	return &RetrainJob{retrainer: r, log: log}
}

func (j *RetrainJob) Name() string { return "retrain" }
func (j *RetrainJob) Type() string { return RetrainJobType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	target, err := queue.ParsePayload[models.RetrainTarget](payload)
	if err != nil {
		return err
	}
	if err := validTarget(*target); err != nil {
		return err
	}
	b, err := j.retrainer.Retrain(ctx, *target)
	if err != nil {
		return err
	}
	j.log.Info("queued retrain done",
		applogger.String("kind", string(target.Kind)),
		applogger.String("user_id", target.UserID),
		applogger.String("version", b.Version),
	)
	return nil
}

func validTarget(t models.RetrainTarget) error {
	switch t.Kind {
	case models.BundleDecisionClassifier:
		return nil
	case models.BundleExpenseRegressor:
		if t.UserID == "" {
			return fmt.Errorf("retrain target: user_id is required for %s", t.Kind)
		}
		return nil
	default:
		return fmt.Errorf("retrain target: unknown kind %q", t.Kind)
	}
}
