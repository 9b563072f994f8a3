package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	domsvc "FinScore/internal/domain/service"
	pkgkafka "FinScore/pkg/kafka"
	applogger "FinScore/pkg/logger"
)

// Transaction event kinds.
const (
	TxExpense  = "expense"
	TxIncome   = "income"
	TxFeedback = "feedback"
)

// TransactionEventsHandler turns transaction change events into retrain requests.
// Expense and income changes retrain the user's regressor; feedback retrains the decision model.
type TransactionEventsHandler struct {
	topic     string
	scheduler domsvc.RetrainScheduler
	metrics   domrepo.Metrics
	log       *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*TransactionEventsHandler)(nil)

func NewTransactionEventsHandler(topic string, scheduler domsvc.RetrainScheduler, metrics domrepo.Metrics, log *applogger.Logger) *TransactionEventsHandler {
	if log == nil {
		log = applogger.NewNop()
	}
	return &TransactionEventsHandler{topic: topic, scheduler: scheduler, metrics: metrics, log: log}
}

func (h *TransactionEventsHandler) Topic() string { return h.topic }

// incoming message schema: {user_id, kind, at}
func (h *TransactionEventsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		UserID string `json:"user_id"`
		Kind   string `json:"kind"`
		At     int64  `json:"at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.recordError("consumer_unmarshal")
		return err
	}
	if m.At > 1e11 { // ms
		m.At /= 1000
	}
	if m.At > 0 && h.metrics != nil {
		h.metrics.RecordLatency("event_to_schedule_seconds", time.Since(time.Unix(m.At, 0)).Seconds())
	}

	var target models.RetrainTarget
	switch m.Kind {
	case TxExpense, TxIncome:
		if m.UserID == "" {
			h.recordError("consumer_invalid")
			return fmt.Errorf("%s event without user_id", m.Kind)
		}
		target = models.RetrainTarget{Kind: models.BundleExpenseRegressor, UserID: m.UserID}
	case TxFeedback:
		target = models.RetrainTarget{Kind: models.BundleDecisionClassifier}
	default:
		h.log.Debug("ignoring transaction event", applogger.String("kind", m.Kind))
		return nil
	}

	if err := h.scheduler.ScheduleRetrain(ctx, target); err != nil {
		if IsRateLimited(err) {
			h.log.Debug("retrain throttled", applogger.String("model_key", domrepo.ModelKeyFor(target)))
			return nil
		}
		h.recordError("consumer_schedule")
		return err
	}
	return nil
}

func (h *TransactionEventsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}
