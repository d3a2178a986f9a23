// Package tasks runs background work on asynq. The only job today refreshes
// a supplier's cached outstanding balance after invoices or payments change.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/projectthinkx/ds-sub001/internal/domain"
	"github.com/projectthinkx/ds-sub001/internal/logger"
)

const TypeSupplierBalanceRefresh = "payables:supplier:balance_refresh"

const queueDefault = "default"

type SupplierBalancePayload struct {
	SupplierID string `json:"supplier_id"`
}

func NewSupplierBalanceRefreshTask(supplierID string) (*asynq.Task, error) {
	supplierID = strings.TrimSpace(supplierID)
	if supplierID == "" {
		return nil, fmt.Errorf("supplier id is required")
	}
	payload, err := json.Marshal(SupplierBalancePayload{SupplierID: supplierID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSupplierBalanceRefresh, payload, asynq.MaxRetry(5), asynq.Queue(queueDefault)), nil
}

// Enqueuer schedules background work. Failures to enqueue never fail the
// request that triggered them.
type Enqueuer interface {
	EnqueueSupplierBalanceRefresh(ctx context.Context, supplierID string) error
}

type NoopEnqueuer struct{}

func (NoopEnqueuer) EnqueueSupplierBalanceRefresh(_ context.Context, _ string) error {
	return nil
}

type AsynqEnqueuer struct {
	client *asynq.Client
}

func NewAsynqEnqueuer(opt asynq.RedisClientOpt) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: asynq.NewClient(opt)}
}

func (e *AsynqEnqueuer) EnqueueSupplierBalanceRefresh(ctx context.Context, supplierID string) error {
	task, err := NewSupplierBalanceRefreshTask(supplierID)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	return err
}

func (e *AsynqEnqueuer) Close() error {
	return e.client.Close()
}

// BalanceRefresher recomputes a supplier balance and stores it in the cache.
type BalanceRefresher interface {
	RefreshSupplierBalance(ctx context.Context, supplierID string) (*domain.SupplierBalance, error)
}

type Processor struct {
	refresher BalanceRefresher
	log       zerolog.Logger
}

func NewProcessor(refresher BalanceRefresher) *Processor {
	return &Processor{refresher: refresher, log: logger.WithComponent("tasks")}
}

func (p *Processor) HandleSupplierBalanceRefresh(ctx context.Context, t *asynq.Task) error {
	var payload SupplierBalancePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode balance refresh payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.SupplierID) == "" {
		return fmt.Errorf("balance refresh without supplier id: %w", asynq.SkipRetry)
	}

	balance, err := p.refresher.RefreshSupplierBalance(ctx, payload.SupplierID)
	if err != nil {
		return err
	}
	p.log.Debug().
		Str("supplier_id", balance.SupplierID).
		Int("outstanding", balance.OutstandingCount).
		Str("total_pending", balance.TotalPending.StringFixed(2)).
		Msg("supplier balance refreshed")
	return nil
}

func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSupplierBalanceRefresh, p.HandleSupplierBalanceRefresh)
	return mux
}

// NewServer builds the worker that runs next to the HTTP server.
func NewServer(opt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	log := logger.WithComponent("tasks")
	if concurrency < 1 {
		concurrency = 2
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueDefault: 1},
		Logger:      asynqLogger{log: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Bytes("payload", task.Payload()).Msg("task failed")
		}),
	})
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
