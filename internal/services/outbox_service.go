package services

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"invest/internal/db"
	"invest/internal/models"
	"invest/internal/store"
)

type eventQueue interface {
	ListPending(ctx context.Context, limit int) ([]store.TransactionEvent, error)
	Claim(ctx context.Context, tx store.Execer, eventID string) (int64, error)
}

type depositCompletedConsumer interface {
	HandleDepositCompleted(ctx context.Context, transactionID string) error
}

type withdrawalTerminalConsumer interface {
	HandleWithdrawalTerminal(ctx context.Context, transactionID string) error
}

// OutboxService routes pending transaction status-change events to their
// consumers. Delivery is at-least-once: a consumer runs before the event is
// claimed, and every consumer carries its own idempotency flag, so a crash
// between the two only causes a harmless redelivery.
type OutboxService struct {
	runner       db.TxRunner
	q            store.Getter
	events       eventQueue
	transactions transactionLedger
	commissions  depositCompletedConsumer
	refunds      withdrawalTerminalConsumer
}

func NewOutboxService(
	runner db.TxRunner,
	q store.Getter,
	events eventQueue,
	transactions transactionLedger,
	commissions depositCompletedConsumer,
	refunds withdrawalTerminalConsumer,
) *OutboxService {
	return &OutboxService{
		runner:       runner,
		q:            q,
		events:       events,
		transactions: transactions,
		commissions:  commissions,
		refunds:      refunds,
	}
}

// DispatchPending drains the outbox once.
func (s *OutboxService) DispatchPending(ctx context.Context, limit int) (processed, failed int, err error) {
	pending, err := s.events.ListPending(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, event := range pending {
		if err := s.dispatch(ctx, event); err != nil {
			failed++
			continue
		}
		processed++
	}
	return processed, failed, nil
}

func (s *OutboxService) dispatch(ctx context.Context, event store.TransactionEvent) error {
	txn, err := s.transactions.GetByID(ctx, s.q, event.TransactionID)
	if err != nil {
		return err
	}
	if err := s.consume(ctx, txn, event); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
		return err
	}
	return s.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.events.Claim(ctx, tx, event.ID)
		return err
	})
}

func (s *OutboxService) consume(ctx context.Context, txn models.Transaction, event store.TransactionEvent) error {
	switch {
	case txn.Type == models.TxDeposit && event.NewStatus == models.TxCompleted:
		return s.commissions.HandleDepositCompleted(ctx, txn.ID)
	case txn.Type == models.TxWithdrawal &&
		(event.NewStatus == models.TxCancelled || event.NewStatus == models.TxFailed):
		return s.refunds.HandleWithdrawalTerminal(ctx, txn.ID)
	default:
		return nil
	}
}
