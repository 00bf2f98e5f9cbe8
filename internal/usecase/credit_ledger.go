// File: internal/usecase/credit_ledger.go
package usecase

import (
	"context"
	"time"

	"github.com/imagerestore/controlplane/internal/config"
	"github.com/imagerestore/controlplane/internal/domain"
	"github.com/imagerestore/controlplane/internal/domain/model"
	"github.com/imagerestore/controlplane/internal/domain/ports/repository"
	usecaseport "github.com/imagerestore/controlplane/internal/domain/ports/usecase"
	"github.com/imagerestore/controlplane/internal/infra/metrics"
	"github.com/imagerestore/controlplane/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ usecaseport.CreditLedger = (*CreditLedgerUseCase)(nil)

// CreditLedgerUseCase implements the atomic check-and-deduct / refund
// contract of spec.md §4.2. The fast-path counters live in Redis behind the
// compare-and-increment / compare-and-decrement scripts the spec calls for;
// Postgres holds the append-only audit ledger and the durable user mirror.
type CreditLedgerUseCase struct {
	counters   *redis.CreditCounters
	ledgerRepo repository.LedgerRepository
	userRepo   repository.UserRepository
	tm         repository.TransactionManager
	cfg        config.CreditsConfig
	logger     *zerolog.Logger
}

func NewCreditLedgerUseCase(counters *redis.CreditCounters, ledgerRepo repository.LedgerRepository, userRepo repository.UserRepository, tm repository.TransactionManager, cfg config.CreditsConfig, logger *zerolog.Logger) *CreditLedgerUseCase {
	return &CreditLedgerUseCase{counters: counters, ledgerRepo: ledgerRepo, userRepo: userRepo, tm: tm, cfg: cfg, logger: logger}
}

// CheckAndDeduct attempts a free-tier slot first, then a paid debit,
// following spec.md §4.2's ordering exactly.
func (uc *CreditLedgerUseCase) CheckAndDeduct(ctx context.Context, ownerID, jobID string) (usecaseport.CreditResult, error) {
	dayKey := model.DailyKey(time.Now())

	ok, newFreeCount, err := uc.counters.ConsumeFreeSlot(ctx, ownerID, dayKey, uc.cfg.FreeDailyLimit, 24*time.Hour)
	if err != nil {
		return usecaseport.CreditResult{}, err
	}
	if ok {
		if err := uc.ledgerRepo.Append(ctx, nil, &model.LedgerEntry{
			OwnerID:   ownerID,
			JobID:     jobID,
			Amount:    -1,
			Kind:      model.CreditKindFree,
			Reason:    "free daily slot",
			CreatedAt: time.Now(),
		}); err != nil {
			uc.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to append free-slot ledger entry")
		}
		metrics.IncLedgerEntry(string(model.CreditKindFree))
		return usecaseport.CreditResult{Allowed: true, Kind: model.CreditKindFree, RemainingCounter: uc.cfg.FreeDailyLimit - newFreeCount}, nil
	}

	allowed, newBalance, err := uc.counters.DebitPaid(ctx, ownerID, uc.cfg.DebitPerJob)
	if err != nil {
		return usecaseport.CreditResult{}, err
	}
	if !allowed {
		metrics.IncInsufficientCredits()
		return usecaseport.CreditResult{Allowed: false, RemainingCounter: 0}, nil
	}

	if err := uc.ledgerRepo.Append(ctx, nil, &model.LedgerEntry{
		OwnerID:   ownerID,
		JobID:     jobID,
		Amount:    -uc.cfg.DebitPerJob,
		Kind:      model.CreditKindPaid,
		Reason:    "job debit",
		CreatedAt: time.Now(),
	}); err != nil {
		uc.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to append paid-debit ledger entry")
	}
	metrics.IncLedgerEntry(string(model.CreditKindPaid))

	go uc.mirrorBalance(ownerID, newBalance)

	return usecaseport.CreditResult{Allowed: true, Kind: model.CreditKindPaid, RemainingCounter: int(newBalance)}, nil
}

// Refund reverses the most recent debit recorded for jobID. It is a no-op
// (not an error) if that debit was already refunded, per spec.md §4.2.
func (uc *CreditLedgerUseCase) Refund(ctx context.Context, ownerID, jobID string, reason string) error {
	debit, err := uc.ledgerRepo.LatestDebitForJob(ctx, jobID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil
		}
		return err
	}

	already, err := uc.ledgerRepo.RefundExists(ctx, debit.ID)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	switch debit.Kind {
	case model.CreditKindFree:
		if err := uc.counters.ReleaseFreeSlot(ctx, ownerID, model.DailyKey(debit.CreatedAt)); err != nil {
			return err
		}
	case model.CreditKindPaid:
		newBalance, err := uc.counters.CreditPaid(ctx, ownerID, -debit.Amount)
		if err != nil {
			return err
		}
		go uc.mirrorBalance(ownerID, newBalance)
	}

	if err := uc.ledgerRepo.Append(ctx, nil, &model.LedgerEntry{
		OwnerID:   ownerID,
		JobID:     jobID,
		Amount:    -debit.Amount,
		Kind:      model.CreditKindRefund,
		Reason:    reason,
		RefID:     debit.ID,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	metrics.IncLedgerEntry(string(model.CreditKindRefund))
	return nil
}

// mirrorBalance writes the fast-path balance to the durable user document.
// Failure is logged, never propagated: spec.md §4.2 treats the mirror as
// best-effort.
func (uc *CreditLedgerUseCase) mirrorBalance(ownerID string, balance int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, err := uc.userRepo.FindByID(ctx, nil, ownerID)
	if err != nil && err != domain.ErrNotFound {
		uc.logger.Error().Err(err).Str("owner_id", ownerID).Msg("balance mirror: read failed")
		return
	}
	if u == nil {
		u = &model.User{ID: ownerID}
	}
	u.PaidBalance = balance
	u.UpdatedAt = time.Now()
	if err := uc.userRepo.Upsert(ctx, nil, u); err != nil {
		uc.logger.Error().Err(err).Str("owner_id", ownerID).Msg("balance mirror: write failed")
	}
}

// AddPurchasedCredits credits a completed purchase to the paid balance and
// records it, used by the purchase webhook (spec.md SUPPLEMENTED FEATURES).
func (uc *CreditLedgerUseCase) AddPurchasedCredits(ctx context.Context, ownerID string, amount int64, refID string) error {
	newBalance, err := uc.counters.CreditPaid(ctx, ownerID, amount)
	if err != nil {
		return err
	}
	if err := uc.ledgerRepo.Append(ctx, nil, &model.LedgerEntry{
		OwnerID:   ownerID,
		Amount:    amount,
		Kind:      model.CreditKindPurchase,
		Reason:    "credit purchase",
		RefID:     refID,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	metrics.IncLedgerEntry(string(model.CreditKindPurchase))
	uc.mirrorBalance(ownerID, newBalance)
	return nil
}
