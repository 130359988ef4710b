package billing

import (
	"context"
	"errors"

	"github.com/giginltd/gigin_backend/config"
	"github.com/giginltd/gigin_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HandleAccountUpdated reacts to a musician's connected account changing
// state. When transfers first become active, any balance earned before
// onboarding is pushed to the new account exactly once; the account id
// recorded on the profile is the guard against webhook redelivery.
func (e *Engine) HandleAccountUpdated(ctx context.Context, acct *ConnectedAccount) error {
	db := config.GetDB()

	var musician models.MusicianProfile
	err := db.WithContext(ctx).First(&musician, "stripe_account_id = ?", acct.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Account not linked to any profile; nothing to do.
			return nil
		}
		return err
	}

	if err := db.WithContext(ctx).Model(&models.MusicianProfile{}).
		Where("id = ?", musician.ID).
		Update("transfers_enabled", acct.TransfersActive).Error; err != nil {
		return err
	}

	if !acct.TransfersActive {
		return nil
	}
	if musician.LastEarningsTransferAccountId == acct.ID {
		return nil
	}
	if musician.WithdrawableEarnings.LessThanOrEqual(decimal.Zero) {
		// Nothing accrued; just record the account so we never revisit it.
		return db.WithContext(ctx).Model(&models.MusicianProfile{}).
			Where("id = ?", musician.ID).
			Update("last_earnings_transfer_account_id", acct.ID).Error
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under lock; a concurrent delivery may have already paid.
		var locked models.MusicianProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", musician.ID).Error; err != nil {
			return err
		}
		if locked.LastEarningsTransferAccountId == acct.ID {
			return nil
		}
		amount := locked.WithdrawableEarnings
		if amount.LessThanOrEqual(decimal.Zero) {
			return tx.Model(&models.MusicianProfile{}).
				Where("id = ?", locked.ID).
				Update("last_earnings_transfer_account_id", acct.ID).Error
		}

		transferId, err := e.Gateway.CreateTransfer(ctx, TransferParams{
			AmountPence:        AmountToPence(amount),
			Currency:           DefaultCurrency,
			DestinationAccount: acct.ID,
			TransferGroup:      "legacy-earnings-" + locked.ID,
			Description:        "Accrued Gigin earnings",
		})
		if err != nil {
			return err
		}
		config.LogInfo(e.Logger, "billing", "HandleAccountUpdated", "legacy earnings transferred",
			map[string]string{"musician_id": locked.ID, "transfer_id": transferId, "amount": amount.StringFixed(2)},
			"legacy balance moved to connected account")

		return tx.Model(&models.MusicianProfile{}).
			Where("id = ?", locked.ID).
			Updates(map[string]interface{}{
				"withdrawable_earnings":             decimal.Zero,
				"last_earnings_transfer_account_id": acct.ID,
			}).Error
	})
}

type PayoutInput struct {
	MusicianId string `json:"musician_id" binding:"required"`
}

type PayoutResult struct {
	PayoutId string          `json:"payout_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// PayoutToBankAccount pushes a musician's withdrawable balance to their bank
// via their connected account.
func (e *Engine) PayoutToBankAccount(ctx context.Context, input *PayoutInput) (*PayoutResult, error) {
	musician, err := models.GetMusicianByID(ctx, input.MusicianId)
	if err != nil {
		return nil, err
	}
	if musician.StripeAccountId == "" || !musician.TransfersEnabled {
		return nil, ErrTransfersInactive
	}
	if musician.WithdrawableEarnings.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNothingToWithdraw
	}

	amount := musician.WithdrawableEarnings
	payoutId, err := e.Gateway.CreatePayout(ctx, AmountToPence(amount), DefaultCurrency, musician.StripeAccountId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&models.MusicianProfile{}).
		Where("id = ?", musician.ID).
		Update("withdrawable_earnings", gorm.Expr("withdrawable_earnings - ?", amount)).Error
	if err != nil {
		// Payout went out but the counter did not move; finance reconciles
		// from the Stripe dashboard, so scream in the logs.
		config.LogError(e.Logger, "billing", "PayoutToBankAccount", "decrement withdrawable after payout",
			map[string]string{"musician_id": musician.ID, "payout_id": payoutId}, err)
		return nil, err
	}
	return &PayoutResult{PayoutId: payoutId, Amount: amount}, nil
}
