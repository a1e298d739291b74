package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/amitthakurameotech-cmyk/subscription-plan/db"
	"github.com/amitthakurameotech-cmyk/subscription-plan/models"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fallbackWindow bounds the plan+amount lookup to recent records so it
// cannot attach a notification to an old unrelated payment at the same
// price.
const fallbackWindow = time.Hour

var (
	// ErrNoIdentity means the filter carries nothing a record could be
	// looked up by.
	ErrNoIdentity = errors.New("store: payment filter carries no identity key")
	// ErrPlanRequired means no record matched and the notification does
	// not carry enough to create one.
	ErrPlanRequired = errors.New("store: cannot create a payment record without a plan")

	errInsertRace = errors.New("store: lost insert race")
)

// PaymentFilter identifies one logical payment by whichever keys the
// notification carries. Lookup strategies are tried in a fixed priority
// order: payment-intent id, checkout-session id, charge id, and last the
// plan+amount fallback (only when enabled, and only against records
// created inside fallbackWindow).
type PaymentFilter struct {
	PaymentIntentID   string
	CheckoutSessionID string
	ChargeID          string

	PlanID        string
	Amount        decimal.Decimal
	AllowFallback bool
}

type lookupStrategy struct {
	name     string
	fallback bool
	apply    func(tx *gorm.DB) *gorm.DB
}

func (f PaymentFilter) strategies() []lookupStrategy {
	var out []lookupStrategy
	if f.PaymentIntentID != "" {
		id := f.PaymentIntentID
		out = append(out, lookupStrategy{name: "payment_intent_id", apply: func(tx *gorm.DB) *gorm.DB {
			return tx.Where("payment_intent_id = ?", id)
		}})
	}
	if f.CheckoutSessionID != "" {
		id := f.CheckoutSessionID
		out = append(out, lookupStrategy{name: "checkout_session_id", apply: func(tx *gorm.DB) *gorm.DB {
			return tx.Where("checkout_session_id = ?", id)
		}})
	}
	if f.ChargeID != "" {
		id := f.ChargeID
		out = append(out, lookupStrategy{name: "charge_id", apply: func(tx *gorm.DB) *gorm.DB {
			return tx.Where("charge_id = ?", id)
		}})
	}
	if f.AllowFallback && f.PlanID != "" && f.Amount.IsPositive() {
		planID, amount := f.PlanID, f.Amount
		out = append(out, lookupStrategy{name: "plan_amount", fallback: true, apply: func(tx *gorm.DB) *gorm.DB {
			return tx.Where("plan_id = ? AND amount = ? AND created_at > ?",
				planID, amount, time.Now().Add(-fallbackWindow))
		}})
	}
	return out
}

func findPayment(tx *gorm.DB, f PaymentFilter, forUpdate bool) (*models.PaymentRecord, error) {
	strategies := f.strategies()
	if len(strategies) == 0 {
		return nil, ErrNoIdentity
	}
	for _, s := range strategies {
		q := s.apply(tx)
		if forUpdate {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rec models.PaymentRecord
		err := q.First(&rec).Error
		if err == nil {
			if s.fallback {
				utils.LogWarn(fmt.Sprintf("payment resolved through the plan+amount fallback (plan=%s)", f.PlanID))
			}
			return &rec, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// ResolvePayment returns the existing record for the filter, or nil when
// no record matches any strategy.
func ResolvePayment(f PaymentFilter) (*models.PaymentRecord, error) {
	return findPayment(db.DB, f, false)
}

// UpsertPayment atomically finds-or-creates the record for the filter and
// merges the patch into it. The row is locked for the duration of the
// merge; a concurrent insert of the same logical payment trips one of the
// unique identity-key indexes and is resolved by retrying the locked
// lookup, so two racing notifications can never produce two rows.
func UpsertPayment(f PaymentFilter, patch models.PaymentPatch) (*models.PaymentRecord, error) {
	rec, err := upsertPaymentOnce(f, patch)
	if errors.Is(err, errInsertRace) {
		rec, err = upsertPaymentOnce(f, patch)
	}
	return rec, err
}

func upsertPaymentOnce(f PaymentFilter, patch models.PaymentPatch) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := findPayment(tx, f, true)
		if err != nil {
			return err
		}
		if existing != nil {
			patch.ApplyTo(existing)
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
			rec = *existing
			return nil
		}

		if f.PlanID == "" {
			return ErrPlanRequired
		}
		fresh := models.PaymentRecord{
			PlanID: f.PlanID,
			Status: models.PaymentPending,
		}
		patch.ApplyTo(&fresh)
		if err := tx.Create(&fresh).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errInsertRace
			}
			return err
		}
		rec = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdatePaymentSubscription refreshes the processor-side linkage and the
// billing-period bounds on the records tied to a subscription. Update
// only: subscription events never create ledger rows.
func UpdatePaymentSubscription(subscriptionID, customerID string, start, end *time.Time) (int64, error) {
	values := map[string]interface{}{}
	if customerID != "" {
		values["customer_id"] = customerID
	}
	if start != nil {
		values["current_period_start"] = start
	}
	if end != nil {
		values["current_period_end"] = end
	}
	if len(values) == 0 {
		return 0, nil
	}
	res := db.DB.Model(&models.PaymentRecord{}).Where("subscription_id = ?", subscriptionID).Updates(values)
	return res.RowsAffected, res.Error
}

// PaymentsByUser returns the user's payment history, newest first.
func PaymentsByUser(userID string) ([]models.PaymentRecord, error) {
	var payments []models.PaymentRecord
	err := db.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

// PlanByID looks up one plan of the catalog.
func PlanByID(id string) (*models.Plan, error) {
	var plan models.Plan
	if err := db.DB.First(&plan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// UpdatePlanPeriod writes the current billing-period bounds onto the
// plan. Writing the same bounds repeatedly is harmless, which keeps the
// schedule events idempotent.
func UpdatePlanPeriod(planID string, start, end *time.Time) error {
	return db.DB.Model(&models.Plan{}).Where("id = ?", planID).Updates(map[string]interface{}{
		"current_period_start": start,
		"current_period_end":   end,
	}).Error
}
