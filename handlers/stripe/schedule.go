package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amitthakurameotech-cmyk/subscription-plan/store"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	stripe "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// handleSubscriptionChanged keeps the ledger linkage and billing-period
// bounds in step with customer.subscription.created/updated events.
func (h *Handler) handleSubscriptionChanged(event stripe.Event) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	if sub.ID == "" {
		return errors.New("subscription event without an id")
	}

	start, end := sub.period()
	updated, err := store.UpdatePaymentSubscription(sub.ID, sub.Customer, start, end)
	if err != nil {
		return fmt.Errorf("update payments for subscription %s: %w", sub.ID, err)
	}
	if updated == 0 {
		utils.LogInfo(fmt.Sprintf("No payment record yet for subscription %s, nothing to update", sub.ID))
	}
	return nil
}

// schedulePlanID extracts the catalog plan the schedule belongs to from
// its metadata.
func schedulePlanID(schedule *stripe.SubscriptionSchedule) string {
	if schedule.Metadata == nil {
		return ""
	}
	return schedule.Metadata["plan_id"]
}

// handleSchedulePhase writes the first phase bounds of the schedule onto
// the referenced plan. Repeated deliveries write the same values, so the
// operation is idempotent.
func (h *Handler) handleSchedulePhase(event stripe.Event) error {
	var schedule stripe.SubscriptionSchedule
	if err := json.Unmarshal(event.Data.Raw, &schedule); err != nil {
		return fmt.Errorf("decode subscription schedule: %w", err)
	}

	planID := schedulePlanID(&schedule)
	if planID == "" {
		utils.LogWarn(fmt.Sprintf("Subscription schedule %s carries no plan_id metadata, ignoring", schedule.ID))
		return nil
	}
	if len(schedule.Phases) == 0 {
		utils.LogWarn(fmt.Sprintf("Subscription schedule %s has no phases, ignoring", schedule.ID))
		return nil
	}

	start := unixTime(schedule.Phases[0].StartDate)
	end := unixTime(schedule.Phases[0].EndDate)
	if err := store.UpdatePlanPeriod(planID, start, end); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.LogWarn(fmt.Sprintf("Subscription schedule %s references unknown plan %s", schedule.ID, planID))
			return nil
		}
		return fmt.Errorf("update plan %s period: %w", planID, err)
	}

	utils.LogSuccess(fmt.Sprintf("Plan %s billing period updated from schedule %s", planID, schedule.ID))
	return nil
}

// handleScheduleExpiring surfaces the upcoming expiry to the renewal
// notification hook. No ledger state changes here.
func (h *Handler) handleScheduleExpiring(event stripe.Event) error {
	var schedule stripe.SubscriptionSchedule
	if err := json.Unmarshal(event.Data.Raw, &schedule); err != nil {
		return fmt.Errorf("decode subscription schedule: %w", err)
	}

	planID := schedulePlanID(&schedule)
	expiresAt := scheduleExpiry(&schedule)
	utils.LogInfo(fmt.Sprintf("Subscription schedule %s for plan %s expires at %s", schedule.ID, planID, expiresAt))

	if h.OnScheduleExpiring != nil && planID != "" {
		h.OnScheduleExpiring(planID, expiresAt)
	}
	return nil
}

func scheduleExpiry(schedule *stripe.SubscriptionSchedule) time.Time {
	if schedule.CurrentPhase != nil && schedule.CurrentPhase.EndDate != 0 {
		return time.Unix(schedule.CurrentPhase.EndDate, 0).UTC()
	}
	if n := len(schedule.Phases); n > 0 {
		return time.Unix(schedule.Phases[n-1].EndDate, 0).UTC()
	}
	return time.Time{}
}
