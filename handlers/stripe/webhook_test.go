package stripe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/amitthakurameotech-cmyk/subscription-plan/testutils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	stripe "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

const testPlanID = "0b9e2c1a-83a4-4b7e-9c52-1de1a42b6a10"

func TestMain(m *testing.M) {
	testutils.InitTestMain()

	log.SetOutput(io.Discard)

	exitCode := m.Run()

	log.SetOutput(os.Stdout)

	os.Exit(exitCode)
}

// fakeProcessor satisfies ProcessorClient without touching the network.
type fakeProcessor struct {
	paymentIntent    *stripe.PaymentIntent
	paymentIntentErr error
	checkoutSession  *stripe.CheckoutSession
	sessionErr       error

	paymentIntentCalls int
}

func (f *fakeProcessor) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.paymentIntentCalls++
	if f.paymentIntentErr != nil {
		return nil, f.paymentIntentErr
	}
	return f.paymentIntent, nil
}

func (f *fakeProcessor) GetCheckoutSession(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.checkoutSession, nil
}

func (f *fakeProcessor) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return f.checkoutSession, nil
}

func (f *fakeProcessor) GetCustomer(id string, params *stripe.CustomerParams) (*stripe.Customer, error) {
	return &stripe.Customer{ID: id}, nil
}

func (f *fakeProcessor) NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return &stripe.Customer{ID: "cus_test"}, nil
}

func newTestHandler(t *testing.T, processor *fakeProcessor) *Handler {
	verifier, err := NewSignatureVerifier(testWebhookSecret)
	if err != nil {
		t.Fatalf("Error building the verifier: %s", err)
	}
	return &Handler{verifier: verifier, processor: processor}
}

func postWebhook(r http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func eventPayload(eventType string, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":%q,"data":{"object":%s}}`, eventType, object))
}

func TestHandleWebhook_MissingSignature(t *testing.T) {
	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	resp := postWebhook(r, eventPayload("charge.succeeded", `{"id":"ch_1"}`), "")

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	payload := eventPayload("charge.succeeded", `{"id":"ch_1"}`)
	resp := postWebhook(r, payload, signPayload(payload, "whsec_wrong"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleWebhook_UnknownTypeAcknowledged(t *testing.T) {
	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	payload := eventPayload("customer.created", `{"id":"cus_1"}`)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHandleWebhook_PaymentIntentSucceededCreatesRecord(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// No record by payment intent nor by the embedded charge, so the
	// notification seeds a new one.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE payment_intent_id = \$1 (.+) FOR UPDATE`).
		WithArgs("pi_1", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE charge_id = \$1 (.+) FOR UPDATE`).
		WithArgs("ch_1", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectQuery(`INSERT INTO "payment_records" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("payment-uuid"))
	mock.ExpectCommit()

	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	object := fmt.Sprintf(`{
		"id": "pi_1",
		"amount": 10000,
		"amount_received": 10000,
		"currency": "inr",
		"metadata": {"plan_id": %q},
		"latest_charge": {
			"id": "ch_1",
			"payment_method_details": {
				"card": {"brand": "visa", "funding": "credit", "last4": "4242", "exp_month": 12, "exp_year": 2030}
			}
		}
	}`, testPlanID)
	payload := eventPayload("payment_intent.succeeded", object)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_ReplayUpdatesExistingRecord(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// A redelivery finds the record through the first strategy and merges
	// into it instead of inserting a second row.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE payment_intent_id = \$1 (.+) FOR UPDATE`).
		WithArgs("pi_1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_intent_id", "charge_id", "plan_id", "amount", "currency", "status"}).
			AddRow("payment-uuid", "pi_1", "ch_1", testPlanID, "100", "inr", "succeeded"))
	mock.ExpectExec(`UPDATE "payment_records" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	object := fmt.Sprintf(`{
		"id": "pi_1",
		"amount": 10000,
		"amount_received": 10000,
		"currency": "inr",
		"metadata": {"plan_id": %q},
		"latest_charge": {
			"id": "ch_1",
			"payment_method_details": {
				"card": {"brand": "visa", "funding": "credit", "last4": "4242", "exp_month": 12, "exp_year": 2030}
			}
		}
	}`, testPlanID)
	payload := eventPayload("payment_intent.succeeded", object)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_CheckoutSessionUnpaidCreatesPendingRecord(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE checkout_session_id = \$1 (.+) FOR UPDATE`).
		WithArgs("cs_1", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	// Browser saves may race the webhook, so the plan+amount fallback
	// runs last before inserting.
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE plan_id = \$1 AND amount = \$2 AND created_at > \$3 (.+) FOR UPDATE`).
		WithArgs(testPlanID, sqlmock.AnyArg(), sqlmock.AnyArg(), 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectQuery(`INSERT INTO "payment_records" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("payment-uuid"))
	mock.ExpectCommit()

	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	object := fmt.Sprintf(`{
		"id": "cs_1",
		"amount_total": 4999,
		"currency": "usd",
		"payment_status": "unpaid",
		"client_reference_id": %q
	}`, testPlanID)
	payload := eventPayload("checkout.session.completed", object)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_SparseIntentIsEnriched(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	processor := &fakeProcessor{
		paymentIntent: &stripe.PaymentIntent{
			ID:             "pi_2",
			AmountReceived: 500,
			Currency:       "usd",
			LatestCharge: &stripe.Charge{
				ID: "ch_2",
				PaymentMethodDetails: &stripe.ChargePaymentMethodDetails{
					Card: &stripe.ChargePaymentMethodDetailsCard{
						Brand:    "visa",
						Funding:  "debit",
						Last4:    "1881",
						ExpMonth: 4,
						ExpYear:  2031,
					},
				},
			},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE payment_intent_id = \$1 (.+) FOR UPDATE`).
		WithArgs("pi_2", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	// The charge id learned from the enrichment joins the lookup.
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE charge_id = \$1 (.+) FOR UPDATE`).
		WithArgs("ch_2", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectQuery(`INSERT INTO "payment_records" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("payment-uuid"))
	mock.ExpectCommit()

	h := newTestHandler(t, processor)
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	object := fmt.Sprintf(`{"id": "pi_2", "amount": 500, "currency": "usd", "metadata": {"plan_id": %q}}`, testPlanID)
	payload := eventPayload("payment_intent.succeeded", object)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, processor.paymentIntentCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_EnrichmentFailureDoesNotAbortMerge(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	processor := &fakeProcessor{paymentIntentErr: fmt.Errorf("stripe: connection refused")}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE payment_intent_id = \$1 (.+) FOR UPDATE`).
		WithArgs("pi_3", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectQuery(`INSERT INTO "payment_records" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("payment-uuid"))
	mock.ExpectCommit()

	h := newTestHandler(t, processor)
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	object := fmt.Sprintf(`{"id": "pi_3", "amount": 700, "currency": "usd", "metadata": {"plan_id": %q}}`, testPlanID)
	payload := eventPayload("payment_intent.succeeded", object)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_InvoicePaidWithoutIdentityIsAcknowledged(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// Nothing to look the record up by and no plan to create one: the
	// event is acknowledged so Stripe stops redelivering it.
	mock.ExpectBegin()
	mock.ExpectRollback()

	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	payload := eventPayload("invoice.paid", `{"id": "in_1", "amount_paid": 900, "currency": "usd", "parent": {"subscription_details": {"subscription": "sub_orphan"}}}`)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_ProcessingErrorReturns500(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE payment_intent_id = \$1 (.+) FOR UPDATE`).
		WithArgs("pi_4", 1).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	h := newTestHandler(t, &fakeProcessor{})
	r := testutils.SetupTestRouter()
	r.POST("/stripe/webhook", h.HandleWebhook)

	object := fmt.Sprintf(`{
		"id": "pi_4",
		"amount": 100,
		"currency": "usd",
		"metadata": {"plan_id": %q},
		"latest_charge": {"id": "ch_4", "payment_method_details": {"card": {"brand": "visa", "funding": "credit", "last4": "0004", "exp_month": 1, "exp_year": 2030}}}
	}`, testPlanID)
	payload := eventPayload("payment_intent.succeeded", object)
	resp := postWebhook(r, payload, signPayload(payload, testWebhookSecret))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoticeFromCheckoutSession_Mapping(t *testing.T) {
	raw := json.RawMessage(`{"id":"cs_9"}`)
	session := &stripe.CheckoutSession{
		ID:                "cs_9",
		AmountTotal:       4999,
		Currency:          "USD",
		PaymentStatus:     "paid",
		ClientReferenceID: testPlanID,
		PaymentIntent:     &stripe.PaymentIntent{ID: "pi_9"},
	}

	n := noticeFromCheckoutSession(session, raw)

	assert.Equal(t, "cs_9", n.checkoutSessionID)
	assert.Equal(t, "pi_9", n.paymentIntentID)
	assert.Equal(t, testPlanID, n.planID)
	assert.EqualValues(t, 4999, n.amountMinor)
	assert.False(t, n.amountAuthoritative)
	assert.True(t, n.allowFallback)
	assert.Equal(t, "succeeded", string(n.status))
}
