package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/giginltd/gigin_backend/models"
)

// NOTE: These tests are DB-free; the engine's store seams stand in for the
// models layer. They validate how reconciliation settles the payment row, not
// the crediting transaction itself.

type fakeGateway struct {
	intents map[string]*Intent
}

func (f *fakeGateway) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	return nil, errors.New("not supported in this test")
}

func (f *fakeGateway) ConfirmIntent(ctx context.Context, intentId string, paymentMethodId string) (*Intent, error) {
	return nil, errors.New("not supported in this test")
}

func (f *fakeGateway) GetIntent(ctx context.Context, intentId string) (*Intent, error) {
	intent, ok := f.intents[intentId]
	if !ok {
		return nil, errors.New("no such intent")
	}
	return intent, nil
}

func (f *fakeGateway) CreateTransfer(ctx context.Context, params TransferParams) (string, error) {
	return "", errors.New("not supported in this test")
}

func (f *fakeGateway) CreatePayout(ctx context.Context, amountPence int64, currency string, stripeAccountId string) (string, error) {
	return "", errors.New("not supported in this test")
}

func (f *fakeGateway) GetAccount(ctx context.Context, accountId string) (*ConnectedAccount, error) {
	return nil, errors.New("not supported in this test")
}

type markCall struct {
	id     string
	status models.PaymentStatus
}

func newReconcileEngine(gw Gateway, pending *models.PendingFee, cleared *models.ClearedFee) (*Engine, *[]markCall) {
	var marks []markCall
	e := NewEngine(gw, nil, quietLogger())
	e.pendingFeeByIntent = func(ctx context.Context, id string) (*models.PendingFee, error) {
		return pending, nil
	}
	e.clearedFeeByIntent = func(ctx context.Context, id string) (*models.ClearedFee, error) {
		return cleared, nil
	}
	e.markPayment = func(ctx context.Context, id string, status models.PaymentStatus, code string, msg string) error {
		marks = append(marks, markCall{id: id, status: status})
		return nil
	}
	return e, &marks
}

func succeededIntent(id string) *Intent {
	return &Intent{
		ID:     id,
		Status: IntentStatusSucceeded,
		Metadata: map[string]string{
			MetaGigId:               "gig-1",
			MetaRecipientMusicianId: "mus-1",
		},
	}
}

func TestReconcileSettlesPaymentAfterCreditAlreadyLanded(t *testing.T) {
	// First delivery credited the fee but died before flipping the payment
	// row. The replay must finish the row off, or the sweeper finds the same
	// payment again on every pass.
	gw := &fakeGateway{intents: map[string]*Intent{"pi_1": succeededIntent("pi_1")}}
	e, marks := newReconcileEngine(gw, &models.PendingFee{PaymentIntentId: "pi_1"}, nil)

	payment := &models.Payment{ID: "pi_1", Status: models.PaymentStatusPending}
	if err := e.ReconcilePayment(context.Background(), payment); err != nil {
		t.Fatal(err)
	}
	if len(*marks) != 1 || (*marks)[0].id != "pi_1" || (*marks)[0].status != models.PaymentStatusSucceeded {
		t.Fatalf("marks = %+v, want one SUCCEEDED mark for pi_1", *marks)
	}
}

func TestRedeliveredSuccessStillMarksPayment(t *testing.T) {
	// Same seam through the webhook path, with the fee already cleared.
	e, marks := newReconcileEngine(nil, nil, &models.ClearedFee{PaymentIntentId: "pi_2"})

	if err := e.HandlePaymentSucceeded(context.Background(), succeededIntent("pi_2")); err != nil {
		t.Fatal(err)
	}
	if len(*marks) != 1 || (*marks)[0].status != models.PaymentStatusSucceeded {
		t.Fatalf("marks = %+v, want one SUCCEEDED mark", *marks)
	}
}

func TestReconcileLeavesRecordedActionAlone(t *testing.T) {
	gw := &fakeGateway{intents: map[string]*Intent{
		"pi_3": {ID: "pi_3", Status: IntentStatusRequiresAction},
	}}
	e, marks := newReconcileEngine(gw, nil, nil)

	// Already recorded: rewriting would bump updated_at and keep an abandoned
	// 3DS challenge in every future sweep.
	waiting := &models.Payment{ID: "pi_3", Status: models.PaymentStatusRequiresAction}
	if err := e.ReconcilePayment(context.Background(), waiting); err != nil {
		t.Fatal(err)
	}
	if len(*marks) != 0 {
		t.Fatalf("re-marked an already recorded action wait: %+v", *marks)
	}

	// A pending row that turns out to be waiting on 3DS is recorded once.
	fresh := &models.Payment{ID: "pi_3", Status: models.PaymentStatusPending}
	if err := e.ReconcilePayment(context.Background(), fresh); err != nil {
		t.Fatal(err)
	}
	if len(*marks) != 1 || (*marks)[0].status != models.PaymentStatusRequiresAction {
		t.Fatalf("marks = %+v, want one REQUIRES_ACTION mark", *marks)
	}
}

func TestReconcileLeavesInFlightIntentAlone(t *testing.T) {
	gw := &fakeGateway{intents: map[string]*Intent{
		"pi_4": {ID: "pi_4", Status: IntentStatusProcessing},
	}}
	e, marks := newReconcileEngine(gw, nil, nil)

	payment := &models.Payment{ID: "pi_4", Status: models.PaymentStatusPending}
	if err := e.ReconcilePayment(context.Background(), payment); err != nil {
		t.Fatal(err)
	}
	if len(*marks) != 0 {
		t.Fatalf("provider still working, nothing to record: %+v", *marks)
	}
}
