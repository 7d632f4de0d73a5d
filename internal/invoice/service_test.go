package invoice_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openbill/openbill/internal/invoice"
)

var testNow = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func stubTokens() invoice.TokenSource {
	return invoice.TokenSource{
		Payment: func() (string, error) { return strings.Repeat("a", 64), nil },
		View:    func() (string, error) { return strings.Repeat("v", 64), nil },
	}
}

func newService(repo *invoice.MockRepository, mailer *invoice.MockMailer, opts ...invoice.Option) *invoice.Service {
	base := []invoice.Option{
		invoice.WithClock(func() time.Time { return testNow }),
		invoice.WithTokenSource(stubTokens()),
	}

	return invoice.NewService(repo, mailer, "https://billing.example.com", "INV-", append(base, opts...)...)
}

func TestService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := invoice.NewMockRepository(ctrl)
	repo.EXPECT().
		CreateInvoice(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv *invoice.Invoice) error {
			inv.ID = uuid.New()
			inv.CreatedAt = testNow
			return nil
		})

	svc := newService(repo, invoice.NewMockMailer(ctrl))

	userID := uuid.New()

	got, err := svc.Create(context.Background(), userID, invoice.CreateParams{
		ClientName:  "Acme Corp",
		ClientEmail: "billing@acme.test",
		Tax:         d("10"),
		Items: []invoice.ItemParams{
			{Description: "Consulting", Quantity: d("2"), UnitPrice: d("50")},
			{Description: "Design", Quantity: d("1"), UnitPrice: d("100")},
		},
	})
	require.NoError(t, err)

	assert.True(t, got.Subtotal.Equal(d("200")), "subtotal = %s", got.Subtotal)
	assert.True(t, got.Total.Equal(d("210")), "total = %s", got.Total)
	assert.True(t, got.AmountPaid.IsZero())
	assert.Equal(t, invoice.StatusDraft, got.Status)
	assert.Equal(t, userID, got.UserID)

	require.Len(t, got.Items, 2)
	assert.True(t, got.Items[0].Amount.Equal(d("100")))
	assert.True(t, got.Items[1].Amount.Equal(d("100")))

	assert.Regexp(t, regexp.MustCompile(`^INV-202608-\d{4}$`), got.Number)
}

func TestService_Create_RetriesOnNumberCollision(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := invoice.NewMockRepository(ctrl)
	repo.EXPECT().
		CreateInvoice(gomock.Any(), gomock.Any()).
		Return(invoice.ErrDuplicateNumber)
	repo.EXPECT().
		CreateInvoice(gomock.Any(), gomock.Any()).
		Return(nil)

	svc := newService(repo, invoice.NewMockMailer(ctrl))

	_, err := svc.Create(context.Background(), uuid.New(), invoice.CreateParams{
		Items: []invoice.ItemParams{{Description: "x", Quantity: d("1"), UnitPrice: d("1")}},
	})
	assert.NoError(t, err)
}

func TestService_Create_GivesUpAfterRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := invoice.NewMockRepository(ctrl)
	repo.EXPECT().
		CreateInvoice(gomock.Any(), gomock.Any()).
		Return(invoice.ErrDuplicateNumber).
		Times(3)

	svc := newService(repo, invoice.NewMockMailer(ctrl))

	_, err := svc.Create(context.Background(), uuid.New(), invoice.CreateParams{})
	assert.ErrorIs(t, err, invoice.ErrDuplicateNumber)
}

func TestService_Send(t *testing.T) {
	userID := uuid.New()
	invID := uuid.New()

	t.Run("FirstSendAssignsTokens", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		mailer := invoice.NewMockMailer(ctrl)

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(&invoice.Invoice{
				ID:          invID,
				UserID:      userID,
				Status:      invoice.StatusDraft,
				ClientEmail: "client@acme.test",
				Total:       d("210"),
			}, nil)

		mailer.EXPECT().
			SendInvoice(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *invoice.Invoice, viewURL, payURL string) error {
				assert.Equal(t, "https://billing.example.com/i/"+strings.Repeat("v", 64), viewURL)
				assert.Equal(t, "https://billing.example.com/pay/"+strings.Repeat("a", 64), payURL)
				return nil
			})

		repo.EXPECT().
			MarkSent(gomock.Any(), invID, gomock.Any(), gomock.Any(), "client@acme.test", testNow).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, paymentToken, viewToken *string, _ string, _ time.Time) error {
				require.NotNil(t, paymentToken)
				require.NotNil(t, viewToken)
				assert.Len(t, *paymentToken, 64)
				assert.Len(t, *viewToken, 64)
				return nil
			})

		svc := newService(repo, mailer, invoice.WithCheckout(invoice.NewMockCheckoutProvider(ctrl)))

		got, err := svc.Send(context.Background(), userID, invID)
		require.NoError(t, err)

		assert.Equal(t, invoice.StatusSent, got.Status)
		require.NotNil(t, got.EmailSentAt)
		assert.Equal(t, testNow, *got.EmailSentAt)
	})

	t.Run("ResendReusesExistingTokens", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		existingPay := strings.Repeat("b", 64)
		existingView := strings.Repeat("c", 64)

		repo := invoice.NewMockRepository(ctrl)
		mailer := invoice.NewMockMailer(ctrl)

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(&invoice.Invoice{
				ID:           invID,
				Status:       invoice.StatusSent,
				ClientEmail:  "client@acme.test",
				PaymentToken: &existingPay,
				ViewToken:    &existingView,
			}, nil)

		mailer.EXPECT().
			SendInvoice(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil)

		repo.EXPECT().
			MarkSent(gomock.Any(), invID, &existingPay, &existingView, "client@acme.test", testNow).
			Return(nil)

		// Token generation must not run at all on a resend.
		failing := invoice.TokenSource{
			Payment: func() (string, error) { return "", errors.New("unexpected payment token generation") },
			View:    func() (string, error) { return "", errors.New("unexpected view token generation") },
		}

		svc := newService(repo, mailer,
			invoice.WithCheckout(invoice.NewMockCheckoutProvider(ctrl)),
			invoice.WithTokenSource(failing),
		)

		got, err := svc.Send(context.Background(), userID, invID)
		require.NoError(t, err)
		assert.Equal(t, &existingPay, got.PaymentToken)
		assert.Equal(t, &existingView, got.ViewToken)
	})

	t.Run("NoCheckoutSkipsPaymentToken", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		mailer := invoice.NewMockMailer(ctrl)

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusDraft, ClientEmail: "c@x.test"}, nil)

		mailer.EXPECT().
			SendInvoice(gomock.Any(), gomock.Any(), gomock.Any(), "").
			Return(nil)

		repo.EXPECT().
			MarkSent(gomock.Any(), invID, gomock.Nil(), gomock.Not(gomock.Nil()), "c@x.test", testNow).
			Return(nil)

		svc := newService(repo, mailer)

		got, err := svc.Send(context.Background(), userID, invID)
		require.NoError(t, err)
		assert.Nil(t, got.PaymentToken)
		assert.NotNil(t, got.ViewToken)
	})

	t.Run("CancelledInvoiceConflicts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusCancelled}, nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		_, err := svc.Send(context.Background(), userID, invID)
		assert.ErrorIs(t, err, invoice.ErrCancelled)
	})

	t.Run("MailerFailureDoesNotMarkSent", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		mailer := invoice.NewMockMailer(ctrl)

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusDraft, ClientEmail: "c@x.test"}, nil)

		mailer.EXPECT().
			SendInvoice(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("smtp down"))

		svc := newService(repo, mailer)

		_, err := svc.Send(context.Background(), userID, invID)
		assert.Error(t, err)
	})
}

func TestService_Cancel(t *testing.T) {
	userID := uuid.New()
	invID := uuid.New()

	type testCase struct {
		name      string
		setupMock func(m *invoice.MockRepository)
		wantErr   error
	}

	tests := []testCase{
		{
			name: "PaidInvoiceCannotBeCancelled",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), userID, invID).
					Return(&invoice.Invoice{ID: invID, Status: invoice.StatusPaid}, nil)
			},
			wantErr: invoice.ErrCancelPaid,
		},
		{
			name: "AlreadyCancelled",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), userID, invID).
					Return(&invoice.Invoice{ID: invID, Status: invoice.StatusCancelled}, nil)
			},
			wantErr: invoice.ErrAlreadyCancelled,
		},
		{
			name: "SentInvoiceCancels",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), userID, invID).
					Return(&invoice.Invoice{ID: invID, Status: invoice.StatusSent}, nil)
				m.EXPECT().
					MarkCancelled(gomock.Any(), invID).
					Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := invoice.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := newService(repo, invoice.NewMockMailer(ctrl))

			got, err := svc.Cancel(context.Background(), userID, invID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, invoice.StatusCancelled, got.Status)
		})
	}
}

func TestService_MarkPaid(t *testing.T) {
	userID := uuid.New()
	invID := uuid.New()

	type testCase struct {
		name      string
		setupMock func(m *invoice.MockRepository)
		wantErr   error
	}

	tests := []testCase{
		{
			name: "CancelledInvoiceCannotBePaid",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), userID, invID).
					Return(&invoice.Invoice{ID: invID, Status: invoice.StatusCancelled}, nil)
			},
			wantErr: invoice.ErrCancelled,
		},
		{
			name: "AlreadyPaid",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), userID, invID).
					Return(&invoice.Invoice{ID: invID, Status: invoice.StatusPaid}, nil)
			},
			wantErr: invoice.ErrAlreadyPaid,
		},
		{
			name: "SentInvoicePays",
			setupMock: func(m *invoice.MockRepository) {
				m.EXPECT().
					GetInvoice(gomock.Any(), userID, invID).
					Return(&invoice.Invoice{ID: invID, Status: invoice.StatusSent}, nil)
				m.EXPECT().
					MarkPaid(gomock.Any(), invID, "bank_transfer", testNow).
					Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := invoice.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := newService(repo, invoice.NewMockMailer(ctrl))

			got, err := svc.MarkPaid(context.Background(), userID, invID, "bank_transfer")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, invoice.StatusPaid, got.Status)
			require.NotNil(t, got.PaidAt)
			assert.Equal(t, testNow, *got.PaidAt)
		})
	}
}

func TestService_RecordPayment(t *testing.T) {
	userID := uuid.New()
	invID := uuid.New()

	sentAt := testNow.Add(-24 * time.Hour)

	base := func() *invoice.Invoice {
		return &invoice.Invoice{
			ID:          invID,
			Status:      invoice.StatusSent,
			Total:       d("210"),
			AmountPaid:  decimal.Zero,
			EmailSentAt: &sentAt,
		}
	}

	t.Run("PartialThenFull", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		svc := newService(repo, invoice.NewMockMailer(ctrl))

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(base(), nil)
		repo.EXPECT().
			AddPayment(gomock.Any(), gomock.Any(), gomock.Any(), invoice.StatusSent, gomock.Nil()).
			DoAndReturn(func(_ context.Context, p *invoice.Payment, amountPaid decimal.Decimal, _ invoice.Status, _ *time.Time) error {
				assert.True(t, p.Amount.Equal(d("100")))
				assert.True(t, amountPaid.Equal(d("100")))
				return nil
			})

		got, err := svc.RecordPayment(context.Background(), userID, invID, invoice.PaymentParams{
			Amount: d("100"),
			Method: "bank_transfer",
		})
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusSent, got.Status)
		assert.Equal(t, invoice.DisplayPartial, svc.Display(got))

		partial := base()
		partial.AmountPaid = d("100")

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(partial, nil)
		repo.EXPECT().
			AddPayment(gomock.Any(), gomock.Any(), gomock.Any(), invoice.StatusPaid, gomock.Not(gomock.Nil())).
			DoAndReturn(func(_ context.Context, p *invoice.Payment, amountPaid decimal.Decimal, _ invoice.Status, paidAt *time.Time) error {
				assert.True(t, p.Amount.Equal(d("110")))
				assert.True(t, amountPaid.Equal(d("210")))
				assert.Equal(t, testNow, *paidAt)
				return nil
			})

		got, err = svc.RecordPayment(context.Background(), userID, invID, invoice.PaymentParams{
			Amount: d("110"),
			Method: "bank_transfer",
		})
		require.NoError(t, err)
		assert.Equal(t, invoice.StatusPaid, got.Status)
		assert.True(t, got.AmountPaid.Equal(got.Total))
		assert.Equal(t, invoice.DisplayPaid, svc.Display(got))
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := newService(invoice.NewMockRepository(ctrl), invoice.NewMockMailer(ctrl))

		_, err := svc.RecordPayment(context.Background(), userID, invID, invoice.PaymentParams{Amount: d("0")})
		assert.ErrorIs(t, err, invoice.ErrInvalidAmount)

		_, err = svc.RecordPayment(context.Background(), userID, invID, invoice.PaymentParams{Amount: d("-5")})
		assert.ErrorIs(t, err, invoice.ErrInvalidAmount)
	})

	t.Run("RejectsOverpayment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)

		partial := base()
		partial.AmountPaid = d("200")

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(partial, nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		_, err := svc.RecordPayment(context.Background(), userID, invID, invoice.PaymentParams{Amount: d("10.01")})
		assert.ErrorIs(t, err, invoice.ErrOverpayment)
	})

	t.Run("CancelledInvoiceConflicts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)

		cancelled := base()
		cancelled.Status = invoice.StatusCancelled

		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(cancelled, nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		_, err := svc.RecordPayment(context.Background(), userID, invID, invoice.PaymentParams{Amount: d("10")})
		assert.ErrorIs(t, err, invoice.ErrCancelled)
	})
}

func TestService_TrackView(t *testing.T) {
	invID := uuid.New()
	viewToken := strings.Repeat("v", 64)

	t.Run("RejectsShortToken", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := newService(invoice.NewMockRepository(ctrl), invoice.NewMockMailer(ctrl))

		_, err := svc.TrackView(context.Background(), "short")
		assert.ErrorIs(t, err, invoice.ErrInvalidToken)
	})

	t.Run("EveryViewCounts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		current := testNow
		repo := invoice.NewMockRepository(ctrl)
		svc := invoice.NewService(repo, invoice.NewMockMailer(ctrl), "https://billing.example.com", "INV-",
			invoice.WithClock(func() time.Time { return current }),
		)

		repo.EXPECT().
			GetByViewToken(gomock.Any(), viewToken).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusSent, ViewCount: 0}, nil)
		repo.EXPECT().
			RecordView(gomock.Any(), invID, testNow).
			Return(nil)

		got, err := svc.TrackView(context.Background(), viewToken)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ViewCount)

		current = testNow.Add(time.Minute)

		repo.EXPECT().
			GetByViewToken(gomock.Any(), viewToken).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusSent, ViewCount: 1}, nil)
		repo.EXPECT().
			RecordView(gomock.Any(), invID, current).
			Return(nil)

		got, err = svc.TrackView(context.Background(), viewToken)
		require.NoError(t, err)
		assert.Equal(t, 2, got.ViewCount)
		require.NotNil(t, got.LastViewedAt)
		assert.Equal(t, current, *got.LastViewedAt)
	})

	t.Run("CancelledInvoiceStillTracked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)

		repo.EXPECT().
			GetByViewToken(gomock.Any(), viewToken).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusCancelled, ViewCount: 3}, nil)
		repo.EXPECT().
			RecordView(gomock.Any(), invID, testNow).
			Return(nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		got, err := svc.TrackView(context.Background(), viewToken)
		require.NoError(t, err)
		assert.Equal(t, 4, got.ViewCount)
	})
}

func TestService_Checkout(t *testing.T) {
	invID := uuid.New()
	payToken := strings.Repeat("a", 64)

	t.Run("DisabledWithoutProvider", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := newService(invoice.NewMockRepository(ctrl), invoice.NewMockMailer(ctrl))

		_, err := svc.Checkout(context.Background(), payToken)
		assert.ErrorIs(t, err, invoice.ErrPaymentsDisabled)
	})

	t.Run("RejectsMalformedToken", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := newService(invoice.NewMockRepository(ctrl), invoice.NewMockMailer(ctrl),
			invoice.WithCheckout(invoice.NewMockCheckoutProvider(ctrl)))

		_, err := svc.Checkout(context.Background(), "abc")
		assert.ErrorIs(t, err, invoice.ErrInvalidToken)
	})

	t.Run("GuardsPaidAndCancelled", func(t *testing.T) {
		for status, wantErr := range map[invoice.Status]error{
			invoice.StatusPaid:      invoice.ErrAlreadyPaid,
			invoice.StatusCancelled: invoice.ErrCancelled,
		} {
			ctrl := gomock.NewController(t)

			repo := invoice.NewMockRepository(ctrl)
			repo.EXPECT().
				GetByPaymentToken(gomock.Any(), payToken).
				Return(&invoice.Invoice{ID: invID, Status: status}, nil)

			svc := newService(repo, invoice.NewMockMailer(ctrl),
				invoice.WithCheckout(invoice.NewMockCheckoutProvider(ctrl)))

			_, err := svc.Checkout(context.Background(), payToken)
			assert.ErrorIs(t, err, wantErr)

			ctrl.Finish()
		}
	})

	t.Run("PersistsSessionAndReturnsURL", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		provider := invoice.NewMockCheckoutProvider(ctrl)

		repo.EXPECT().
			GetByPaymentToken(gomock.Any(), payToken).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusSent, Total: d("210")}, nil)

		provider.EXPECT().
			CreateSession(gomock.Any(), gomock.Any()).
			Return(&invoice.CheckoutSession{
				ID:              "cs_test_123",
				PaymentIntentID: "pi_test_456",
				URL:             "https://checkout.stripe.com/c/pay/cs_test_123",
			}, nil)

		repo.EXPECT().
			SetCheckoutSession(gomock.Any(), invID, "cs_test_123", "pi_test_456").
			Return(nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl), invoice.WithCheckout(provider))

		url, err := svc.Checkout(context.Background(), payToken)
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", url)
	})
}

func TestService_FinalizeCheckout(t *testing.T) {
	invID := uuid.New()

	t.Run("AlreadyPaidIsNoop", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetByCheckoutSession(gomock.Any(), "cs_test_123").
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusPaid}, nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		assert.NoError(t, svc.FinalizeCheckout(context.Background(), "cs_test_123"))
	})

	t.Run("RecordsRemainingBalance", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetByCheckoutSession(gomock.Any(), "cs_test_123").
			Return(&invoice.Invoice{
				ID:         invID,
				Status:     invoice.StatusSent,
				Total:      d("210"),
				AmountPaid: d("100"),
			}, nil)

		repo.EXPECT().
			AddPayment(gomock.Any(), gomock.Any(), gomock.Any(), invoice.StatusPaid, gomock.Not(gomock.Nil())).
			DoAndReturn(func(_ context.Context, p *invoice.Payment, amountPaid decimal.Decimal, _ invoice.Status, _ *time.Time) error {
				assert.True(t, p.Amount.Equal(d("110")))
				assert.Equal(t, "card", p.Method)
				assert.Equal(t, "cs_test_123", p.Reference)
				assert.True(t, amountPaid.Equal(d("210")))
				return nil
			})

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		assert.NoError(t, svc.FinalizeCheckout(context.Background(), "cs_test_123"))
	})

	t.Run("CancelledInvoiceIsNotSettled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// Cancelled after the session was created; the confirmation must
		// not write a payment or flip the status.
		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetByCheckoutSession(gomock.Any(), "cs_test_123").
			Return(&invoice.Invoice{
				ID:     invID,
				Status: invoice.StatusCancelled,
				Total:  d("210"),
			}, nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		err := svc.FinalizeCheckout(context.Background(), "cs_test_123")
		assert.ErrorIs(t, err, invoice.ErrCancelled)
	})

	t.Run("NothingRemainingSkipsLedgerRow", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetByCheckoutSession(gomock.Any(), "cs_test_123").
			Return(&invoice.Invoice{
				ID:         invID,
				Status:     invoice.StatusSent,
				Total:      d("210"),
				AmountPaid: d("210"),
			}, nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		assert.NoError(t, svc.FinalizeCheckout(context.Background(), "cs_test_123"))
	})
}

func TestService_Update(t *testing.T) {
	userID := uuid.New()
	invID := uuid.New()

	t.Run("OnlyDraftsEditable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(&invoice.Invoice{ID: invID, Status: invoice.StatusSent}, nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		_, err := svc.Update(context.Background(), userID, invID, invoice.UpdateParams{})
		assert.ErrorIs(t, err, invoice.ErrNotDraft)
	})

	t.Run("RecomputesTotals", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := invoice.NewMockRepository(ctrl)
		repo.EXPECT().
			GetInvoice(gomock.Any(), userID, invID).
			Return(&invoice.Invoice{
				ID:       invID,
				Status:   invoice.StatusDraft,
				Subtotal: d("50"),
				Tax:      d("5"),
				Total:    d("55"),
			}, nil)
		repo.EXPECT().
			UpdateInvoice(gomock.Any(), gomock.Any()).
			Return(nil)

		svc := newService(repo, invoice.NewMockMailer(ctrl))

		tax := d("10")

		got, err := svc.Update(context.Background(), userID, invID, invoice.UpdateParams{
			Tax: &tax,
			Items: []invoice.ItemParams{
				{Description: "Consulting", Quantity: d("3"), UnitPrice: d("40")},
			},
		})
		require.NoError(t, err)
		assert.True(t, got.Subtotal.Equal(d("120")))
		assert.True(t, got.Total.Equal(d("130")))
	})
}
