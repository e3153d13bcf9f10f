package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	methodPayPal  = "paypal"
	methodCard    = "card"
	methodOffline = "offline"
)

// Service implements the PayPal, card-intent and offline payment paths.
type Service struct {
	orders  Orders
	paypal  PayPal
	intents CardIntents
	tracer  trace.Tracer

	captured metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates a payment Service.
func NewService(
	orders Orders,
	paypal PayPal,
	intents CardIntents,
	meter metric.Meter,
	tracer trace.Tracer,
) (*Service, error) {
	captured, err := meter.Int64Counter("shop.payments.captured",
		metric.WithDescription("Orders moved to paid"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "captured counter")
	}
	rejected, err := meter.Int64Counter("shop.payments.rejected",
		metric.WithDescription("Payment attempts rejected"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}

	return &Service{
		orders:   orders,
		paypal:   paypal,
		intents:  intents,
		tracer:   tracer,
		captured: captured,
		rejected: rejected,
	}, nil
}

// CreatePayPalOrder requests a PayPal order for the order total and stores
// its id as the pending payment marker.
func (s *Service) CreatePayPalOrder(ctx context.Context, p *auth.Principal, orderID string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "payment.CreatePayPalOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	o, err := s.orders.Get(ctx, p, orderID)
	if err != nil {
		return "", err
	}
	if o.IsPaid {
		return "", order.ErrAlreadyPaid
	}

	providerID, err := s.paypal.CreateOrder(ctx, o.Prices.Total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create paypal order")
		return "", apperr.Provider("PayPal order could not be created", err)
	}

	if err := s.orders.SetPending(ctx, orderID, providerID); err != nil {
		return "", err
	}

	zctx.From(ctx).Info("PayPal order created",
		zap.String("order_id", orderID),
		zap.String("paypal_order_id", providerID),
	)
	return providerID, nil
}

// ApprovePayPalOrder captures a PayPal order and, when the capture matches the
// pending marker and completed, runs the paid-transition.
func (s *Service) ApprovePayPalOrder(ctx context.Context, p *auth.Principal, orderID, providerOrderID string) (*order.Order, error) {
	ctx, span := s.tracer.Start(ctx, "payment.ApprovePayPalOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()
	lg := zctx.From(ctx).With(zap.String("order_id", orderID))

	o, err := s.orders.Get(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return nil, order.ErrAlreadyPaid
	}
	pending := o.PendingProviderID()
	if pending == "" {
		return nil, ErrNotAwaitingCapture
	}

	capture, err := s.paypal.CaptureOrder(ctx, providerOrderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capture paypal order")
		s.reject(ctx, "capture_failed")
		return nil, apperr.Provider("Error in PayPal payment", err)
	}
	if capture.ID != pending || capture.Status != StatusCompleted {
		lg.Warn("PayPal capture rejected",
			zap.String("pending_id", pending),
			zap.String("capture_id", capture.ID),
			zap.String("status", capture.Status),
		)
		span.SetStatus(codes.Error, "capture mismatch")
		s.reject(ctx, "mismatch")
		return nil, ErrPayPalRejected
	}

	paid, err := s.orders.MarkPaid(ctx, orderID, order.PaymentResult{
		ID:           capture.ID,
		Status:       capture.Status,
		EmailAddress: capture.PayerEmail,
		PricePaid:    capture.Amount,
	})
	if err != nil {
		return nil, err
	}
	s.capture(ctx, methodPayPal)
	return paid, nil
}

// CreatePaymentIntent opens a card payment intent for the order total.
func (s *Service) CreatePaymentIntent(ctx context.Context, p *auth.Principal, orderID string) (*Intent, error) {
	ctx, span := s.tracer.Start(ctx, "payment.CreatePaymentIntent",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	o, err := s.orders.Get(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return nil, order.ErrAlreadyPaid
	}

	intent, err := s.intents.CreateIntent(ctx, ToCents(o.Prices.Total), o.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payment intent")
		return nil, apperr.Provider("Payment could not be started", err)
	}
	return intent, nil
}

// HandleCardWebhook verifies a card provider webhook and settles the order
// named by a successful charge. Duplicate deliveries for an already paid order
// are acknowledged without side effects; other event types are ignored.
func (s *Service) HandleCardWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "payment.HandleCardWebhook")
	defer span.End()
	lg := zctx.From(ctx)

	ev, err := s.intents.ParseEvent(payload, signature)
	if err != nil {
		lg.Warn("Webhook rejected", zap.Error(err))
		s.reject(ctx, "signature")
		return "", ErrBadSignature
	}
	span.SetAttributes(attribute.String("event.type", ev.Type))

	if ev.Type != EventChargeSucceeded {
		lg.Debug("Webhook event ignored", zap.String("type", ev.Type), zap.String("event_id", ev.ID))
		return "Event ignored", nil
	}
	if ev.OrderID == "" {
		lg.Warn("Charge without order id", zap.String("charge_id", ev.ChargeID))
		return "Event ignored", nil
	}

	_, err = s.orders.MarkPaid(ctx, ev.OrderID, order.PaymentResult{
		ID:           ev.ChargeID,
		Status:       StatusCompleted,
		EmailAddress: ev.Email,
		PricePaid:    FromCents(ev.AmountCents),
	})
	switch {
	case errors.Is(err, order.ErrAlreadyPaid):
		lg.Info("Duplicate charge event", zap.String("order_id", ev.OrderID), zap.String("event_id", ev.ID))
		return "Order already paid", nil
	case err != nil:
		return "", err
	}

	s.capture(ctx, methodCard)
	return "Order marked as paid", nil
}

// MarkPaidOffline records a cash-on-delivery payment from the back office.
func (s *Service) MarkPaidOffline(ctx context.Context, orderID string) (*order.Order, error) {
	paid, err := s.orders.MarkPaid(ctx, orderID, order.PaymentResult{Status: StatusCompleted})
	if err != nil {
		return nil, err
	}
	s.capture(ctx, methodOffline)
	return paid, nil
}

// MarkDelivered records the delivery of a paid order.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*order.Order, error) {
	return s.orders.MarkDelivered(ctx, orderID)
}

func (s *Service) capture(ctx context.Context, method string) {
	s.captured.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

func (s *Service) reject(ctx context.Context, reason string) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
