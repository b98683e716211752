// Package billing integrates Stripe checkout with plan assignment.
package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	billingportalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"gorm.io/gorm"
)

// StripeConfig holds Stripe configuration
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceMember   string
	PriceBusiness string
	SuccessURL    string
	CancelURL     string
}

// Service handles Stripe billing operations
type Service struct {
	db     *gorm.DB
	config *StripeConfig
	logger logger.Logger
}

// NewService creates a new billing service
func NewService(db *gorm.DB, config *StripeConfig, log logger.Logger) *Service {
	stripe.Key = config.SecretKey

	if log == nil {
		log = logger.Default()
	}
	return &Service{db: db, config: config, logger: log}
}

// CreateCheckoutSession creates a Stripe checkout session for upgrading
// the given account to plan
func (s *Service) CreateCheckoutSession(ctx context.Context, userID, plan string) (*models.CheckoutResponse, error) {
	priceID, err := s.getPriceIDForPlan(plan)
	if err != nil {
		return nil, err
	}

	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var customerID string
	if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
		customerID = *u.StripeCustomerID
	} else {
		params := &stripe.CustomerParams{
			Email: stripe.String(u.Email),
			Metadata: map[string]string{
				"user_id": userID,
			},
		}
		cust, err := customer.New(params)
		if err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		customerID = cust.ID

		err = s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", userID).
			Update("stripe_customer_id", customerID).Error
		if err != nil {
			return nil, fmt.Errorf("failed to save customer ID: %w", err)
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(userID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.SuccessURL),
		CancelURL:  stripe.String(s.config.CancelURL),
		Metadata: map[string]string{
			"user_id": userID,
			"plan":    plan,
		},
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &models.CheckoutResponse{
		SessionID: sess.ID,
		URL:       sess.URL,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// CreateCustomerPortalSession creates a Stripe customer portal session
func (s *Service) CreateCustomerPortalSession(ctx context.Context, userID, returnURL string) (*models.CustomerPortalResponse, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.StripeCustomerID == nil || *u.StripeCustomerID == "" {
		return nil, fmt.Errorf("user has no Stripe customer ID")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*u.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	}

	sess, err := billingportalsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create portal session: %w", err)
	}

	return &models.CustomerPortalResponse{URL: sess.URL}, nil
}

// HandleWebhook processes Stripe webhook events
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("stripe webhook received", "type", event.Type)

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		return s.handleInvoicePaymentFailed(ctx, event)
	default:
		s.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	return nil
}

// handleCheckoutCompleted applies a paid session through the same path
// the client-driven reconcile uses. Both paths are idempotent on the
// session id, so arrival order does not matter.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}

	u, err := s.applyPaidSession(ctx, &sess, "")
	if err != nil {
		return fmt.Errorf("failed to apply checkout session %s: %w", sess.ID, err)
	}

	s.logger.Info("checkout completed",
		"session_id", sess.ID,
		"user_id", u.ID,
		"plan", u.Plan)
	return nil
}

// handleSubscriptionDeleted downgrades a business account back to the
// base member plan when its subscription ends
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	if sub.Customer == nil {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("stripe_customer_id = ? AND plan = ?", sub.Customer.ID, plans.PlanBusiness).
		Update("plan", plans.PlanMember)
	if res.Error != nil {
		return fmt.Errorf("failed to downgrade account: %w", res.Error)
	}

	s.logger.Info("subscription deleted",
		"subscription_id", sub.ID,
		"customer_id", sub.Customer.ID,
		"accounts_downgraded", res.RowsAffected)
	return nil
}

func (s *Service) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	s.logger.Warn("invoice payment failed", "invoice_id", invoice.ID)
	return nil
}

func (s *Service) getPriceIDForPlan(plan string) (string, error) {
	switch plan {
	case plans.PlanMember:
		return s.config.PriceMember, nil
	case plans.PlanBusiness:
		return s.config.PriceBusiness, nil
	default:
		return "", fmt.Errorf("invalid plan: %s", plan)
	}
}
