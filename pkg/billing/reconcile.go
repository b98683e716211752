package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/tileboardhq/tileboard/pkg/plans"

	"github.com/tileboardhq/tileboard/pkg/models"
	"gorm.io/gorm"
)

// Reconciliation failures the HTTP layer maps to status codes
var (
	ErrMissingSession      = errors.New("session id is required")
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrMissingSubject      = errors.New("session has no resolvable account")
)

// Reconcile verifies a completed checkout session against Stripe and
// grants the purchased plan to the right account. authedUserID is the
// caller's account when the request carried a valid token, empty when
// the buyer checked out as a guest.
func (s *Service) Reconcile(ctx context.Context, sessionID, authedUserID string) (*models.User, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	sess, err := checkoutsession.Get(sessionID, nil)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch checkout session: %w", err)
	}

	return s.applyPaidSession(ctx, sess, authedUserID)
}

// applyPaidSession grants the plan a paid session bought. It resolves
// the target account in priority order: the authenticated caller, the
// account referenced by the session, then the checkout email. An email
// that collides with an existing account merges into that account
// instead of failing. The purchase ledger is keyed by session id, so
// replays of the same session change nothing.
func (s *Service) applyPaidSession(ctx context.Context, sess *stripe.CheckoutSession, authedUserID string) (*models.User, error) {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, ErrPaymentNotCompleted
	}

	plan := s.planForSession(sess)

	u, err := s.resolveAccount(ctx, sess, authedUserID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"plan":      plan,
		"is_member": true,
	}
	if sess.Customer != nil && sess.Customer.ID != "" {
		updates["stripe_customer_id"] = sess.Customer.ID
	}
	if !u.MigrationCompleted {
		// signal the client to upload its guest snapshot
		updates["migration_needed"] = true
	}

	err = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to apply plan: %w", err)
	}

	u.Plan = plan
	u.IsMember = true
	if !u.MigrationCompleted {
		u.MigrationNeeded = true
	}

	// the ledger is best-effort: the plan grant above already persisted,
	// so a failed append must not fail the reconciliation
	if err := s.recordPurchase(ctx, sess, u.ID, plan); err != nil {
		s.logger.Error("failed to record purchase",
			"session_id", sess.ID, "user_id", u.ID, "error", err)
	}

	return u, nil
}

// planForSession derives the purchased plan from the session metadata,
// falling back to a price-id match for sessions created outside this
// service. Unknown prices grant the base member plan.
func (s *Service) planForSession(sess *stripe.CheckoutSession) string {
	switch sess.Metadata["plan"] {
	case plans.PlanBusiness:
		return plans.PlanBusiness
	case plans.PlanMember:
		return plans.PlanMember
	}

	if sess.LineItems != nil {
		for _, li := range sess.LineItems.Data {
			if li.Price == nil {
				continue
			}
			switch li.Price.ID {
			case s.config.PriceBusiness:
				return plans.PlanBusiness
			case s.config.PriceMember:
				return plans.PlanMember
			}
		}
	}

	return plans.PlanMember
}

// resolveAccount finds or creates the account a paid session belongs to
func (s *Service) resolveAccount(ctx context.Context, sess *stripe.CheckoutSession, authedUserID string) (*models.User, error) {
	if authedUserID != "" {
		var u models.User
		err := s.db.WithContext(ctx).First(&u, "id = ?", authedUserID).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load account: %w", err)
		}
		return &u, nil
	}

	if refID := sessionUserID(sess); refID != "" {
		var u models.User
		err := s.db.WithContext(ctx).First(&u, "id = ?", refID).Error
		if err == nil {
			return &u, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load account: %w", err)
		}
		// stale reference, fall through to the email path
	}

	email := sessionEmail(sess)
	if email == "" {
		return nil, ErrMissingSubject
	}

	u := &models.User{
		ID:       uuid.NewString(),
		Email:    email,
		Name:     sessionName(sess),
		Plan:     plans.PlanMember,
		IsMember: true,
	}
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// the buyer already has an account under this email; merge into it
		var existing models.User
		if err := s.db.WithContext(ctx).First(&existing, "email = ?", email).Error; err != nil {
			return nil, fmt.Errorf("failed to load account by email: %w", err)
		}
		return &existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created from checkout", "user_id", u.ID)
	return u, nil
}

// recordPurchase appends to the purchase ledger, at most once per session
func (s *Service) recordPurchase(ctx context.Context, sess *stripe.CheckoutSession, userID, plan string) error {
	p := &models.Purchase{
		ID:              uuid.NewString(),
		UserID:          userID,
		StripeSessionID: sess.ID,
		AmountTotal:     sess.AmountTotal,
		Currency:        string(sess.Currency),
		Plan:            plan,
		Status:          string(sess.PaymentStatus),
	}
	if sess.Customer != nil {
		p.StripeCustomerID = sess.Customer.ID
	}

	err := s.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// same session applied through the other path already
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}

func sessionUserID(sess *stripe.CheckoutSession) string {
	if id := sess.Metadata["user_id"]; id != "" {
		return id
	}
	return sess.ClientReferenceID
}

func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	if sess.CustomerEmail != "" {
		return sess.CustomerEmail
	}
	if sess.Customer != nil {
		return sess.Customer.Email
	}
	return ""
}

func sessionName(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil {
		return sess.CustomerDetails.Name
	}
	return ""
}
