package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront-cart/internal/catalog"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/feedback"
	"github.com/fjod/go_cart/storefront-cart/internal/publisher"
	"github.com/fjod/go_cart/storefront-cart/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutService turns a validated selection into a checkout session and manages
// the session until it is completed, cleared or expires.
type CheckoutService struct {
	store     *CartService
	validator *Validator
	repo      repository.CartRepository
	publisher publisher.Publisher
	discount  Discount
	newID     func() string
	settings
}

func NewCheckoutService(validator *Validator, pub publisher.Publisher, discount Discount, opts ...Option) *CheckoutService {
	if pub == nil {
		pub = publisher.Nop{}
	}
	return &CheckoutService{
		store:     validator.store,
		validator: validator,
		repo:      validator.store.repo,
		publisher: pub,
		discount:  discount,
		newID:     uuid.NewString,
		settings:  newSettings(opts),
	}
}

// CartView is the cart page: the reconciled snapshot and the summary of its selected items.
type CartView struct {
	Snapshot   domain.CartSnapshot      `json:"snapshot"`
	Summary    domain.CartSummary       `json:"summary"`
	Validation *domain.ValidationResult `json:"validation"`
}

// PreparedCheckout is the outcome of PrepareCheckoutData.
type PreparedCheckout struct {
	Session    *domain.CheckoutSession  `json:"session"`
	Validation *domain.ValidationResult `json:"validation"`
}

// SessionView is a loaded session together with what changed since it was created.
type SessionView struct {
	Session      *domain.CheckoutSession `json:"session"`
	State        domain.SessionState     `json:"state"`
	StockErrors  []domain.StockIssue     `json:"stock_errors"`
	PriceChanges []domain.PriceChange    `json:"price_changes"`
	Blocked      bool                    `json:"blocked"`
}

func (c *CheckoutService) Summarize(items []domain.SnapshotItem) domain.CartSummary {
	return Summarize(items, c.discount)
}

// ViewCart validates the whole cart and prices the selected items.
func (c *CheckoutService) ViewCart(ctx context.Context, userID string) (*CartView, error) {
	result, err := c.validator.Validate(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshot := domain.CartSnapshot{Items: result.Snapshot(), CapturedAt: c.now()}
	return &CartView{
		Snapshot:   snapshot,
		Summary:    c.Summarize(snapshot.Selected()),
		Validation: result,
	}, nil
}

// PrepareCheckoutData validates selectedIDs, or the cart's selected items when none
// are given, and creates a session from what survived.
func (c *CheckoutService) PrepareCheckoutData(ctx context.Context, userID string, selectedIDs []string) (*PreparedCheckout, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	release := c.store.locks.lock(userID)
	defer release()

	var result *domain.ValidationResult
	_, err := c.store.updateLocked(ctx, userID, func(cart *domain.Cart) (bool, error) {
		ids := selectedIDs
		if len(ids) == 0 {
			ids = cart.SelectedIDs()
		}
		if len(ids) == 0 {
			return false, errEmptySelection()
		}
		result = c.validator.reconcile(ctx, cart, ids)
		return result.Changed(), nil
	})
	if err != nil {
		return nil, err
	}

	items := result.Snapshot()
	if len(items) == 0 {
		return nil, errEmptySelection()
	}

	session, err := c.CreateCheckoutSession(ctx, userID, items, c.Summarize(items))
	if err != nil {
		return nil, err
	}
	return &PreparedCheckout{Session: session, Validation: result}, nil
}

// CreateCheckoutSession persists a new session under a fresh id.
func (c *CheckoutService) CreateCheckoutSession(ctx context.Context, userID string, items []domain.SnapshotItem, summary domain.CartSummary) (*domain.CheckoutSession, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errEmptySelection()
	}

	now := c.now()
	session := &domain.CheckoutSession{
		ID:        c.newID(),
		UserID:    userID,
		Items:     append([]domain.SnapshotItem(nil), items...),
		Summary:   summary,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.SessionTTL),
		Validated: true,
	}
	if err := c.repo.SaveSession(ctx, session); err != nil {
		c.logger.Error("failed to save checkout session", zap.String("user_id", userID), zap.Error(err))
		return nil, feedback.Storage(err, "failed to create checkout session")
	}

	c.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.Int64("final_price_cents", summary.FinalPriceCents))
	c.publish(ctx, publisher.EventSessionCreated, session)
	return session.Clone(), nil
}

// GetCheckoutSession loads a session and re-checks its items against the catalog
// without touching the session or the cart. An expired session is deleted on read.
func (c *CheckoutService) GetCheckoutSession(ctx context.Context, userID, sessionID string) (*SessionView, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	release := c.store.locks.lock(userID)
	defer release()

	return c.inspect(ctx, userID, sessionID)
}

// inspect is GetCheckoutSession for callers already holding the user's lock.
func (c *CheckoutService) inspect(ctx context.Context, userID, sessionID string) (*SessionView, error) {
	session, err := c.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if session.IsExpired(c.now()) {
		if err := c.repo.DeleteSession(ctx, sessionID); err != nil {
			c.logger.Warn("failed to delete expired session", zap.String("session_id", sessionID), zap.Error(err))
		}
		c.publish(ctx, publisher.EventSessionExpired, session)
		return nil, feedback.New(feedback.TypeValidation, feedback.CodeSessionExpired,
			"checkout session has expired, return to the cart", feedback.WithSeverity(feedback.SeverityHigh))
	}

	view := &SessionView{
		Session:      session,
		State:        domain.SessionStateCreated,
		StockErrors:  []domain.StockIssue{},
		PriceChanges: []domain.PriceChange{},
	}
	for _, item := range session.Items {
		c.recheck(ctx, item, view)
	}
	if len(view.StockErrors) > 0 {
		view.Blocked = true
		view.State = domain.SessionStateBlocked
	}
	return view, nil
}

func (c *CheckoutService) recheck(ctx context.Context, item domain.SnapshotItem, view *SessionView) {
	issue := domain.StockIssue{ProductID: item.ProductID, Requested: item.Quantity}

	product, err := c.validator.directory.GetProductByID(ctx, item.ProductID)
	switch {
	case err != nil && !errors.Is(err, catalog.ErrProductNotFound):
		issue.Reason = domain.InvalidReasonLookupFailed
		issue.Message = "product availability could not be confirmed, try again"
		issue.Retryable = true
		issue.Err = feedback.Catalog(err, item.ProductID)
	case err != nil || !product.WellFormed(item.ProductID):
		issue.Reason = domain.InvalidReasonNotFound
		issue.Message = "product is no longer available"
	case product.Stock == 0:
		issue.Reason = domain.InvalidReasonOutOfStock
		issue.Message = "product is out of stock"
	case product.Stock < item.Quantity:
		issue.Available = product.Stock
		issue.Reason = domain.InvalidReasonInsufficient
		issue.Message = fmt.Sprintf("only %d left in stock", product.Stock)
	default:
		if product.PriceCents != item.UnitPriceCents {
			view.PriceChanges = append(view.PriceChanges, domain.PriceChange{
				ProductID:     item.ProductID,
				PreviousCents: item.UnitPriceCents,
				CurrentCents:  product.PriceCents,
			})
		}
		return
	}
	view.StockErrors = append(view.StockErrors, issue)
}

// CompleteCheckoutSession consumes the session once its items are still available
// and takes the purchased items out of the live cart. Completion runs under the
// owner's lock, so a session is consumed at most once.
func (c *CheckoutService) CompleteCheckoutSession(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	release := c.store.locks.lock(userID)
	defer release()

	view, err := c.inspect(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if view.Blocked {
		first := view.StockErrors[0]
		if first.Retryable {
			return nil, feedback.Classify(first.Err)
		}
		return nil, feedback.New(feedback.TypeStock, feedback.CodeSessionBlocked,
			"some items can no longer be purchased: "+first.Message, feedback.WithProduct(first.ProductID))
	}

	if err := c.repo.DeleteSession(ctx, sessionID); err != nil {
		return nil, feedback.Storage(err, "failed to complete checkout session")
	}
	purchased := view.Session.ProductIDs()
	_, err = c.store.updateLocked(ctx, userID, func(cart *domain.Cart) (bool, error) {
		changed := false
		for _, id := range purchased {
			if _, exists := cart.Items[id]; exists {
				changed = true
			}
			cart.Remove(id)
		}
		return changed, nil
	})
	if err != nil {
		c.logger.Warn("purchased items left in cart",
			zap.String("session_id", sessionID),
			zap.String("user_id", userID),
			zap.Error(err))
	}

	c.logger.Info("checkout session completed", zap.String("session_id", sessionID), zap.String("user_id", userID))
	c.publish(ctx, publisher.EventSessionCompleted, view.Session)
	return view.Session, nil
}

// ClearCheckoutSession discards a session. Clearing an unknown session succeeds.
func (c *CheckoutService) ClearCheckoutSession(ctx context.Context, userID, sessionID string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	release := c.store.locks.lock(userID)
	defer release()

	session, err := c.loadOwned(ctx, userID, sessionID)
	if feedback.IsType(err, feedback.TypeValidation) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.repo.DeleteSession(ctx, sessionID); err != nil {
		return feedback.Storage(err, "failed to clear checkout session")
	}
	c.publish(ctx, publisher.EventSessionCleared, session)
	return nil
}

func (c *CheckoutService) loadOwned(ctx context.Context, userID, sessionID string) (*domain.CheckoutSession, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	session, err := c.repo.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, feedback.New(feedback.TypeValidation, feedback.CodeSessionNotFound, "checkout session not found")
	}
	if err != nil {
		return nil, feedback.Storage(err, "failed to load checkout session")
	}
	if session.UserID != userID {
		return nil, feedback.New(feedback.TypePermission, feedback.CodeForbidden,
			"checkout session belongs to another user")
	}
	return session, nil
}

func (c *CheckoutService) publish(ctx context.Context, t publisher.EventType, session *domain.CheckoutSession) {
	if err := c.publisher.Publish(ctx, publisher.NewSessionEvent(t, session, c.now())); err != nil {
		c.logger.Warn("failed to publish session event",
			zap.String("event_type", string(t)),
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

func errEmptySelection() *feedback.CartError {
	return feedback.New(feedback.TypeValidation, feedback.CodeEmptySelection, "no purchasable items selected")
}
