package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	domain "github.com/biccshop/checkout/internal/domain"
	"github.com/biccshop/checkout/internal/repositories"
)

const (
	defaultCheckoutSessionTTL = 2 * time.Hour
	defaultSubmitGuardTTL     = 2 * time.Minute
	submissionCompleteTimeout = 10 * time.Second
	cartClearedReasonOrder    = "order_placed"
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Sessions         repositories.CheckoutSessionRepository
	Carts            repositories.CartRepository
	CollectionPoints repositories.CollectionPointRepository
	Orders           repositories.OrderRepository
	Coupons          *CouponResolver
	Shipping         *ShippingSelector
	Validator        *OrderValidator
	Builder          *OrderBuilder
	Rates            PricingRates
	CartEvents       CartEvents
	Confirmations    ConfirmationSender
	Metrics          *CheckoutMetrics
	SessionTTL       time.Duration
	SubmitGuardTTL   time.Duration
	NewSessionID     func() string
	NewOrderID       func() string
	Clock            func() time.Time
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	sessions      repositories.CheckoutSessionRepository
	carts         repositories.CartRepository
	points        repositories.CollectionPointRepository
	orders        repositories.OrderRepository
	coupons       *CouponResolver
	shipping      *ShippingSelector
	validator     *OrderValidator
	builder       *OrderBuilder
	rates         PricingRates
	cartEvents    CartEvents
	confirmations ConfirmationSender
	metrics       *CheckoutMetrics
	sessionTTL    time.Duration
	guardTTL      time.Duration
	newSessionID  func() string
	newOrderID    func() string
	now           func() time.Time
	logger        func(ctx context.Context, event string, fields map[string]any)
	locks         *sessionLocks
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Sessions == nil {
		return nil, errors.New("checkout service: session repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.CollectionPoints == nil {
		return nil, errors.New("checkout service: collection point repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("checkout service: coupon resolver is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	shipping := deps.Shipping
	if shipping == nil {
		shipping = NewShippingSelector(ShippingSelectorConfig{})
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewOrderValidator(OrderValidatorConfig{})
	}
	builder := deps.Builder
	if builder == nil {
		builder = NewOrderBuilder(shipping.Country()).WithRates(deps.Rates)
	}
	sessionTTL := deps.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultCheckoutSessionTTL
	}
	guardTTL := deps.SubmitGuardTTL
	if guardTTL <= 0 {
		guardTTL = defaultSubmitGuardTTL
	}
	newSessionID := deps.NewSessionID
	if newSessionID == nil {
		newSessionID = uuid.NewString
	}
	newOrderID := deps.NewOrderID
	if newOrderID == nil {
		newOrderID = func() string { return "ord_" + ulid.Make().String() }
	}

	return &checkoutService{
		sessions:      deps.Sessions,
		carts:         deps.Carts,
		points:        deps.CollectionPoints,
		orders:        deps.Orders,
		coupons:       deps.Coupons,
		shipping:      shipping,
		validator:     validator,
		builder:       builder,
		rates:         deps.Rates,
		cartEvents:    deps.CartEvents,
		confirmations: deps.Confirmations,
		metrics:       deps.Metrics,
		sessionTTL:    sessionTTL,
		guardTTL:      guardTTL,
		newSessionID:  newSessionID,
		newOrderID:    newOrderID,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
		locks:  newSessionLocks(),
	}, nil
}

// Start loads the customer's cart into a fresh session. A previous unfinished session is
// abandoned; one that is still submitting blocks the start.
func (s *checkoutService) Start(ctx context.Context, customer Customer) (CheckoutSession, error) {
	customerID := strings.TrimSpace(customer.ID)
	if customerID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: customer id is required", ErrCheckoutInvalidInput)
	}

	unlockCustomer := s.locks.lock("customer:" + customerID)
	defer unlockCustomer()

	activeID, err := s.sessions.ActiveForCustomer(ctx, customerID)
	switch {
	case err == nil && activeID != "":
		if err := s.retire(ctx, customerID, activeID); err != nil {
			return CheckoutSession{}, err
		}
	case err != nil && !isRepoNotFound(err):
		return CheckoutSession{}, s.translateSessionError(err)
	}

	now := s.now()
	session := CheckoutSession{
		ID:         s.newSessionID(),
		CustomerID: customerID,
		State:      domain.CheckoutStateInitializing,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
	}

	cart, err := s.loadCart(ctx, customerID)
	if err != nil {
		return CheckoutSession{}, err
	}
	session.Draft = NewCheckoutDraft(cart, s.shipping).WithRates(s.rates).WithLogger(s.logger).Snapshot()
	if err := transition(&session, domain.CheckoutStateEditing); err != nil {
		return CheckoutSession{}, err
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return CheckoutSession{}, s.translateSessionError(err)
	}
	s.logger(ctx, "checkout_session_started", map[string]any{
		"sessionId":  session.ID,
		"customerId": customerID,
		"lines":      len(cart.Lines),
		"subtotal":   cart.Subtotal,
	})
	return session, nil
}

// Get returns the caller's session.
func (s *checkoutService) Get(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, error) {
	return s.load(ctx, customer, sessionID)
}

// Abandon ends the session without touching the cart.
func (s *checkoutService) Abandon(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, error) {
	unlock := s.locks.lock(strings.TrimSpace(sessionID))
	defer unlock()

	session, err := s.load(ctx, customer, sessionID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if session.State == domain.CheckoutStateSubmitting {
		return session, ErrSubmissionInProgress
	}
	if err := transition(&session, domain.CheckoutStateAbandoned); err != nil {
		return session, err
	}
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return CheckoutSession{}, s.translateSessionError(err)
	}
	s.logger(ctx, "checkout_session_abandoned", map[string]any{
		"sessionId":  session.ID,
		"customerId": session.CustomerID,
	})
	return session, nil
}

// ApplyCoupon resolves code and applies it. An invalid code clears any applied coupon and
// returns the updated session together with an error wrapping ErrCouponInvalid. The registry
// lookup runs without holding the session, so edits made meanwhile are kept.
func (s *checkoutService) ApplyCoupon(ctx context.Context, customer Customer, sessionID string, code string) (CheckoutSession, error) {
	current, err := s.load(ctx, customer, sessionID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if err := editable(current); err != nil {
		return current, err
	}

	resolution, err := s.coupons.Resolve(ctx, code)
	if err != nil {
		return current, err
	}

	session, err := s.mutate(ctx, customer, sessionID, func(_ context.Context, draft *CheckoutDraft) error {
		if !resolution.Valid {
			draft.ClearCoupon()
			return nil
		}
		draft.ApplyCoupon(resolution.Coupon)
		return nil
	})
	if err != nil {
		return session, err
	}
	if !resolution.Valid {
		s.metrics.couponRejected(ctx, resolution.Reason)
		return session, fmt.Errorf("%w: %s: %s", ErrCouponInvalid, resolution.Code, resolution.Reason)
	}
	s.logger(ctx, "checkout_coupon_applied", map[string]any{
		"sessionId": session.ID,
		"code":      resolution.Code,
		"discount":  session.Draft.Discount,
	})
	return session, nil
}

// ClearCoupon removes the applied coupon.
func (s *checkoutService) ClearCoupon(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, error) {
	return s.mutate(ctx, customer, sessionID, func(_ context.Context, draft *CheckoutDraft) error {
		draft.ClearCoupon()
		return nil
	})
}

// SelectShipping switches between home delivery and collection point.
func (s *checkoutService) SelectShipping(ctx context.Context, customer Customer, sessionID string, mode domain.ShippingMode) (CheckoutSession, error) {
	return s.mutate(ctx, customer, sessionID, func(_ context.Context, draft *CheckoutDraft) error {
		return draft.SelectShipping(mode)
	})
}

// UpdateAddress overwrites the destination address.
func (s *checkoutService) UpdateAddress(ctx context.Context, customer Customer, sessionID string, addr ShippingAddress) (CheckoutSession, error) {
	return s.mutate(ctx, customer, sessionID, func(_ context.Context, draft *CheckoutDraft) error {
		draft.UpdateAddress(addr)
		return nil
	})
}

// ChooseCollectionPoint picks a point by its index in the directory listing for the draft's
// city, or every point when no city is set. index -1 clears the choice.
func (s *checkoutService) ChooseCollectionPoint(ctx context.Context, customer Customer, sessionID string, index int) (CheckoutSession, error) {
	return s.mutate(ctx, customer, sessionID, func(ctx context.Context, draft *CheckoutDraft) error {
		shipping := draft.Snapshot().Shipping
		if index == -1 || shipping.Mode != domain.ShippingModeCollectionPoint {
			return draft.ChooseCollectionPoint(nil, index)
		}
		points, err := s.collectionPoints(ctx, shipping.City)
		if err != nil {
			return err
		}
		return draft.ChooseCollectionPoint(points, index)
	})
}

// SelectPayment applies the fee table for method.
func (s *checkoutService) SelectPayment(ctx context.Context, customer Customer, sessionID string, method domain.PaymentMethod) (CheckoutSession, error) {
	return s.mutate(ctx, customer, sessionID, func(_ context.Context, draft *CheckoutDraft) error {
		return draft.SelectPayment(method)
	})
}

// UpdateCardDetails stores card entry for card payments.
func (s *checkoutService) UpdateCardDetails(ctx context.Context, customer Customer, sessionID string, card domain.CardDetails) (CheckoutSession, error) {
	return s.mutate(ctx, customer, sessionID, func(_ context.Context, draft *CheckoutDraft) error {
		return draft.UpdateCardDetails(card)
	})
}

// SetDeliveryDate records the requested delivery date; nil clears it.
func (s *checkoutService) SetDeliveryDate(ctx context.Context, customer Customer, sessionID string, date *time.Time) (CheckoutSession, error) {
	if date != nil && date.Before(s.now().Truncate(24*time.Hour)) {
		return CheckoutSession{}, fmt.Errorf("%w: delivery date is in the past", ErrCheckoutInvalidInput)
	}
	return s.mutate(ctx, customer, sessionID, func(_ context.Context, draft *CheckoutDraft) error {
		draft.SetDeliveryDate(date)
		return nil
	})
}

// Validate runs the submission rules and stores the violations on the session. A failing
// result is not an error.
func (s *checkoutService) Validate(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, ValidationResult, error) {
	unlock := s.locks.lock(strings.TrimSpace(sessionID))
	defer unlock()

	session, err := s.load(ctx, customer, sessionID)
	if err != nil {
		return CheckoutSession{}, ValidationResult{}, err
	}
	if err := transition(&session, domain.CheckoutStateValidating); err != nil {
		return session, ValidationResult{}, err
	}
	result := s.validator.Validate(session.Draft)
	session.Violations = result.Violations
	if err := transition(&session, domain.CheckoutStateEditing); err != nil {
		return session, ValidationResult{}, err
	}
	s.touch(&session)
	if err := s.sessions.Save(ctx, session); err != nil {
		return CheckoutSession{}, ValidationResult{}, s.translateSessionError(err)
	}
	return session, result, nil
}

// Submit validates the draft and persists the order. While one submission is in flight every
// other submit for the session is rejected with ErrSubmissionInProgress. A persistence failure
// returns the session to editing with the draft unchanged and yields a *SubmissionError.
func (s *checkoutService) Submit(ctx context.Context, customer Customer, sessionID string) (Order, error) {
	session, order, err := s.prepareSubmission(ctx, customer, sessionID)
	if err != nil {
		return Order{}, err
	}

	insertErr := s.orders.Insert(ctx, order)

	// The outcome must be recorded even when the caller has gone away.
	doneCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submissionCompleteTimeout)
	defer cancel()
	if err := s.completeSubmission(doneCtx, session, order, insertErr); err != nil {
		return Order{}, err
	}
	s.afterPlaced(doneCtx, customer, order)
	return order, nil
}

// PurgeExpired deletes sessions whose expiry has passed.
func (s *checkoutService) PurgeExpired(ctx context.Context) (int, error) {
	count, err := s.sessions.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, s.translateSessionError(err)
	}
	if count > 0 {
		s.logger(ctx, "checkout_sessions_purged", map[string]any{"count": count})
	}
	return count, nil
}

func (s *checkoutService) prepareSubmission(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, Order, error) {
	unlock := s.locks.lock(strings.TrimSpace(sessionID))
	defer unlock()

	session, err := s.load(ctx, customer, sessionID)
	if err != nil {
		return CheckoutSession{}, Order{}, err
	}
	if session.State == domain.CheckoutStateSubmitting {
		return CheckoutSession{}, Order{}, ErrSubmissionInProgress
	}
	if session.State != domain.CheckoutStateEditing {
		return CheckoutSession{}, Order{}, fmt.Errorf("%w: cannot submit a %s session", ErrCheckoutState, session.State)
	}
	if session.Draft.Cart.Empty() {
		return CheckoutSession{}, Order{}, ErrEmptyCart
	}

	if err := transition(&session, domain.CheckoutStateValidating); err != nil {
		return CheckoutSession{}, Order{}, err
	}
	result := s.validator.Validate(session.Draft)
	if !result.OK {
		session.Violations = result.Violations
		_ = transition(&session, domain.CheckoutStateEditing)
		s.touch(&session)
		if err := s.sessions.Save(ctx, session); err != nil {
			return CheckoutSession{}, Order{}, s.translateSessionError(err)
		}
		return CheckoutSession{}, Order{}, &ValidationError{Violations: result.Violations}
	}

	order, err := s.builder.Build(session.Draft, session.Draft.Cart, customer, s.now())
	if err != nil {
		return CheckoutSession{}, Order{}, err
	}
	order.ID = s.newOrderID()

	acquired, err := s.sessions.AcquireSubmission(ctx, session.ID, s.guardTTL)
	if err != nil {
		return CheckoutSession{}, Order{}, s.translateSessionError(err)
	}
	if !acquired {
		return CheckoutSession{}, Order{}, ErrSubmissionInProgress
	}

	if err := transition(&session, domain.CheckoutStateSubmitting); err != nil {
		s.releaseGuard(ctx, session.ID)
		return CheckoutSession{}, Order{}, err
	}
	session.Violations = nil
	session.LastError = ""
	session.OrderID = order.ID
	s.touch(&session)
	if err := s.sessions.Save(ctx, session); err != nil {
		s.releaseGuard(ctx, session.ID)
		return CheckoutSession{}, Order{}, s.translateSessionError(err)
	}
	s.logger(ctx, "checkout_submission_started", map[string]any{
		"sessionId":  session.ID,
		"orderId":    order.ID,
		"orderTotal": order.OrderTotal,
	})
	return session, order, nil
}

func (s *checkoutService) completeSubmission(ctx context.Context, session CheckoutSession, order Order, insertErr error) error {
	unlock := s.locks.lock(session.ID)
	defer unlock()
	defer s.releaseGuard(ctx, session.ID)

	if insertErr != nil {
		_ = transition(&session, domain.CheckoutStateFailed)
		session.LastError = insertErr.Error()
		session.OrderID = ""
		s.logger(ctx, "checkout_submission_failed", map[string]any{
			"sessionId": session.ID,
			"orderId":   order.ID,
			"error":     insertErr.Error(),
		})
		_ = transition(&session, domain.CheckoutStateEditing)
		s.touch(&session)
		if err := s.sessions.Save(ctx, session); err != nil {
			s.logger(ctx, "checkout_session_save_failed", map[string]any{
				"sessionId": session.ID,
				"error":     err.Error(),
			})
		}
		s.metrics.submissionFailed(ctx)
		return &SubmissionError{SessionID: session.ID, Err: insertErr}
	}

	_ = transition(&session, domain.CheckoutStatePlaced)
	session.OrderID = order.ID
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger(ctx, "checkout_session_save_failed", map[string]any{
			"sessionId": session.ID,
			"orderId":   order.ID,
			"error":     err.Error(),
		})
	}
	s.metrics.orderPlaced(ctx, string(order.PaymentMethod), order.OrderTotal)
	s.logger(ctx, "checkout_order_placed", map[string]any{
		"sessionId":     session.ID,
		"orderId":       order.ID,
		"customerId":    order.CustomerID,
		"orderTotal":    order.OrderTotal,
		"paymentMethod": string(order.PaymentMethod),
	})
	return nil
}

// afterPlaced runs the follow-ups of a placed order. Their failures never undo the order.
func (s *checkoutService) afterPlaced(ctx context.Context, customer Customer, order Order) {
	if err := s.carts.Clear(ctx, order.CustomerID); err != nil {
		s.logger(ctx, "checkout_cart_clear_failed", map[string]any{
			"orderId":    order.ID,
			"customerId": order.CustomerID,
			"error":      err.Error(),
		})
	} else if s.cartEvents != nil {
		event := CartChangedEvent{
			CustomerID: order.CustomerID,
			Reason:     cartClearedReasonOrder,
			OrderID:    order.ID,
			OccurredAt: s.now(),
		}
		if err := s.cartEvents.CartChanged(ctx, event); err != nil {
			s.logger(ctx, "checkout_cart_event_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	if s.confirmations != nil {
		if err := s.confirmations.Send(ctx, customer, order); err != nil {
			s.logger(ctx, "checkout_confirmation_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}
}

// mutate applies fn to the draft of an editing session and saves the recomputed result.
func (s *checkoutService) mutate(ctx context.Context, customer Customer, sessionID string, fn func(context.Context, *CheckoutDraft) error) (CheckoutSession, error) {
	unlock := s.locks.lock(strings.TrimSpace(sessionID))
	defer unlock()

	session, err := s.load(ctx, customer, sessionID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if err := editable(session); err != nil {
		return session, err
	}

	draft := ResumeDraft(session.Draft, s.shipping).WithRates(s.rates).WithLogger(s.logger)
	if err := fn(ctx, draft); err != nil {
		return session, err
	}
	session.Draft = draft.Snapshot()
	session.Violations = nil
	s.touch(&session)
	if err := s.sessions.Save(ctx, session); err != nil {
		return CheckoutSession{}, s.translateSessionError(err)
	}
	return session, nil
}

func (s *checkoutService) load(ctx context.Context, customer Customer, sessionID string) (CheckoutSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: session id is required", ErrCheckoutInvalidInput)
	}
	customerID := strings.TrimSpace(customer.ID)
	if customerID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: customer id is required", ErrCheckoutInvalidInput)
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return CheckoutSession{}, s.translateSessionError(err)
	}
	if session.CustomerID != customerID {
		return CheckoutSession{}, ErrCheckoutForbidden
	}
	if session.State == domain.CheckoutStateSubmitting {
		if session, err = s.recoverStalled(ctx, session); err != nil {
			return CheckoutSession{}, err
		}
	}
	if session.State != domain.CheckoutStateSubmitting && !session.ExpiresAt.IsZero() && !s.now().Before(session.ExpiresAt) {
		return CheckoutSession{}, ErrCheckoutNotFound
	}
	return session, nil
}

// retire abandons the customer's previous session so a new one can start.
func (s *checkoutService) retire(ctx context.Context, customerID, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	previous, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateSessionError(err)
	}
	if previous.CustomerID != customerID {
		return nil
	}
	if previous.State == domain.CheckoutStateSubmitting {
		if previous, err = s.recoverStalled(ctx, previous); err != nil {
			return err
		}
		if previous.State == domain.CheckoutStateSubmitting {
			return ErrSubmissionInProgress
		}
	}
	if previous.State.Terminal() {
		return nil
	}
	previous.State = domain.CheckoutStateAbandoned
	previous.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, previous); err != nil {
		return s.translateSessionError(err)
	}
	s.logger(ctx, "checkout_session_replaced", map[string]any{
		"sessionId":  previous.ID,
		"customerId": customerID,
	})
	return nil
}

// recoverStalled settles a session left in submitting by a process that never recorded the
// outcome. A live submission still holds the guard and the session is returned unchanged.
func (s *checkoutService) recoverStalled(ctx context.Context, session CheckoutSession) (CheckoutSession, error) {
	acquired, err := s.sessions.AcquireSubmission(ctx, session.ID, s.guardTTL)
	if err != nil {
		return CheckoutSession{}, s.translateSessionError(err)
	}
	if !acquired {
		return session, nil
	}
	defer s.releaseGuard(ctx, session.ID)

	placed := false
	if session.OrderID != "" {
		_, err := s.orders.FindByID(ctx, session.OrderID)
		switch {
		case err == nil:
			placed = true
		case !isRepoNotFound(err):
			return CheckoutSession{}, fmt.Errorf("%w: orders: %v", ErrCheckoutUnavailable, err)
		}
	}
	if placed {
		_ = transition(&session, domain.CheckoutStatePlaced)
		session.UpdatedAt = s.now()
	} else {
		_ = transition(&session, domain.CheckoutStateFailed)
		session.LastError = "submission interrupted"
		session.OrderID = ""
		_ = transition(&session, domain.CheckoutStateEditing)
		s.touch(&session)
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return CheckoutSession{}, s.translateSessionError(err)
	}
	s.logger(ctx, "checkout_submission_recovered", map[string]any{
		"sessionId": session.ID,
		"state":     string(session.State),
		"orderId":   session.OrderID,
	})
	return session, nil
}

// editable rejects mutations outside the editing state.
func editable(session CheckoutSession) error {
	if session.State == domain.CheckoutStateSubmitting {
		return ErrSubmissionInProgress
	}
	if session.State != domain.CheckoutStateEditing {
		return fmt.Errorf("%w: session is %s", ErrCheckoutState, session.State)
	}
	return nil
}

func (s *checkoutService) loadCart(ctx context.Context, customerID string) (domain.CartSnapshot, error) {
	lines, err := s.carts.Items(ctx, customerID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.CartSnapshot{}, nil
		}
		s.logger(ctx, "checkout_cart_load_failed", map[string]any{
			"customerId": customerID,
			"error":      err.Error(),
		})
		return domain.CartSnapshot{}, fmt.Errorf("%w: cart: %v", ErrCheckoutUnavailable, err)
	}
	cart, err := domain.NewCartSnapshot(lines)
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	return cart, nil
}

func (s *checkoutService) collectionPoints(ctx context.Context, city string) ([]domain.CollectionPoint, error) {
	var (
		points []domain.CollectionPoint
		err    error
	)
	if city = strings.TrimSpace(city); city != "" {
		points, err = s.points.ListByDistrict(ctx, city)
	} else {
		points, err = s.points.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: collection points: %v", ErrCheckoutUnavailable, err)
	}
	return points, nil
}

func (s *checkoutService) releaseGuard(ctx context.Context, sessionID string) {
	if err := s.sessions.ReleaseSubmission(ctx, sessionID); err != nil {
		s.logger(ctx, "checkout_submission_guard_release_failed", map[string]any{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}
}

func (s *checkoutService) touch(session *CheckoutSession) {
	now := s.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.sessionTTL)
}

func (s *checkoutService) translateSessionError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrCheckoutNotFound
	}
	return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
