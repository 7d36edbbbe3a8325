// Package access issues and verifies the public credentials that let a
// customer read one quotation: a 6-digit access code and a signed token
// bound to it.
package access

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"nguide/admin/internal/db"
	"nguide/admin/internal/metrics"
	"nguide/admin/internal/models"
)

// persistRetries bounds how often a rejected code write re-runs allocation.
const persistRetries = 2

// CodeAssignment is a conditional write of a new access code. It only applies
// while the stored code still equals PreviousCode (empty means no code).
// ShareCount and LastSharedAt are written only when set.
type CodeAssignment struct {
	QuotationID  int64
	PreviousCode string
	Code         string
	At           time.Time
	ShareCount   *int
	LastSharedAt *time.Time
}

// QuotationStore is the persistence the access service needs.
// Implementations return ErrNotFound for missing or deleted quotations,
// ErrAccessCodeTaken when the unique index rejects a code and
// ErrSharingChanged when a CodeAssignment precondition fails.
type QuotationStore interface {
	FindByID(ctx context.Context, id int64) (*models.Quotation, error)
	AccessCodeExists(ctx context.Context, code string) (bool, error)
	AssignAccessCode(ctx context.Context, a CodeAssignment) (*models.QuotationSharing, error)
	RecordShare(ctx context.Context, id int64, at time.Time) (*models.QuotationSharing, error)
}

// ShareInfo is returned to staff after a share request.
type ShareInfo struct {
	QuotationID     int64      `json:"quotationId"`
	QuotationNumber string     `json:"quotationNumber"`
	AccessCode      string     `json:"accessCode"`
	ShareURL        string     `json:"shareUrl"`
	CreatedAt       *time.Time `json:"createdAt"`
	ShareCount      int        `json:"shareCount"`
	LastSharedAt    *time.Time `json:"lastSharedAt"`
	ExpiresAt       *time.Time `json:"expiresAt"` // codes do not expire
}

// Grant is the result of a successful code check.
type Grant struct {
	Token     string
	ExpiresAt time.Time
	Quotation *models.Quotation
}

// IAccessService defines the quotation sharing operations.
type IAccessService interface {
	ShareQuotation(ctx context.Context, q *models.Quotation, baseURL string) (*ShareInfo, error)
	RegenerateAccessCode(ctx context.Context, q *models.Quotation, baseURL string) (*ShareInfo, error)
	VerifyCredentials(ctx context.Context, quotationID int64, accessCode string) (*Grant, error)
	VerifyAccess(ctx context.Context, quotationID int64, token string) (*models.Quotation, error)
}

// Service implements IAccessService.
type Service struct {
	store    QuotationStore
	tokens   *TokenIssuer
	generate CodeGenerator
	now      func() time.Time
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) { s.generate = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the access service.
func NewService(store QuotationStore, tokens *TokenIssuer, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		tokens:   tokens,
		generate: GenerateAccessCode,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShareQuotation returns the quotation's access code, allocating one on the
// first call. The first share sets the share count to 1; later shares
// increment it and keep the code.
func (s *Service) ShareQuotation(ctx context.Context, q *models.Quotation, baseURL string) (*ShareInfo, error) {
	if q == nil {
		return nil, ErrNotFound
	}
	current := q
	operation := func() error {
		now := s.now().UTC()
		if current.Sharing.HasAccessCode() {
			sharing, err := s.store.RecordShare(ctx, current.ID, now)
			if err != nil {
				return err
			}
			current.Sharing = *sharing
			return nil
		}

		code, err := s.allocate(ctx)
		if err != nil {
			return err
		}
		one := 1
		sharing, err := s.store.AssignAccessCode(ctx, CodeAssignment{
			QuotationID:  current.ID,
			Code:         code,
			At:           now,
			ShareCount:   &one,
			LastSharedAt: &now,
		})
		if err != nil {
			return s.handleAssignError(ctx, &current, err)
		}
		metrics.AccessCodesAllocated.Inc()
		current.Sharing = *sharing
		return nil
	}

	if err := db.WithRetries(operation, persistRetries, isRetryableAssign); err != nil {
		return nil, s.finalError("share", current.ID, err)
	}
	metrics.QuotationShares.Inc()
	*q = *current
	return s.shareInfo(q, baseURL), nil
}

// RegenerateAccessCode replaces the quotation's code with a fresh one. Every
// token minted for the old code stops verifying immediately.
func (s *Service) RegenerateAccessCode(ctx context.Context, q *models.Quotation, baseURL string) (*ShareInfo, error) {
	if q == nil {
		return nil, ErrNotFound
	}
	current := q
	operation := func() error {
		code, err := s.allocate(ctx)
		if err != nil {
			return err
		}
		a := CodeAssignment{
			QuotationID:  current.ID,
			PreviousCode: current.Sharing.AccessCode,
			Code:         code,
			At:           s.now().UTC(),
		}
		sharing, err := s.store.AssignAccessCode(ctx, a)
		if err != nil {
			return s.handleAssignError(ctx, &current, err)
		}
		metrics.AccessCodesAllocated.Inc()
		current.Sharing = *sharing
		return nil
	}

	if err := db.WithRetries(operation, persistRetries, isRetryableAssign); err != nil {
		return nil, s.finalError("regenerate", current.ID, err)
	}
	*q = *current
	s.logger.Info("quotation access code regenerated", zap.Int64("quotation_id", q.ID))
	return s.shareInfo(q, baseURL), nil
}

// EnsureAccessCode assigns a code to a quotation that has none, leaving the
// share count at 0. It reports whether a code was assigned.
func (s *Service) EnsureAccessCode(ctx context.Context, q *models.Quotation) (bool, error) {
	if q == nil {
		return false, ErrNotFound
	}
	if q.Sharing.HasAccessCode() {
		return false, nil
	}
	current := q
	assigned := false
	operation := func() error {
		if current.Sharing.HasAccessCode() {
			return nil
		}
		code, err := s.allocate(ctx)
		if err != nil {
			return err
		}
		zero := 0
		sharing, err := s.store.AssignAccessCode(ctx, CodeAssignment{
			QuotationID: current.ID,
			Code:        code,
			At:          s.now().UTC(),
			ShareCount:  &zero,
		})
		if err != nil {
			return s.handleAssignError(ctx, &current, err)
		}
		metrics.AccessCodesAllocated.Inc()
		current.Sharing = *sharing
		assigned = true
		return nil
	}

	if err := db.WithRetries(operation, persistRetries, isRetryableAssign); err != nil {
		return false, s.finalError("backfill", current.ID, err)
	}
	*q = *current
	return assigned, nil
}

// codesMatch compares codes exactly, in constant time.
func codesMatch(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// VerifyCredentials checks a code typed in by the customer and mints a token
// on success. The code must match exactly; surrounding whitespace is not
// stripped.
func (s *Service) VerifyCredentials(ctx context.Context, quotationID int64, accessCode string) (*Grant, error) {
	if quotationID <= 0 || accessCode == "" {
		return nil, ErrValidation
	}

	q, err := s.store.FindByID(ctx, quotationID)
	if err != nil {
		metrics.AccessVerifications.WithLabelValues("code", resultLabel(err)).Inc()
		return nil, err
	}
	if !q.Sharing.HasAccessCode() || !codesMatch(q.Sharing.AccessCode, accessCode) {
		metrics.AccessVerifications.WithLabelValues("code", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	token, expiresAt, err := s.tokens.Issue(q.ID, q.Sharing.AccessCode)
	if err != nil {
		return nil, err
	}
	metrics.AccessVerifications.WithLabelValues("code", "ok").Inc()
	return &Grant{Token: token, ExpiresAt: expiresAt, Quotation: q}, nil
}

// VerifyAccess authorizes a public read of quotationID with a bearer token.
// The token's code must still equal the stored code.
func (s *Service) VerifyAccess(ctx context.Context, quotationID int64, token string) (*models.Quotation, error) {
	claims, ok := s.tokens.Verify(token)
	if !ok || claims.QuotationID != quotationID {
		metrics.AccessVerifications.WithLabelValues("token", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	q, err := s.store.FindByID(ctx, quotationID)
	if err != nil {
		metrics.AccessVerifications.WithLabelValues("token", resultLabel(err)).Inc()
		return nil, err
	}
	if !q.Sharing.HasAccessCode() || !codesMatch(q.Sharing.AccessCode, claims.AccessCode) {
		metrics.AccessVerifications.WithLabelValues("token", "unauthorized").Inc()
		return nil, ErrUnauthorized
	}
	metrics.AccessVerifications.WithLabelValues("token", "ok").Inc()
	return q, nil
}

func (s *Service) allocate(ctx context.Context) (string, error) {
	code, err := AllocateUniqueCode(ctx, s.generate, s.store.AccessCodeExists)
	if errors.Is(err, ErrAllocationExhausted) {
		metrics.AllocationExhausted.WithLabelValues("access_code").Inc()
	}
	return code, err
}

// handleAssignError reloads the quotation when another writer changed its
// sharing state, so the retry works from fresh data.
func (s *Service) handleAssignError(ctx context.Context, current **models.Quotation, err error) error {
	switch {
	case errors.Is(err, ErrAccessCodeTaken):
		metrics.AccessCodeCollisions.Inc()
		s.logger.Warn("access code collided on write, reallocating", zap.Int64("quotation_id", (*current).ID))
	case errors.Is(err, ErrSharingChanged):
		fresh, findErr := s.store.FindByID(ctx, (*current).ID)
		if findErr != nil {
			return findErr
		}
		*current = fresh
	}
	return err
}

func (s *Service) finalError(op string, quotationID int64, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, ErrAllocationExhausted) || isRetryableAssign(err) {
		s.logger.Error("access code allocation failed",
			zap.String("op", op),
			zap.Int64("quotation_id", quotationID),
			zap.Error(err),
		)
		if !errors.Is(err, ErrAllocationExhausted) {
			return fmt.Errorf("%w: %w", ErrAllocationExhausted, err)
		}
		return err
	}
	return fmt.Errorf("failed to %s quotation %d: %w", op, quotationID, err)
}

func (s *Service) shareInfo(q *models.Quotation, baseURL string) *ShareInfo {
	return &ShareInfo{
		QuotationID:     q.ID,
		QuotationNumber: q.QuotationNumber,
		AccessCode:      q.Sharing.AccessCode,
		ShareURL:        ShareURL(baseURL, q.QuotationNumber),
		CreatedAt:       q.Sharing.AccessCodeCreatedAt,
		ShareCount:      q.Sharing.ShareCount,
		LastSharedAt:    q.Sharing.LastSharedAt,
	}
}

// ShareURL builds the customer-facing link for a quotation number.
func ShareURL(baseURL, quotationNumber string) string {
	return strings.TrimRight(baseURL, "/") + "/public/quotation/" + quotationNumber
}

func isRetryableAssign(err error) bool {
	return errors.Is(err, ErrAccessCodeTaken) || errors.Is(err, ErrSharingChanged)
}

func resultLabel(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return "error"
}
