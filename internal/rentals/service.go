package rentals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/internal/catalog"
	"github.com/librariashqip/libraria-backend/internal/orders"
	"github.com/librariashqip/libraria-backend/internal/pricing"
	"github.com/librariashqip/libraria-backend/internal/terms"
	"github.com/librariashqip/libraria-backend/pkg/config"
	"github.com/librariashqip/libraria-backend/pkg/db"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/metrics"
	"github.com/librariashqip/libraria-backend/pkg/pagination"
	"github.com/librariashqip/libraria-backend/pkg/tokens"
	"github.com/librariashqip/libraria-backend/pkg/types"
)

// ActiveRentalConstraint is the partial unique index enforcing at most one
// active rental per buyer, content, and delivery mode.
const ActiveRentalConstraint = "uniq_active_rental"

type termsGate interface {
	CheckAcceptance(ctx context.Context, buyerID uuid.UUID, category enums.TermsCategory) (*terms.AcceptanceStatus, error)
}

type contentSigner interface {
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries everything needed to open a rental.
type CreateInput struct {
	BuyerID         uuid.UUID
	ContentID       uuid.UUID
	OrderItemID     uuid.UUID
	Mode            enums.DeliveryMode
	Tier            enums.RentalTier
	ShippingAddress *types.Address
}

// CreateResult returns the rental plus, for ebooks, the bearer token. The
// token is handed out exactly once; only its fingerprint is stored.
type CreateResult struct {
	Rental      *models.Rental
	AccessToken string
}

// AccessInput identifies one access attempt.
type AccessInput struct {
	BuyerID   uuid.UUID
	ContentID uuid.UUID
	RentalID  uuid.UUID
	Mode      enums.DeliveryMode
	Token     string
}

// AccessGrant is returned on a successful check. ContentURL is a short-lived
// signed locator for digital modes, empty for hardcopy.
type AccessGrant struct {
	RentalID   uuid.UUID
	Mode       enums.DeliveryMode
	ContentURL string
	ExpiresAt  time.Time
}

// PlaySessionInput accumulates one audio listening session.
type PlaySessionInput struct {
	BuyerID   uuid.UUID
	ContentID uuid.UUID
	RentalID  uuid.UUID
	Seconds   int64
	Completed bool
}

// ListResult is one page of rentals with the cursor for the next.
type ListResult struct {
	Items      []models.Rental
	NextCursor string
}

// Service is the rental ledger: creation, access validation, and the
// terminal transitions.
type Service interface {
	CreateRental(ctx context.Context, input CreateInput) (*CreateResult, error)
	CheckAccess(ctx context.Context, input AccessInput) (*AccessGrant, error)
	RecordPlaySession(ctx context.Context, input PlaySessionInput) error
	Revoke(ctx context.Context, rentalID uuid.UUID) error
	Cancel(ctx context.Context, rentalID uuid.UUID) error
	CancelForBuyer(ctx context.Context, buyerID, rentalID uuid.UUID) error
	History(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*ListResult, error)
	Active(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*ListResult, error)
}

type service struct {
	repo        *Repository
	contentRepo *catalog.Repository
	orderRepo   *orders.Repository
	auditRepo   *audit.Repository
	gate        termsGate
	tx          txRunner
	signer      contentSigner
	bucket      string
	downloadTTL time.Duration
	tokenCfg    config.AccessTokenConfig
	metrics     *metrics.RentalMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the ledger. The signer may be nil in deployments without
// digital delivery; access grants then omit the content URL.
func NewService(
	repo *Repository,
	contentRepo *catalog.Repository,
	orderRepo *orders.Repository,
	auditRepo *audit.Repository,
	gate termsGate,
	tx txRunner,
	signer contentSigner,
	bucket string,
	downloadTTL time.Duration,
	tokenCfg config.AccessTokenConfig,
	m *metrics.RentalMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	if contentRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if gate == nil {
		return nil, fmt.Errorf("terms gate required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:        repo,
		contentRepo: contentRepo,
		orderRepo:   orderRepo,
		auditRepo:   auditRepo,
		gate:        gate,
		tx:          tx,
		signer:      signer,
		bucket:      bucket,
		downloadTTL: downloadTTL,
		tokenCfg:    tokenCfg,
		metrics:     m,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// CreateRental opens a rental from a paid order item. Preconditions run in a
// fixed order so the caller always sees the first failure: content, payment,
// active-rental uniqueness, terms. The row insert, the inventory decrement,
// and the audit writes are one transaction; the unique index catches the
// race two concurrent creations would otherwise win together.
func (s *service) CreateRental(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.BuyerID == uuid.Nil || input.ContentID == uuid.Nil || input.OrderItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer, content, and order item ids are required")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidMode, fmt.Sprintf("unknown delivery mode %q", input.Mode))
	}

	content, err := s.contentRepo.FindByID(ctx, input.ContentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading content")
	}
	if content == nil || !content.Active || !content.SupportsMode(input.Mode) {
		return nil, pkgerrors.New(pkgerrors.CodeContentUnavailable, "content is not rentable in this mode")
	}
	if input.Mode == enums.DeliveryModeHardcopy && content.Inventory <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeContentUnavailable, "no physical copies in stock")
	}

	item, err := s.orderRepo.FindPaidRentalItem(ctx, input.OrderItemID, input.BuyerID, input.ContentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading order item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotPaid, "no paid rental order item")
	}

	existing, err := s.repo.FindActive(ctx, input.BuyerID, input.ContentID, input.Mode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "checking active rentals")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyRented, "an active rental already exists")
	}

	category, err := enums.TermsCategoryForMode(input.Mode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidMode, err, "resolving terms category")
	}
	gate, err := s.gate.CheckAcceptance(ctx, input.BuyerID, category)
	if err != nil {
		return nil, err
	}
	if !gate.Accepted {
		termsErr := pkgerrors.New(pkgerrors.CodeTermsRequired, "terms acceptance required")
		if gate.ActiveTerms != nil {
			termsErr = termsErr.WithDetails(map[string]any{
				"terms_version_id": gate.ActiveTerms.ID,
				"category":         gate.ActiveTerms.Category,
				"body":             gate.ActiveTerms.Body,
			})
		}
		return nil, termsErr
	}

	quote, err := pricing.Compute(input.Mode, input.Tier, content.BasePriceCents(input.Mode))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rental := &models.Rental{
		ID:             uuid.New(),
		BuyerID:        input.BuyerID,
		ContentID:      input.ContentID,
		OrderItemID:    input.OrderItemID,
		Mode:           input.Mode,
		Tier:           input.Tier,
		State:          enums.RentalStateActive,
		FeeCents:       quote.FeeCents,
		GuaranteeCents: quote.GuaranteeCents,
		Currency:       content.Currency,
		StartsAt:       now,
		EndsAt:         now.Add(quote.Duration),
	}

	var accessToken string
	switch input.Mode {
	case enums.DeliveryModeEbook:
		expiry := rental.EndsAt
		accessToken, err = tokens.MintAccessToken(s.tokenCfg, now, &expiry, tokens.AccessTokenPayload{
			BuyerID:   input.BuyerID,
			RentalID:  rental.ID,
			ContentID: input.ContentID,
			Mode:      input.Mode,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
		}
		fingerprint := tokens.Fingerprint(accessToken)
		rental.AccessTokenHash = &fingerprint
	case enums.DeliveryModeHardcopy:
		initial := enums.ConditionGradeExcellent
		rental.InitialCondition = &initial
		rental.ShippingAddress = input.ShippingAddress
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if input.Mode == enums.DeliveryModeHardcopy {
			if err := s.contentRepo.WithTx(tx).DecrementInventory(ctx, input.ContentID); err != nil {
				return err
			}
		}

		if _, err := s.repo.WithTx(tx).Create(ctx, rental); err != nil {
			return err
		}

		txAudit := s.auditRepo.WithTx(tx)
		if _, err := txAudit.Create(ctx, &models.AuditEvent{
			ID:         uuid.New(),
			RentalID:   &rental.ID,
			BuyerID:    input.BuyerID,
			ContentID:  input.ContentID,
			Kind:       enums.AuditEventRentalCreated,
			Currency:   rental.Currency,
			OccurredAt: now,
		}); err != nil {
			return err
		}
		if input.Mode == enums.DeliveryModeHardcopy {
			guarantee := rental.GuaranteeCents
			if _, err := txAudit.Create(ctx, &models.AuditEvent{
				ID:          uuid.New(),
				RentalID:    &rental.ID,
				BuyerID:     input.BuyerID,
				ContentID:   input.ContentID,
				Kind:        enums.AuditEventGuaranteeCharged,
				AmountCents: &guarantee,
				Currency:    rental.Currency,
				OccurredAt:  now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, ActiveRentalConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyRented, "an active rental already exists")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "creating rental")
	}

	s.metrics.IncCreated(input.Mode.String(), input.Tier.String())
	return &CreateResult{Rental: rental, AccessToken: accessToken}, nil
}

// CheckAccess validates one access attempt. Every failure collapses to the
// same opaque denial; this boundary is adversarial and must not leak which
// precondition failed. Expiry is applied lazily here, and a revocation that
// could not be applied when reported is applied now.
func (s *service) CheckAccess(ctx context.Context, input AccessInput) (*AccessGrant, error) {
	denied := pkgerrors.New(pkgerrors.CodeAccessDenied, "access denied")
	if input.BuyerID == uuid.Nil || input.ContentID == uuid.Nil || input.RentalID == uuid.Nil {
		return nil, denied
	}

	rental, err := s.repo.FindByID(ctx, input.RentalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading rental")
	}

	now := s.now().UTC()
	if !s.accessible(ctx, rental, input, now) {
		s.metrics.IncAccessCheck(input.Mode.String(), false)
		return nil, denied
	}

	// The guard re-checks state and window inside the update, so a
	// concurrent revocation between read and write still denies.
	touched, err := s.repo.TouchAccess(ctx, rental.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "recording access")
	}
	if !touched {
		s.metrics.IncAccessCheck(input.Mode.String(), false)
		return nil, denied
	}

	grant := &AccessGrant{
		RentalID:  rental.ID,
		Mode:      rental.Mode,
		ExpiresAt: rental.EndsAt,
	}
	if url, ok := s.signContentURL(ctx, rental); ok {
		grant.ContentURL = url
	}

	s.metrics.IncAccessCheck(input.Mode.String(), true)
	return grant, nil
}

func (s *service) accessible(ctx context.Context, rental *models.Rental, input AccessInput, now time.Time) bool {
	if rental == nil {
		return false
	}
	if rental.BuyerID != input.BuyerID || rental.ContentID != input.ContentID || rental.Mode != input.Mode {
		return false
	}
	if rental.State != enums.RentalStateActive {
		return false
	}

	if !now.Before(rental.EndsAt) {
		if _, err := s.repo.TransitionState(ctx, rental.ID, enums.RentalStateExpired, nil); err != nil && s.logg != nil {
			s.logg.Error(ctx, "marking rental expired", err)
		}
		return false
	}

	pending, err := s.repo.HasUnappliedRevocation(ctx, rental.ID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "checking pending revocations", err)
		}
		return false
	}
	if pending {
		if _, err := s.repo.TransitionState(ctx, rental.ID, enums.RentalStateRevoked, nil); err != nil && s.logg != nil {
			s.logg.Error(ctx, "applying deferred revocation", err)
		}
		return false
	}

	if rental.Mode == enums.DeliveryModeEbook {
		if rental.AccessTokenHash == nil || !tokens.FingerprintMatches(input.Token, *rental.AccessTokenHash) {
			return false
		}
		claims, err := tokens.ParseAccessToken(s.tokenCfg, input.Token)
		if err != nil {
			return false
		}
		if claims.BuyerID != input.BuyerID || claims.RentalID != rental.ID {
			return false
		}
	}

	return true
}

func (s *service) signContentURL(ctx context.Context, rental *models.Rental) (string, bool) {
	if s.signer == nil {
		return "", false
	}

	content, err := s.contentRepo.FindByID(ctx, rental.ContentID)
	if err != nil || content == nil {
		return "", false
	}

	var object *string
	switch rental.Mode {
	case enums.DeliveryModeEbook:
		object = content.EbookObjectKey
	case enums.DeliveryModeAudio:
		object = content.AudioObjectKey
	}
	if object == nil || *object == "" {
		return "", false
	}

	url, err := s.signer.SignedReadURL(s.bucket, *object, s.downloadTTL)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "signing content url", err)
		}
		return "", false
	}
	return url, true
}

// RecordPlaySession accumulates audio listening stats. Denials are opaque,
// matching the access-check boundary.
func (s *service) RecordPlaySession(ctx context.Context, input PlaySessionInput) error {
	denied := pkgerrors.New(pkgerrors.CodeAccessDenied, "access denied")
	if input.RentalID == uuid.Nil || input.Seconds < 0 {
		return denied
	}

	rental, err := s.repo.FindByID(ctx, input.RentalID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading rental")
	}
	if rental == nil || rental.Mode != enums.DeliveryModeAudio ||
		rental.BuyerID != input.BuyerID || rental.ContentID != input.ContentID {
		return denied
	}

	ok, err := s.repo.RecordPlaySession(ctx, input.RentalID, input.Seconds, input.Completed, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "recording play session")
	}
	if !ok {
		return denied
	}
	return nil
}

// Revoke forces a rental out of the active state. Already-terminal rentals
// are left untouched; the operation is idempotent so violation reports can
// be retried safely.
func (s *service) Revoke(ctx context.Context, rentalID uuid.UUID) error {
	return s.terminate(ctx, rentalID, enums.RentalStateRevoked, nil)
}

// Cancel ends a rental voluntarily: state revoked, window closed now. No
// guarantee penalty is implied by cancellation alone. The caller owns the
// lifecycle event; audit.Report invokes this after appending RENTAL_END.
func (s *service) Cancel(ctx context.Context, rentalID uuid.UUID) error {
	return s.terminate(ctx, rentalID, enums.RentalStateRevoked, map[string]any{"ends_at": s.now().UTC()})
}

// CancelForBuyer ends a rental at the buyer's own request. Rentals owned by
// someone else are indistinguishable from missing ones. The state flip and
// the RENTAL_END event commit together; termination never goes unrecorded.
func (s *service) CancelForBuyer(ctx context.Context, buyerID, rentalID uuid.UUID) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if rentalID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "rental id is required")
	}

	rental, err := s.repo.FindByID(ctx, rentalID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading rental")
	}
	if rental == nil || rental.BuyerID != buyerID {
		return pkgerrors.New(pkgerrors.CodeRentalNotFound, "rental not found")
	}
	if rental.State.IsTerminal() {
		return nil
	}

	endsAt := s.now().UTC()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).TransitionState(ctx, rentalID, enums.RentalStateRevoked, map[string]any{"ends_at": endsAt})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "transitioning rental state")
		}
		if !ok {
			// Lost the race to another terminator; its event stands.
			return nil
		}
		if _, err := s.auditRepo.WithTx(tx).Create(ctx, &models.AuditEvent{
			ID:         uuid.New(),
			RentalID:   &rentalID,
			BuyerID:    rental.BuyerID,
			ContentID:  rental.ContentID,
			Kind:       enums.AuditEventRentalEnd,
			Currency:   rental.Currency,
			OccurredAt: endsAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "appending rental end event")
		}
		return nil
	})
}

func (s *service) terminate(ctx context.Context, rentalID uuid.UUID, to enums.RentalState, updates map[string]any) error {
	if rentalID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "rental id is required")
	}

	rental, err := s.repo.FindByID(ctx, rentalID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading rental")
	}
	if rental == nil {
		return pkgerrors.New(pkgerrors.CodeRentalNotFound, "rental not found")
	}
	if rental.State.IsTerminal() {
		return nil
	}

	if _, err := s.repo.TransitionState(ctx, rentalID, to, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "transitioning rental state")
	}
	return nil
}

// History returns the buyer's rentals newest first.
func (s *service) History(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*ListResult, error) {
	return s.list(ctx, buyerID, params, false)
}

// Active returns the buyer's open rentals newest first.
func (s *service) Active(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*ListResult, error) {
	return s.list(ctx, buyerID, params, true)
}

func (s *service) list(ctx context.Context, buyerID uuid.UUID, params pagination.Params, activeOnly bool) (*ListResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, listQuery{
		buyerID:    buyerID,
		activeOnly: activeOnly,
		cursor:     cursor,
		limit:      pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "listing rentals")
	}

	result := &ListResult{Items: rows}
	if len(rows) > limit {
		result.Items = rows[:limit]
		last := result.Items[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}
