package terms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
	"github.com/librariashqip/libraria-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AcceptanceStatus is the gate decision for one buyer and category.
type AcceptanceStatus struct {
	Accepted    bool
	ActiveTerms *models.TermsVersion
}

// AcceptInput holds the buyer's confirmation of one terms version.
type AcceptInput struct {
	TermsVersionID      uuid.UUID
	ConfirmedRead       bool
	ConfirmedUnderstood bool
}

// PublishInput describes a new terms version to activate.
type PublishInput struct {
	Category    enums.TermsCategory
	Body        string
	EffectiveAt time.Time
	ExpiresAt   *time.Time
}

// Service answers whether a buyer has accepted the current terms for a rental
// category, and records acceptances and new versions.
type Service interface {
	CheckAcceptance(ctx context.Context, buyerID uuid.UUID, category enums.TermsCategory) (*AcceptanceStatus, error)
	RecordAcceptance(ctx context.Context, buyerID uuid.UUID, input AcceptInput) (*models.TermsAcceptance, error)
	NeedsReacceptance(ctx context.Context, buyerID uuid.UUID, category enums.TermsCategory) (bool, error)
	PublishVersion(ctx context.Context, input PublishInput) (*models.TermsVersion, error)
}

type service struct {
	repo *Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds a terms service backed by the provided repository.
func NewService(repo *Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("terms repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg, now: time.Now}, nil
}

// CheckAcceptance reports whether the buyer may pass the gate. A category
// with no active version configured passes open; incomplete terms
// configuration must not block rentals. The pass is logged so the gap is
// visible in operations.
func (s *service) CheckAcceptance(ctx context.Context, buyerID uuid.UUID, category enums.TermsCategory) (*AcceptanceStatus, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid terms category %q", category))
	}

	active, err := s.repo.FindActiveVersion(ctx, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "looking up active terms")
	}
	if active == nil {
		if s.logg != nil {
			s.logg.Debug(ctx, fmt.Sprintf("no active terms for category %s, gate passes open", category))
		}
		return &AcceptanceStatus{Accepted: true}, nil
	}

	ok, err := s.repo.HasValidAcceptance(ctx, buyerID, active.ID, active.EffectiveAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "looking up terms acceptance")
	}
	return &AcceptanceStatus{Accepted: ok, ActiveTerms: active}, nil
}

// RecordAcceptance appends a new acceptance. Prior acceptances are never
// mutated; the full history is kept for dispute resolution.
func (s *service) RecordAcceptance(ctx context.Context, buyerID uuid.UUID, input AcceptInput) (*models.TermsAcceptance, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.TermsVersionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terms version id is required")
	}
	if !input.ConfirmedRead || !input.ConfirmedUnderstood {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terms must be confirmed as read and understood")
	}

	version, err := s.repo.FindVersionByID(ctx, input.TermsVersionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "looking up terms version")
	}
	if version == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "terms version not found")
	}

	now := s.now().UTC()
	if now.Before(version.EffectiveAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terms version is not yet effective")
	}
	if version.ExpiresAt != nil && !now.Before(*version.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terms version has expired")
	}

	acceptance := &models.TermsAcceptance{
		ID:                  uuid.New(),
		BuyerID:             buyerID,
		TermsVersionID:      version.ID,
		AcceptedAt:          now,
		ConfirmedRead:       true,
		ConfirmedUnderstood: true,
	}
	created, err := s.repo.CreateAcceptance(ctx, acceptance)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "recording terms acceptance")
	}
	return created, nil
}

// NeedsReacceptance reports whether the newest version postdates the buyer's
// latest acceptance in the category.
func (s *service) NeedsReacceptance(ctx context.Context, buyerID uuid.UUID, category enums.TermsCategory) (bool, error) {
	if buyerID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}

	latest, err := s.repo.FindLatestVersion(ctx, category)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "looking up latest terms version")
	}
	if latest == nil {
		return false, nil
	}

	acceptance, err := s.repo.LatestAcceptanceForCategory(ctx, buyerID, category)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "looking up latest acceptance")
	}
	if acceptance == nil {
		return true, nil
	}
	return acceptance.AcceptedAt.Before(latest.EffectiveAt), nil
}

// PublishVersion activates a new version, retiring the current active one in
// the same transaction.
func (s *service) PublishVersion(ctx context.Context, input PublishInput) (*models.TermsVersion, error) {
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid terms category %q", input.Category))
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terms body is required")
	}
	if input.EffectiveAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "effective date is required")
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(input.EffectiveAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be after effective date")
	}

	version := &models.TermsVersion{
		ID:          uuid.New(),
		Category:    input.Category,
		Body:        input.Body,
		EffectiveAt: input.EffectiveAt.UTC(),
		ExpiresAt:   input.ExpiresAt,
		IsActive:    true,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeactivateVersions(ctx, input.Category); err != nil {
			return fmt.Errorf("deactivating prior versions: %w", err)
		}
		if _, err := txRepo.CreateVersion(ctx, version); err != nil {
			return fmt.Errorf("creating version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "publishing terms version")
	}
	return version, nil
}
