package rentals

import (
	"context"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/internal/catalog"
	"github.com/librariashqip/libraria-backend/internal/pricing"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	pkgerrors "github.com/librariashqip/libraria-backend/pkg/errors"
)

// ModeOffer is one rentable delivery mode with its tier quotes.
type ModeOffer struct {
	Mode      enums.DeliveryMode
	Inventory int
	Tiers     []TierQuote
}

// TierQuote is a priced tier within one mode.
type TierQuote struct {
	Tier           enums.RentalTier
	FeeCents       int64
	GuaranteeCents int64
	DurationHours  int64
}

// Availability describes what a buyer can do with one content item right now.
type Availability struct {
	ContentID       uuid.UUID
	Title           string
	Currency        enums.Currency
	Offers          []ModeOffer
	RecommendedMode enums.DeliveryMode
}

// ActiveSummary is the buyer's current standing against one content item.
type ActiveSummary struct {
	ContentID uuid.UUID
	Rentals   []models.Rental
}

// Facade is the single read-side entry point for availability and rental
// standing. Clients ask it one question and get the full picture instead of
// stitching together catalog, pricing, and ledger calls.
type Facade interface {
	Availability(ctx context.Context, contentID uuid.UUID) (*Availability, error)
	ActiveSummary(ctx context.Context, buyerID, contentID uuid.UUID) (*ActiveSummary, error)
}

type facade struct {
	repo        *Repository
	contentRepo *catalog.Repository
}

func NewFacade(repo *Repository, contentRepo *catalog.Repository) (Facade, error) {
	if repo == nil || contentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "facade dependencies required")
	}
	return &facade{repo: repo, contentRepo: contentRepo}, nil
}

// Availability lists every rentable mode with its tier quotes and recommends
// one mode. Hardcopy is offered only while inventory remains.
func (f *facade) Availability(ctx context.Context, contentID uuid.UUID) (*Availability, error) {
	if contentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content id is required")
	}

	content, err := f.contentRepo.FindByID(ctx, contentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "loading content")
	}
	if content == nil || !content.Active {
		return nil, pkgerrors.New(pkgerrors.CodeContentUnavailable, "content is not rentable")
	}

	availability := &Availability{
		ContentID: content.ID,
		Title:     content.Title,
		Currency:  content.Currency,
	}
	for _, mode := range []enums.DeliveryMode{enums.DeliveryModeEbook, enums.DeliveryModeHardcopy, enums.DeliveryModeAudio} {
		if !content.SupportsMode(mode) {
			continue
		}
		if mode == enums.DeliveryModeHardcopy && content.Inventory <= 0 {
			continue
		}

		offer := ModeOffer{Mode: mode}
		if mode == enums.DeliveryModeHardcopy {
			offer.Inventory = content.Inventory
		}
		for _, tier := range pricing.TiersForMode(mode) {
			quote, err := pricing.Compute(mode, tier, content.BasePriceCents(mode))
			if err != nil {
				return nil, err
			}
			offer.Tiers = append(offer.Tiers, TierQuote{
				Tier:           tier,
				FeeCents:       quote.FeeCents,
				GuaranteeCents: quote.GuaranteeCents,
				DurationHours:  int64(quote.Duration.Hours()),
			})
		}
		availability.Offers = append(availability.Offers, offer)
	}

	if len(availability.Offers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeContentUnavailable, "no rentable modes")
	}
	availability.RecommendedMode = recommendMode(content, availability.Offers)
	return availability, nil
}

// recommendMode prefers the ebook when offered; hardcopy wins only when it
// is the last mode standing or its stock is about to run out and the buyer
// might want to grab a physical copy.
func recommendMode(content *models.Content, offers []ModeOffer) enums.DeliveryMode {
	if len(offers) == 1 {
		return offers[0].Mode
	}

	var hasEbook, hasHardcopy bool
	for _, offer := range offers {
		switch offer.Mode {
		case enums.DeliveryModeEbook:
			hasEbook = true
		case enums.DeliveryModeHardcopy:
			hasHardcopy = true
		}
	}
	if hasHardcopy && content.Inventory <= 2 && content.Inventory > 0 {
		return enums.DeliveryModeHardcopy
	}
	if hasEbook {
		return enums.DeliveryModeEbook
	}
	return offers[0].Mode
}

// ActiveSummary returns the buyer's open rentals against one content item,
// at most one per mode by the ledger's uniqueness guarantee.
func (f *facade) ActiveSummary(ctx context.Context, buyerID, contentID uuid.UUID) (*ActiveSummary, error) {
	if buyerID == uuid.Nil || contentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and content ids are required")
	}

	rows, err := f.repo.ListActiveByBuyerContent(ctx, buyerID, contentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "listing active rentals")
	}
	return &ActiveSummary{ContentID: contentID, Rentals: rows}, nil
}
