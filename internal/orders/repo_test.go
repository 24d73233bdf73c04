package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
)

func newTestRepo(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.RentalOrderItem{}); err != nil {
		t.Fatalf("migrate order items: %v", err)
	}
	return NewRepository(db), db
}

func TestFindPaidRentalItem(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	buyer := uuid.New()
	content := uuid.New()
	paidAt := time.Now()

	paid := &models.RentalOrderItem{
		ID:             uuid.New(),
		BuyerID:        buyer,
		ContentID:      content,
		UnitPriceCents: 1000,
		Currency:       enums.CurrencyALL,
		IsRental:       true,
		Paid:           true,
		PaidAt:         &paidAt,
	}
	unpaid := &models.RentalOrderItem{
		ID:             uuid.New(),
		BuyerID:        buyer,
		ContentID:      content,
		UnitPriceCents: 1000,
		Currency:       enums.CurrencyALL,
		IsRental:       true,
	}
	purchase := &models.RentalOrderItem{
		ID:             uuid.New(),
		BuyerID:        buyer,
		ContentID:      content,
		UnitPriceCents: 1000,
		Currency:       enums.CurrencyALL,
		Paid:           true,
		PaidAt:         &paidAt,
	}
	for _, item := range []*models.RentalOrderItem{paid, unpaid, purchase} {
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}

	found, err := repo.FindPaidRentalItem(ctx, paid.ID, buyer, content)
	if err != nil {
		t.Fatalf("find paid: %v", err)
	}
	if found == nil || found.ID != paid.ID {
		t.Fatal("expected paid rental item")
	}

	if found, err = repo.FindPaidRentalItem(ctx, unpaid.ID, buyer, content); err != nil || found != nil {
		t.Fatalf("unpaid item must not qualify, got %+v err %v", found, err)
	}
	if found, err = repo.FindPaidRentalItem(ctx, purchase.ID, buyer, content); err != nil || found != nil {
		t.Fatalf("non-rental item must not qualify, got %+v err %v", found, err)
	}
	if found, err = repo.FindPaidRentalItem(ctx, paid.ID, uuid.New(), content); err != nil || found != nil {
		t.Fatalf("other buyer must not qualify, got %+v err %v", found, err)
	}
	if found, err = repo.FindPaidRentalItem(ctx, paid.ID, buyer, uuid.New()); err != nil || found != nil {
		t.Fatalf("other content must not qualify, got %+v err %v", found, err)
	}
}
