package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/librariashqip/libraria-backend/api/middleware"
	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/internal/rentals"
	"github.com/librariashqip/libraria-backend/internal/settlement"
	"github.com/librariashqip/libraria-backend/internal/subscriptions"
	"github.com/librariashqip/libraria-backend/internal/terms"
	"github.com/librariashqip/libraria-backend/pkg/config"
	"github.com/librariashqip/libraria-backend/pkg/db/models"
	"github.com/librariashqip/libraria-backend/pkg/enums"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/pagination"
	"github.com/librariashqip/libraria-backend/pkg/security"
)

type stubRentalService struct{}

func (stubRentalService) CreateRental(context.Context, rentals.CreateInput) (*rentals.CreateResult, error) {
	return &rentals.CreateResult{
		Rental: &models.Rental{
			ID:        uuid.New(),
			ContentID: uuid.New(),
			Mode:      enums.DeliveryModeEbook,
			Tier:      enums.RentalTierSingleRead,
			State:     enums.RentalStateActive,
			Currency:  enums.CurrencyALL,
			StartsAt:  time.Now().UTC(),
			EndsAt:    time.Now().UTC().Add(24 * time.Hour),
		},
		AccessToken: "token",
	}, nil
}

func (stubRentalService) CheckAccess(context.Context, rentals.AccessInput) (*rentals.AccessGrant, error) {
	return &rentals.AccessGrant{RentalID: uuid.New(), Mode: enums.DeliveryModeEbook}, nil
}

func (stubRentalService) RecordPlaySession(context.Context, rentals.PlaySessionInput) error {
	return nil
}

func (stubRentalService) Revoke(context.Context, uuid.UUID) error { return nil }

func (stubRentalService) Cancel(context.Context, uuid.UUID) error { return nil }

func (stubRentalService) CancelForBuyer(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubRentalService) History(context.Context, uuid.UUID, pagination.Params) (*rentals.ListResult, error) {
	return &rentals.ListResult{}, nil
}

func (stubRentalService) Active(context.Context, uuid.UUID, pagination.Params) (*rentals.ListResult, error) {
	return &rentals.ListResult{}, nil
}

type stubFacade struct{}

func (stubFacade) Availability(_ context.Context, contentID uuid.UUID) (*rentals.Availability, error) {
	return &rentals.Availability{ContentID: contentID, Currency: enums.CurrencyALL}, nil
}

func (stubFacade) ActiveSummary(_ context.Context, _ uuid.UUID, contentID uuid.UUID) (*rentals.ActiveSummary, error) {
	return &rentals.ActiveSummary{ContentID: contentID}, nil
}

type stubSettlementService struct{}

func (stubSettlementService) Return(context.Context, settlement.ReturnInput) (*settlement.Settlement, error) {
	return &settlement.Settlement{
		Rental:    &models.Rental{ID: uuid.New(), Returned: true},
		Breakdown: &settlement.Breakdown{Grade: enums.ConditionGradeGood},
	}, nil
}

type stubSubscriptionService struct{}

func (stubSubscriptionService) Acquire(context.Context, subscriptions.AcquireInput) error { return nil }

func (stubSubscriptionService) Release(context.Context, subscriptions.AcquireInput) error { return nil }

func (stubSubscriptionService) CheckAccess(context.Context, uuid.UUID, uuid.UUID) (*subscriptions.AccessStatus, error) {
	return &subscriptions.AccessStatus{HasAccess: true, MaxConcurrent: 3, CanAcquireMore: true}, nil
}

type stubTermsService struct{}

func (stubTermsService) CheckAcceptance(context.Context, uuid.UUID, enums.TermsCategory) (*terms.AcceptanceStatus, error) {
	return &terms.AcceptanceStatus{Accepted: true}, nil
}

func (stubTermsService) RecordAcceptance(_ context.Context, _ uuid.UUID, input terms.AcceptInput) (*models.TermsAcceptance, error) {
	return &models.TermsAcceptance{TermsVersionID: input.TermsVersionID, AcceptedAt: time.Now().UTC()}, nil
}

func (stubTermsService) NeedsReacceptance(context.Context, uuid.UUID, enums.TermsCategory) (bool, error) {
	return false, nil
}

func (stubTermsService) PublishVersion(context.Context, terms.PublishInput) (*models.TermsVersion, error) {
	return &models.TermsVersion{ID: uuid.New()}, nil
}

type stubAuditService struct{}

func (stubAuditService) Report(_ context.Context, input audit.ReportInput) (*models.AuditEvent, error) {
	return &models.AuditEvent{ID: uuid.New(), Kind: input.Kind, OccurredAt: time.Now().UTC()}, nil
}

func (stubAuditService) History(context.Context, uuid.UUID) ([]models.AuditEvent, error) {
	return nil, nil
}

func (stubAuditService) SetRevoker(audit.Revoker) {}

func testRouter(t *testing.T, reporterHash string) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Reporter.APIKeyHash = reporterHash
	cfg.RateLimit.AccessWindow = time.Minute
	cfg.RateLimit.AccessBuyerLimit = 60
	cfg.RateLimit.AccessIPLimit = 120

	return NewRouter(Deps{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "routes-test"}),
		Rentals:       stubRentalService{},
		RentalFacade:  stubFacade{},
		Settlements:   stubSettlementService{},
		Subscriptions: stubSubscriptionService{},
		Terms:         stubTermsService{},
		Audit:         stubAuditService{},
	})
}

func TestHealthAndPublicRoutes(t *testing.T) {
	router := testRouter(t, "")

	for _, path := range []string{"/health/live", "/api/public/ping"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s returned %d", path, rec.Code)
		}
	}
}

func TestBuyerRoutesRequireIdentity(t *testing.T) {
	router := testRouter(t, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rentals/active", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without buyer header, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rentals/active", nil)
	req.Header.Set(middleware.BuyerHeader, uuid.NewString())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with buyer header, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRentalCreateRouteWired(t *testing.T) {
	router := testRouter(t, "")

	body := strings.NewReader(`{"content_id":"` + uuid.NewString() + `","order_item_id":"` + uuid.NewString() + `","mode":"ebook","tier":"single_read"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rentals", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.BuyerHeader, uuid.NewString())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.Data.AccessToken != "token" {
		t.Fatalf("expected access token in response, got %q", envelope.Data.AccessToken)
	}
}

func TestAvailabilityRouteWired(t *testing.T) {
	router := testRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rentals/contents/"+uuid.NewString()+"/availability", nil)
	req.Header.Set(middleware.BuyerHeader, uuid.NewString())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestViolationRouteRequiresReporterKey(t *testing.T) {
	hash, err := security.HashAPIKey("reporter-secret")
	if err != nil {
		t.Fatalf("hashing reporter key: %v", err)
	}
	router := testRouter(t, hash)

	payload := `{"buyer_id":"` + uuid.NewString() + `","content_id":"` + uuid.NewString() + `","kind":"security_violation"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/violations", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without reporter key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/violations", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ReporterKeyHeader, "reporter-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with reporter key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubscriptionStatusRouteWired(t *testing.T) {
	router := testRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/access/status?subscription_id="+uuid.NewString(), nil)
	req.Header.Set(middleware.BuyerHeader, uuid.NewString())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
