package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mintaro-labs/mintaro-backend/internal/finalizer"
	"github.com/mintaro-labs/mintaro-backend/internal/listings"
	"github.com/mintaro-labs/mintaro-backend/pkg/config"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
)

type stubListingsService struct {
	getFn  func(ctx context.Context, tokenID int64) (listings.ListingDTO, error)
	likeFn func(ctx context.Context, tokenID int64) (listings.VoteDTO, error)
	mintFn func(ctx context.Context, params listings.MintParams) (listings.ListingDTO, error)
}

func (s *stubListingsService) Mint(ctx context.Context, params listings.MintParams) (listings.ListingDTO, error) {
	if s.mintFn != nil {
		return s.mintFn(ctx, params)
	}
	return listings.ListingDTO{TokenID: 1, Owner: params.Owner}, nil
}

func (s *stubListingsService) Get(ctx context.Context, tokenID int64) (listings.ListingDTO, error) {
	if s.getFn != nil {
		return s.getFn(ctx, tokenID)
	}
	return listings.ListingDTO{TokenID: tokenID}, nil
}

func (s *stubListingsService) List(ctx context.Context, params listings.ListParams) (listings.ListingsPageDTO, error) {
	return listings.ListingsPageDTO{Items: []listings.ListingDTO{}}, nil
}

func (s *stubListingsService) ListFinalized(ctx context.Context, cursor string, limit int) (listings.ListingsPageDTO, error) {
	return listings.ListingsPageDTO{Items: []listings.ListingDTO{}}, nil
}

func (s *stubListingsService) SetForSale(ctx context.Context, tokenID int64, params listings.SaleParams) (listings.ListingDTO, error) {
	return listings.ListingDTO{TokenID: tokenID, IsForSale: true}, nil
}

func (s *stubListingsService) DelistFromSale(ctx context.Context, tokenID int64, owner string) (listings.ListingDTO, error) {
	return listings.ListingDTO{TokenID: tokenID}, nil
}

func (s *stubListingsService) SetForRent(ctx context.Context, tokenID int64, params listings.RentalParams) (listings.ListingDTO, error) {
	return listings.ListingDTO{TokenID: tokenID, IsForRent: true}, nil
}

func (s *stubListingsService) DelistFromRent(ctx context.Context, tokenID int64, owner string) (listings.ListingDTO, error) {
	return listings.ListingDTO{TokenID: tokenID}, nil
}

func (s *stubListingsService) Rent(ctx context.Context, tokenID int64, renter string) (listings.ListingDTO, error) {
	return listings.ListingDTO{TokenID: tokenID, Renter: renter}, nil
}

func (s *stubListingsService) Like(ctx context.Context, tokenID int64) (listings.VoteDTO, error) {
	if s.likeFn != nil {
		return s.likeFn(ctx, tokenID)
	}
	return listings.VoteDTO{TokenID: tokenID, Upvotes: 1}, nil
}

func (s *stubListingsService) Dislike(ctx context.Context, tokenID int64) (listings.VoteDTO, error) {
	return listings.VoteDTO{TokenID: tokenID, Downvotes: 1}, nil
}

func (s *stubListingsService) ExpiredAuctionIDs(ctx context.Context, now time.Time) ([]int64, error) {
	return nil, nil
}

func (s *stubListingsService) Finalize(ctx context.Context, tokenID int64) (listings.ListingDTO, error) {
	return listings.ListingDTO{TokenID: tokenID, ReadyForPurchase: true}, nil
}

func (s *stubListingsService) RecordPurchase(ctx context.Context, tokenID int64, params listings.PurchaseParams) (listings.ListingDTO, error) {
	return listings.ListingDTO{TokenID: tokenID, Owner: params.Buyer}, nil
}

func (s *stubListingsService) MarketStats(ctx context.Context) (listings.MarketStatsDTO, error) {
	return listings.MarketStatsDTO{TotalListings: 3}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(t *testing.T, svc listings.Service) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})

	engine, err := finalizer.NewEngine(finalizer.EngineParams{
		Settler: svc,
		Logger:  logg,
	})
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	return NewRouter(RouterParams{
		Config: testConfig(),
		Logger: logg,
		DBPing: func(context.Context) error { return nil },
		// Redis and Pinner stay nil: idempotency becomes a pass-through
		// and the readiness probe skips them.
		Listings: svc,
		Engine:   engine,
	})
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
		if env := resp.Header().Get("X-Mintaro-Env"); env != "test" {
			t.Fatalf("%s: expected env header, got %q", path, env)
		}
	}
}

func TestPublicPing(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGetListingRoutesTokenID(t *testing.T) {
	var captured int64
	svc := &stubListingsService{
		getFn: func(ctx context.Context, tokenID int64) (listings.ListingDTO, error) {
			captured = tokenID
			return listings.ListingDTO{TokenID: tokenID}, nil
		},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings/42", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured != 42 {
		t.Fatalf("expected token id 42 got %d", captured)
	}
}

func TestGetListingRejectsBadTokenID(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings/not-a-number", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListListingsRejectsUnknownScope(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/listings?scope=bogus", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMintRejectsInvalidBody(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", strings.NewReader(`{"name":"no owner"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMintReturnsCreated(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	body := `{"owner":"0xabc","name":"Piece","metadata_uri":"ipfs://QmX","base_price":"1.0"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestLikeRoute(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/7/like", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Data struct {
			TokenID int64 `json:"token_id"`
			Upvotes int64 `json:"upvotes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.TokenID != 7 || payload.Data.Upvotes != 1 {
		t.Fatalf("unexpected vote payload %+v", payload.Data)
	}
}

func TestFinalizerStatusRoute(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/finalizer/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestFinalizerTriggerRoute(t *testing.T) {
	router := newTestRouter(t, &stubListingsService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/finalizer/runs", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
