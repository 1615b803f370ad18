package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mintaro-labs/mintaro-backend/api/responses"
	"github.com/mintaro-labs/mintaro-backend/api/validators"
	"github.com/mintaro-labs/mintaro-backend/internal/listings"
	pkgerrors "github.com/mintaro-labs/mintaro-backend/pkg/errors"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	"github.com/mintaro-labs/mintaro-backend/pkg/pagination"
)

type mintRequest struct {
	Owner       string                 `json:"owner" validate:"required"`
	Name        string                 `json:"name" validate:"required"`
	Description string                 `json:"description"`
	MetadataURI string                 `json:"metadata_uri" validate:"required"`
	ImageURL    string                 `json:"image_url"`
	BasePrice   decimal.Decimal        `json:"base_price"`
	Auction     *auctionRequestPayload `json:"auction"`
}

type auctionRequestPayload struct {
	DurationHours int `json:"duration_hours" validate:"required,min=1"`
}

type saleRequest struct {
	Owner     string                 `json:"owner" validate:"required"`
	BasePrice *decimal.Decimal       `json:"base_price"`
	Auction   *auctionRequestPayload `json:"auction"`
}

type ownerRequest struct {
	Owner string `json:"owner" validate:"required"`
}

type rentRequest struct {
	Owner         string          `json:"owner" validate:"required"`
	Fee           decimal.Decimal `json:"fee"`
	DurationHours int             `json:"duration_hours" validate:"required,min=1"`
}

type startRentalRequest struct {
	Renter string `json:"renter" validate:"required"`
}

type purchaseRequest struct {
	Buyer string `json:"buyer" validate:"required"`
	TxRef string `json:"tx_ref"`
}

func MintListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		var req mintRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := listings.MintParams{
			Owner:       req.Owner,
			Name:        req.Name,
			Description: req.Description,
			MetadataURI: req.MetadataURI,
			ImageURL:    req.ImageURL,
			BasePrice:   req.BasePrice,
		}
		if req.Auction != nil {
			params.Auction = &listings.AuctionParams{DurationHours: req.Auction.DurationHours}
		}

		listing, err := svc.Mint(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func GetListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Get(r.Context(), tokenID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func ListListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		scope, err := parseScope(r.URL.Query().Get("scope"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), listings.ListParams{
			Scope:  scope,
			Owner:  r.URL.Query().Get("owner"),
			Search: r.URL.Query().Get("search"),
			Cursor: r.URL.Query().Get("cursor"),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ListFinalizedListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListFinalized(r.Context(), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func MarketStats(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		stats, err := svc.MarketStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func SetListingForSale(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req saleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := listings.SaleParams{Owner: req.Owner, BasePrice: req.BasePrice}
		if req.Auction != nil {
			params.Auction = &listings.AuctionParams{DurationHours: req.Auction.DurationHours}
		}

		listing, err := svc.SetForSale(r.Context(), tokenID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func DelistListingFromSale(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req ownerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.DelistFromSale(r.Context(), tokenID, req.Owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func SetListingForRent(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req rentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.SetForRent(r.Context(), tokenID, listings.RentalParams{
			Owner:         req.Owner,
			Fee:           req.Fee,
			DurationHours: req.DurationHours,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func DelistListingFromRent(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req ownerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.DelistFromRent(r.Context(), tokenID, req.Owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func StartListingRental(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req startRentalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Rent(r.Context(), tokenID, req.Renter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func LikeListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return voteHandler(svc, logg, func(svc listings.Service, r *http.Request, tokenID int64) (listings.VoteDTO, error) {
		return svc.Like(r.Context(), tokenID)
	})
}

func DislikeListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return voteHandler(svc, logg, func(svc listings.Service, r *http.Request, tokenID int64) (listings.VoteDTO, error) {
		return svc.Dislike(r.Context(), tokenID)
	})
}

func voteHandler(svc listings.Service, logg *logger.Logger, vote func(listings.Service, *http.Request, int64) (listings.VoteDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := vote(svc, r, tokenID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func PurchaseListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		tokenID, err := parseTokenID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req purchaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.RecordPurchase(r.Context(), tokenID, listings.PurchaseParams{
			Buyer: req.Buyer,
			TxRef: req.TxRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func parseTokenID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "tokenID")
	tokenID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || tokenID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "token id must be a positive integer").
			WithDetails(map[string]string{"token_id": raw})
	}
	return tokenID, nil
}

func parseScope(raw string) (listings.ListScope, error) {
	switch listings.ListScope(raw) {
	case listings.ScopeAll, listings.ScopeForSale, listings.ScopeForRent, listings.ScopeAuction:
		return listings.ListScope(raw), nil
	}
	return listings.ScopeAll, pkgerrors.New(pkgerrors.CodeValidation, "unknown listing scope").
		WithDetails(map[string]string{"scope": raw})
}
