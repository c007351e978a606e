package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"offsetledger/internal/ledger/credential"
	"offsetledger/internal/ledger/models"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/httputil"
	auth "offsetledger/pkg/platform/middleware/auth"
	"offsetledger/pkg/requestcontext"
)

// Service defines the ledger operations exposed over HTTP.
type Service interface {
	Mint(ctx context.Context, capability *credential.MintCapability, recipient id.PrincipalID, amount uint64, activityCode uint8, verificationID id.VerificationID) (*models.Certificate, error)
	Fund(ctx context.Context, capability *credential.MintCapability, principal id.PrincipalID, amount uint64) (uint64, error)
	Balance(ctx context.Context, principal id.PrincipalID) (uint64, error)
	List(ctx context.Context, caller id.PrincipalID, certID id.CertificateID, price uint64) (id.ListingID, error)
	Buy(ctx context.Context, buyer id.PrincipalID, listingID id.ListingID, payment uint64) (*models.Certificate, *models.Receipt, error)
	Cancel(ctx context.Context, caller id.PrincipalID, listingID id.ListingID) (*models.Certificate, error)
	ActiveListings(ctx context.Context) ([]id.ListingID, error)
	GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	Retire(ctx context.Context, caller id.PrincipalID, certID id.CertificateID) (*models.RetirementCertificate, error)
	Freeze(ctx context.Context, caller id.PrincipalID, retirementID id.RetirementID) (*models.RetirementCertificate, error)
	GetCertificate(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	GetRetirement(ctx context.Context, retirementID id.RetirementID) (*models.RetirementCertificate, error)
	CertificatesByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.Certificate, error)
	RetirementsByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.RetirementCertificate, error)
}

// CapabilityRedeemer exchanges the remote mint credential for the capability.
type CapabilityRedeemer interface {
	Redeem(secret string) (*credential.MintCapability, error)
}

// Handler wires ledger endpoints to the ledger service.
type Handler struct {
	service      Service
	redeemer     CapabilityRedeemer
	jwtValidator auth.JWTValidator
	logger       *slog.Logger
	writeGuards  []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithWriteMiddleware adds middleware that runs in front of every mutating
// route, after authentication (idempotency replay, rate limits).
func WithWriteMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.writeGuards = append(h.writeGuards, mw...)
	}
}

// New constructs a ledger handler with its dependencies.
func New(service Service, redeemer CapabilityRedeemer, jwtValidator auth.JWTValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:      service,
		redeemer:     redeemer,
		jwtValidator: jwtValidator,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts ledger endpoints under /v1.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/balances/{principal}", h.HandleBalance)
		v1.Get("/listings", h.HandleActiveListings)
		v1.Get("/listings/{id}", h.HandleGetListing)
		v1.Get("/certificates/{id}", h.HandleGetCertificate)
		v1.Get("/retirements/{id}", h.HandleGetRetirement)
		v1.Get("/principals/{principal}/certificates", h.HandleCertificatesByOwner)
		v1.Get("/principals/{principal}/retirements", h.HandleRetirementsByOwner)

		// The credential in the body is the authorization for these two.
		v1.Group(func(cr chi.Router) {
			cr.Use(h.writeGuards...)
			cr.Post("/certificates/mint", h.HandleMint)
			cr.Post("/balances/fund", h.HandleFund)
		})

		v1.Group(func(ar chi.Router) {
			ar.Use(auth.RequireAuth(h.jwtValidator, h.logger))
			ar.Use(h.writeGuards...)
			ar.Post("/listings", h.HandleList)
			ar.Post("/listings/{id}/buy", h.HandleBuy)
			ar.Post("/listings/{id}/cancel", h.HandleCancel)
			ar.Post("/certificates/{id}/retire", h.HandleRetire)
			ar.Post("/retirements/{id}/freeze", h.HandleFreeze)
		})
	})
}

// HandleMint handles POST /v1/certificates/mint.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	capability, err := h.redeemer.Redeem(req.Credential)
	if err != nil {
		h.logger.WarnContext(ctx, "mint credential rejected",
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	cert, err := h.service.Mint(ctx, capability, req.recipient, req.Amount, req.ActivityCode, req.verificationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCertificateResponse(cert))
}

// HandleFund handles POST /v1/balances/fund.
func (h *Handler) HandleFund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[FundRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	capability, err := h.redeemer.Redeem(req.Credential)
	if err != nil {
		h.logger.WarnContext(ctx, "fund credential rejected",
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", requestcontext.ClientIP(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	balance, err := h.service.Fund(ctx, capability, req.principal, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BalanceResponse{Principal: req.principal.String(), Balance: balance})
}

// HandleBalance handles GET /v1/balances/{principal}.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	principal, err := id.ParsePrincipalID(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.service.Balance(r.Context(), principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &BalanceResponse{Principal: principal.String(), Balance: balance})
}

// HandleList handles POST /v1/listings.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ListRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	listingID, err := h.service.List(ctx, requestcontext.Principal(ctx), req.certificateID, req.Price)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &ListingCreatedResponse{ListingID: listingID.String()})
}

// HandleBuy handles POST /v1/listings/{id}/buy.
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := id.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[BuyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cert, receipt, err := h.service.Buy(ctx, requestcontext.Principal(ctx), listingID, req.Payment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBuyResponse(cert, receipt))
}

// HandleCancel handles POST /v1/listings/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, err := id.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !drainEmptyBody(w, r) {
		return
	}
	cert, err := h.service.Cancel(ctx, requestcontext.Principal(ctx), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

// HandleActiveListings handles GET /v1/listings.
func (h *Handler) HandleActiveListings(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.ActiveListings(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toActiveListingsResponse(ids))
}

// HandleGetListing handles GET /v1/listings/{id}.
func (h *Handler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	listing, err := h.service.GetListing(r.Context(), listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toListingResponse(listing))
}

// HandleGetCertificate handles GET /v1/certificates/{id}.
func (h *Handler) HandleGetCertificate(w http.ResponseWriter, r *http.Request) {
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cert, err := h.service.GetCertificate(r.Context(), certID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

// HandleRetire handles POST /v1/certificates/{id}/retire.
func (h *Handler) HandleRetire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !drainEmptyBody(w, r) {
		return
	}
	ret, err := h.service.Retire(ctx, requestcontext.Principal(ctx), certID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRetirementResponse(ret))
}

// HandleGetRetirement handles GET /v1/retirements/{id}.
func (h *Handler) HandleGetRetirement(w http.ResponseWriter, r *http.Request) {
	retID, err := id.ParseRetirementID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ret, err := h.service.GetRetirement(r.Context(), retID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRetirementResponse(ret))
}

// HandleFreeze handles POST /v1/retirements/{id}/freeze.
func (h *Handler) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	retID, err := id.ParseRetirementID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !drainEmptyBody(w, r) {
		return
	}
	ret, err := h.service.Freeze(ctx, requestcontext.Principal(ctx), retID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRetirementResponse(ret))
}

// HandleCertificatesByOwner handles GET /v1/principals/{principal}/certificates.
func (h *Handler) HandleCertificatesByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := id.ParsePrincipalID(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	certs, err := h.service.CertificatesByOwner(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := &CertificatesResponse{Certificates: make([]*CertificateResponse, 0, len(certs))}
	for _, c := range certs {
		resp.Certificates = append(resp.Certificates, toCertificateResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRetirementsByOwner handles GET /v1/principals/{principal}/retirements.
func (h *Handler) HandleRetirementsByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := id.ParsePrincipalID(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rets, err := h.service.RetirementsByOwner(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := &RetirementsResponse{Retirements: make([]*RetirementResponse, 0, len(rets))}
	for _, ret := range rets {
		resp.Retirements = append(resp.Retirements, toRetirementResponse(ret))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// drainEmptyBody accepts no body or an empty JSON object on action routes.
func drainEmptyBody(w http.ResponseWriter, r *http.Request) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	if len(body) > 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be empty"))
		return false
	}
	return true
}
