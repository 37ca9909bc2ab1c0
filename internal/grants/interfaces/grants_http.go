package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"campus-ledger/internal/auth"
	grantsapp "campus-ledger/internal/grants/application"
	grants "campus-ledger/internal/grants/domain"
)

// Handler handles scholarship and deferral grant APIs.
type Handler struct {
	service *grantsapp.GrantService
}

// NewHandler constructs a handler.
func NewHandler(service *grantsapp.GrantService) (*Handler, error) {
	if service == nil {
		return nil, errors.New("grants handler: nil grant service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles routes under /api/v1/scholarships and
// /api/v1/deferrals.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/scholarships" && r.Method == http.MethodPost:
		h.handleGrantScholarship(w, r)
	case strings.HasPrefix(path, "/api/v1/scholarships/"):
		h.handleScholarship(w, r, strings.TrimPrefix(path, "/api/v1/scholarships/"))
	case path == "/api/v1/deferrals" && r.Method == http.MethodPost:
		h.handleGrantDeferral(w, r)
	case strings.HasPrefix(path, "/api/v1/deferrals/"):
		h.handleDeferral(w, r, strings.TrimPrefix(path, "/api/v1/deferrals/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGrantScholarship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GrantID       string `json:"grant_id"`
		BeneficiaryID string `json:"beneficiary_id"`
		Amount        string `json:"amount"`
		ValidUntil    string `json:"valid_until"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	cmd := grantsapp.GrantScholarshipCommand{
		GrantID:       req.GrantID,
		BeneficiaryID: req.BeneficiaryID,
		Amount:        amount,
	}
	if req.ValidUntil != "" {
		until, err := time.Parse("2006-01-02", req.ValidUntil)
		if err != nil {
			http.Error(w, "invalid valid_until", http.StatusBadRequest)
			return
		}
		cmd.ValidUntil = &until
	}

	grant, err := h.service.GrantScholarship(r.Context(), auth.ScopeFromContext(r.Context()), cmd)
	if err != nil {
		respondGrantError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(scholarshipResponse(grant))
}

// handleScholarship routes GET /{id} and POST /{id}/(suspend|reinstate|terminate).
func (h *Handler) handleScholarship(w http.ResponseWriter, r *http.Request, rest string) {
	grantID, action, hasAction := strings.Cut(rest, "/")
	if grantID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	scope := auth.ScopeFromContext(r.Context())

	if !hasAction {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		grant, err := h.service.Scholarship(r.Context(), grantID)
		if err != nil {
			respondGrantError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(scholarshipResponse(grant))
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var err error
	switch action {
	case "suspend":
		err = h.service.SuspendScholarship(r.Context(), scope, grantID)
	case "reinstate":
		err = h.service.ReinstateScholarship(r.Context(), scope, grantID)
	case "terminate":
		err = h.service.TerminateScholarship(r.Context(), scope, grantID)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		respondGrantError(w, err)
		return
	}
	grant, err := h.service.Scholarship(r.Context(), grantID)
	if err != nil {
		respondGrantError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(scholarshipResponse(grant))
}

func (h *Handler) handleGrantDeferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GrantID       string `json:"grant_id"`
		BeneficiaryID string `json:"beneficiary_id"`
		Amount        string `json:"amount"`
		DurationDays  int    `json:"duration_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	grant, err := h.service.GrantDeferral(r.Context(), auth.ScopeFromContext(r.Context()), grantsapp.GrantDeferralCommand{
		GrantID:       req.GrantID,
		BeneficiaryID: req.BeneficiaryID,
		Amount:        amount,
		DurationDays:  req.DurationDays,
	})
	if err != nil {
		respondGrantError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(deferralResponse(grant))
}

// handleDeferral routes GET /{id} and POST /{id}/honor.
func (h *Handler) handleDeferral(w http.ResponseWriter, r *http.Request, rest string) {
	grantID, action, hasAction := strings.Cut(rest, "/")
	if grantID == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if !hasAction {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		grant, err := h.service.Deferral(r.Context(), grantID)
		if err != nil {
			respondGrantError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(deferralResponse(grant))
		return
	}

	if action != "honor" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.service.HonorDeferral(r.Context(), auth.ScopeFromContext(r.Context()), grantID); err != nil {
		respondGrantError(w, err)
		return
	}
	grant, err := h.service.Deferral(r.Context(), grantID)
	if err != nil {
		respondGrantError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(deferralResponse(grant))
}

func scholarshipResponse(grant *grants.ScholarshipGrant) map[string]any {
	resp := map[string]any{
		"grant_id":       grant.ID(),
		"beneficiary_id": grant.BeneficiaryID(),
		"granted_by":     grant.GrantedBy(),
		"amount":         grant.Amount().String(),
		"status":         string(grant.Status()),
		"granted_at":     grant.GrantedAt().Format("2006-01-02"),
	}
	if until := grant.ValidUntil(); until != nil {
		resp["valid_until"] = until.Format("2006-01-02")
	}
	return resp
}

func deferralResponse(grant *grants.DeferralGrant) map[string]any {
	return map[string]any{
		"grant_id":       grant.ID(),
		"beneficiary_id": grant.BeneficiaryID(),
		"granted_by":     grant.GrantedBy(),
		"amount":         grant.Amount().String(),
		"duration_days":  grant.DurationDays(),
		"status":         string(grant.Status()),
		"granted_at":     grant.GrantedAt().Format("2006-01-02"),
		"end_date":       grant.EndDate().Format("2006-01-02"),
	}
}

func respondGrantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grants.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, grants.ErrPolicyViolation):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
