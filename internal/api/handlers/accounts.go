package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/scoring"
)

const defaultLedgerLimit = 50

// AccountHandler handles account endpoints
type AccountHandler struct {
	service  *scoring.Service
	ledger   domain.LedgerReader
	validate *requestValidator
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service *scoring.Service, ledger domain.LedgerReader) *AccountHandler {
	return &AccountHandler{
		service:  service,
		ledger:   ledger,
		validate: newRequestValidator(),
	}
}

// CreateAccountRequest is the request body for provisioning an account.
// UserID is generated when omitted.
type CreateAccountRequest struct {
	UserID   string `json:"user_id" validate:"omitempty,uuid"`
	Username string `json:"username" validate:"required,max=64"`
	Guild    string `json:"guild" validate:"omitempty,max=64"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Guild    string      `json:"guild,omitempty"`
	Score    int         `json:"score"`
	Rank     domain.Rank `json:"rank"`
}

// Create provisions a scoring account
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !h.validate.decode(w, r, &req) {
		return
	}

	userID := uuid.New()
	if req.UserID != "" {
		userID = uuid.MustParse(req.UserID)
	}

	account, err := h.service.ProvisionAccount(r.Context(), userID, strings.TrimSpace(req.Username), scoring.WithGuild(req.Guild))
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, AccountResponse{
		ID:       account.ID.String(),
		Username: account.Username,
		Guild:    account.Guild,
		Score:    account.Score,
		Rank:     domain.RankFor(account.Score),
	})
}

// Get returns an account with its progress counters
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.service.Account(r.Context(), userID)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// Ledger returns the account's score journal, newest first
func (h *AccountHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", defaultLedgerLimit)
	if !ok {
		return
	}

	// 404 for unknown accounts rather than an empty journal
	if _, err := h.service.Account(r.Context(), userID); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	entries, err := h.ledger.History(r.Context(), userID, limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}
