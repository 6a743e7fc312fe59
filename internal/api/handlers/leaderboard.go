package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/leaderboard"
)

// LeaderboardHandler handles leaderboard and ledger audit endpoints
type LeaderboardHandler struct {
	board      *leaderboard.Service
	auditor    domain.LedgerAuditor
	adminToken string
}

// NewLeaderboardHandler creates a new leaderboard handler. The audit
// endpoint is disabled when adminToken is empty.
func NewLeaderboardHandler(board *leaderboard.Service, auditor domain.LedgerAuditor, adminToken string) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, auditor: auditor, adminToken: adminToken}
}

// Top returns the highest scoring accounts
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", h.board.Size())
	if !ok {
		return
	}
	if limit > leaderboard.MaxSize {
		limit = leaderboard.MaxSize
	}

	standings, err := h.board.Top(r.Context(), limit)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if standings == nil {
		standings = []domain.Standing{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"standings": standings,
		"total":     len(standings),
	})
}

// Audit lists accounts whose score disagrees with their solves and unlocks
func (h *LeaderboardHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		Forbidden(w, r, "audit is disabled")
		return
	}
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		Unauthorized(w, r, "admin token required")
		return
	}

	discrepancies, err := h.auditor.Audit(r.Context())
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if discrepancies == nil {
		discrepancies = []domain.LedgerDiscrepancy{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"consistent":    len(discrepancies) == 0,
		"discrepancies": discrepancies,
	})
}
