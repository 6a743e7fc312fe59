package mcp

import (
	"context"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/leaderboard"
	"github.com/felixgeelhaar/arise/internal/scoring"
)

// Server exposes the scoring engine as MCP tools
type Server struct {
	mcpServer   *server.Server
	scoring     *scoring.Service
	leaderboard *leaderboard.Service
}

// Config contains configuration for the MCP server
type Config struct {
	Scoring     *scoring.Service
	Leaderboard *leaderboard.Service
	Version     string
}

// NewServer creates a new MCP server for Arise
func NewServer(cfg Config) *Server {
	s := &Server{
		scoring:     cfg.Scoring,
		leaderboard: cfg.Leaderboard,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "arise",
		Version: version,
	}, server.WithInstructions(`
Arise is a capture-the-flag scoring engine.
Players solve challenges by submitting flags and may spend score on hints.

Available tools:
- arise_challenges: List challenges with a player's progress
- arise_account: Show a player's score and rank
- arise_submit: Submit a flag for a challenge
- arise_unlock_hint: Spend score to reveal a challenge hint
- arise_leaderboard: Show the highest scoring players

Ranks: E below 500, D from 500, C from 1000, B from 2500, A from 5000, S from 10000.
`))

	s.registerTools()

	return s
}

// registerTools registers all Arise MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("arise_challenges").
		Description("List the challenge catalog. With a user ID the list shows solved challenges and unlocked hints.").
		Handler(s.handleChallenges)

	s.mcpServer.Tool("arise_account").
		Description("Show a player's score, rank and progress toward the next rank.").
		Handler(s.handleAccount)

	s.mcpServer.Tool("arise_submit").
		Description("Submit a flag. Only the first correct flag for a challenge awards points.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("arise_unlock_hint").
		Description("Spend score to reveal a challenge hint. Fails without charge if the score is too low.").
		Handler(s.handleUnlockHint)

	s.mcpServer.Tool("arise_leaderboard").
		Description("Show the highest scoring players.").
		Handler(s.handleLeaderboard)
}

// Input/Output types for tools

type ChallengesInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"description=Player UUID; omit for the public catalog"`
}

type ChallengeItem struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	Points       int    `json:"points"`
	HintCost     int    `json:"hint_cost"`
	Solved       bool   `json:"solved"`
	HintUnlocked bool   `json:"hint_unlocked"`
	Hint         string `json:"hint,omitempty"`
}

type ChallengesOutput struct {
	Challenges []ChallengeItem `json:"challenges"`
	Solved     int             `json:"solved"`
	Total      int             `json:"total"`
}

type AccountInput struct {
	UserID string `json:"user_id" jsonschema:"description=Player UUID"`
}

type AccountOutput struct {
	UserID           string `json:"user_id"`
	Username         string `json:"username"`
	Score            int    `json:"score"`
	Rank             string `json:"rank"`
	Solved           int    `json:"solved"`
	HintsUnlocked    int    `json:"hints_unlocked"`
	NextRank         string `json:"next_rank,omitempty"`
	PointsToNextRank int    `json:"points_to_next_rank,omitempty"`
}

type SubmitInput struct {
	UserID      string `json:"user_id" jsonschema:"description=Player UUID"`
	ChallengeID int64  `json:"challenge_id" jsonschema:"description=Challenge ID from arise_challenges"`
	Flag        string `json:"flag" jsonschema:"description=Flag text, e.g. flag{...}"`
}

type SubmitOutput struct {
	Outcome      string `json:"outcome"`
	Correct      bool   `json:"correct"`
	PointsAdded  int    `json:"points_added"`
	Score        int    `json:"score"`
	Rank         string `json:"rank"`
	PreviousRank string `json:"previous_rank"`
	Message      string `json:"message"`
}

type UnlockHintInput struct {
	UserID      string `json:"user_id" jsonschema:"description=Player UUID"`
	ChallengeID int64  `json:"challenge_id" jsonschema:"description=Challenge ID from arise_challenges"`
}

type UnlockHintOutput struct {
	Outcome      string `json:"outcome"`
	Hint         string `json:"hint,omitempty"`
	CostDeducted int    `json:"cost_deducted"`
	Score        int    `json:"score"`
	Rank         string `json:"rank"`
	Message      string `json:"message"`
}

type LeaderboardInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Number of players to show (default 10 max 100)"`
}

type LeaderboardOutput struct {
	Standings []domain.Standing `json:"standings"`
	Summary   string            `json:"summary"`
}

// Handlers

func (s *Server) handleChallenges(ctx context.Context, input ChallengesInput) (ChallengesOutput, error) {
	userID := uuid.Nil
	if input.UserID != "" {
		id, err := parseUserID(input.UserID)
		if err != nil {
			return ChallengesOutput{}, err
		}
		userID = id
	}

	challenges, err := s.scoring.Challenges(ctx, userID)
	if err != nil {
		return ChallengesOutput{}, fmt.Errorf("list challenges: %w", err)
	}

	output := ChallengesOutput{
		Challenges: make([]ChallengeItem, 0, len(challenges)),
		Total:      len(challenges),
	}
	for _, c := range challenges {
		output.Challenges = append(output.Challenges, ChallengeItem{
			ID:           c.ID,
			Title:        c.Title,
			Category:     string(c.Category),
			Points:       c.Points,
			HintCost:     c.HintCost,
			Solved:       c.Solved,
			HintUnlocked: c.HintUnlocked,
			Hint:         c.Hint,
		})
		if c.Solved {
			output.Solved++
		}
	}
	return output, nil
}

func (s *Server) handleAccount(ctx context.Context, input AccountInput) (AccountOutput, error) {
	userID, err := parseUserID(input.UserID)
	if err != nil {
		return AccountOutput{}, err
	}

	summary, err := s.scoring.Account(ctx, userID)
	if err != nil {
		return AccountOutput{}, fmt.Errorf("get account: %w", err)
	}

	return AccountOutput{
		UserID:           summary.ID.String(),
		Username:         summary.Username,
		Score:            summary.Score,
		Rank:             string(summary.Rank),
		Solved:           summary.Solved,
		HintsUnlocked:    summary.HintsUnlocked,
		NextRank:         string(summary.NextRank),
		PointsToNextRank: summary.PointsToNextRank,
	}, nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	userID, err := parseUserID(input.UserID)
	if err != nil {
		return SubmitOutput{}, err
	}

	result, err := s.scoring.Submit(ctx, userID, input.ChallengeID, input.Flag)
	if err != nil {
		return SubmitOutput{}, fmt.Errorf("submit flag: %w", err)
	}

	message := result.Message()
	if result.RankChanged() {
		message = fmt.Sprintf("%s. Rank %s -> %s", message, result.PreviousRank, result.Rank)
	}

	return SubmitOutput{
		Outcome:      string(result.Outcome),
		Correct:      result.Correct(),
		PointsAdded:  result.PointsAwarded,
		Score:        result.Score,
		Rank:         string(result.Rank),
		PreviousRank: string(result.PreviousRank),
		Message:      message,
	}, nil
}

func (s *Server) handleUnlockHint(ctx context.Context, input UnlockHintInput) (UnlockHintOutput, error) {
	userID, err := parseUserID(input.UserID)
	if err != nil {
		return UnlockHintOutput{}, err
	}

	result, err := s.scoring.UnlockHint(ctx, userID, input.ChallengeID)
	if err != nil {
		return UnlockHintOutput{}, fmt.Errorf("unlock hint: %w", err)
	}

	return UnlockHintOutput{
		Outcome:      string(result.Outcome),
		Hint:         result.Hint,
		CostDeducted: result.CostDeducted,
		Score:        result.Score,
		Rank:         string(result.Rank),
		Message:      result.Message(),
	}, nil
}

func (s *Server) handleLeaderboard(ctx context.Context, input LeaderboardInput) (LeaderboardOutput, error) {
	standings, err := s.leaderboard.Top(ctx, input.Limit)
	if err != nil {
		return LeaderboardOutput{}, fmt.Errorf("read leaderboard: %w", err)
	}

	var summary strings.Builder
	for _, st := range standings {
		name := st.Username
		if st.Guild != "" {
			name = fmt.Sprintf("%s [%s]", st.Username, st.Guild)
		}
		fmt.Fprintf(&summary, "%d. %s %d (%s)\n", st.Position, name, st.Score, st.Rank)
	}
	if len(standings) == 0 {
		summary.WriteString("No players yet")
	}

	return LeaderboardOutput{
		Standings: standings,
		Summary:   strings.TrimRight(summary.String(), "\n"),
	}, nil
}

func parseUserID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: user_id must be a UUID", domain.ErrInvalidInput)
	}
	return id, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
