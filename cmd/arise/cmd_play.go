package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/scoring"
)

func cmdAccount(args []string) error {
	if len(args) < 1 {
		return usageError("account <create|show|ledger> ...")
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	switch args[0] {
	case "create":
		rest, guild := splitGuildFlag(args[1:])
		if len(rest) < 1 {
			return usageError("account create <username> [user-id] [--guild name]")
		}
		id := uuid.New()
		if len(rest) > 1 {
			if id, err = uuid.Parse(rest[1]); err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
		}
		account, err := app.Scoring.ProvisionAccount(ctx, id, rest[0], scoring.WithGuild(guild))
		if err != nil {
			return err
		}
		fmt.Printf("Account %s created for %s (score %d, rank %s)\n", account.ID, account.Username, account.Score, account.Rank)

	case "show":
		id, err := parseUserArg(args, 1, "account show <user-id>")
		if err != nil {
			return err
		}
		summary, err := app.Scoring.Account(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Player:   %s (%s)\n", summary.Username, summary.ID)
		if summary.Guild != "" {
			fmt.Printf("Guild:    %s\n", summary.Guild)
		}
		fmt.Printf("Score:    %d\n", summary.Score)
		fmt.Printf("Rank:     %s\n", summary.Rank)
		fmt.Printf("Solved:   %d\n", summary.Solved)
		fmt.Printf("Hints:    %d\n", summary.HintsUnlocked)
		if summary.NextRank != "" {
			fmt.Printf("Next:     %s in %d points\n", summary.NextRank, summary.PointsToNextRank)
		}

	case "ledger":
		id, err := parseUserArg(args, 1, "account ledger <user-id> [limit]")
		if err != nil {
			return err
		}
		limit := 20
		if len(args) > 2 {
			if limit, err = strconv.Atoi(args[2]); err != nil || limit <= 0 {
				return fmt.Errorf("limit must be a positive integer")
			}
		}
		if _, err := app.Scoring.Account(ctx, id); err != nil {
			return err
		}
		entries, err := app.Reads.History(ctx, id, limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tKIND\tCHALLENGE\tDELTA\tBALANCE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%+d\t%d\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.ChallengeID, e.Delta, e.BalanceAfter)
		}
		return tw.Flush()

	default:
		return usageError("account <create|show|ledger> ...")
	}
	return nil
}

func cmdChallenges(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	userID := uuid.Nil
	if len(args) > 0 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		userID = id
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	challenges, err := app.Scoring.Challenges(ctx, userID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tPOINTS\tHINT\tSOLVED\tTITLE")
	for _, c := range challenges {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n", c.ID, c.Category, c.Points, c.HintCost, yesNo(c.Solved), truncate(c.Title, 40))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, c := range challenges {
		if c.HintUnlocked {
			fmt.Printf("\nHint for %d: %s\n", c.ID, c.Hint)
		}
	}
	return nil
}

func cmdSubmit(args []string) error {
	if len(args) < 3 {
		return usageError("submit <user-id> <challenge> <flag>")
	}
	userID, err := parseUserArg(args, 0, "submit <user-id> <challenge> <flag>")
	if err != nil {
		return err
	}
	challengeID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid challenge id %q", args[1])
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Scoring.Submit(ctx, userID, challengeID, args[2])
	if err != nil {
		return err
	}

	fmt.Println(result.Message())
	if result.PointsAwarded > 0 {
		fmt.Printf("+%d points\n", result.PointsAwarded)
	}
	fmt.Printf("Score: %d  Rank: %s\n", result.Score, result.Rank)
	if result.RankChanged() {
		fmt.Printf("Rank up: %s -> %s\n", result.PreviousRank, result.Rank)
	}
	return nil
}

func cmdHint(args []string) error {
	if len(args) < 2 {
		return usageError("hint <user-id> <challenge>")
	}
	userID, err := parseUserArg(args, 0, "hint <user-id> <challenge>")
	if err != nil {
		return err
	}
	challengeID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid challenge id %q", args[1])
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Scoring.UnlockHint(ctx, userID, challengeID)
	if err != nil {
		return err
	}

	fmt.Println(result.Message())
	if result.Hint != "" {
		fmt.Printf("Hint: %s\n", result.Hint)
	}
	if result.CostDeducted > 0 {
		fmt.Printf("-%d points\n", result.CostDeducted)
	}
	fmt.Printf("Score: %d  Rank: %s\n", result.Score, result.Rank)
	return nil
}

// splitGuildFlag removes "--guild <name>" from args
func splitGuildFlag(args []string) ([]string, string) {
	var rest []string
	guild := ""
	for i := 0; i < len(args); i++ {
		if args[i] == "--guild" && i+1 < len(args) {
			guild = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return rest, guild
}

func parseUserArg(args []string, i int, usage string) (uuid.UUID, error) {
	if len(args) <= i {
		return uuid.Nil, usageError(usage)
	}
	id, err := uuid.Parse(args[i])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	return id, nil
}
