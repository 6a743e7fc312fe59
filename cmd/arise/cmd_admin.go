package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/arise/internal/config"
)

// cmdSeed loads the catalog; NewApp seeds it on open
func cmdSeed() error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Printf("Seeded %d challenges (max score %d) into the %s store\n",
		app.Catalog.Len(), app.Catalog.MaxScore(), app.Config.StoreDriver)
	return nil
}

func cmdLeaderboard(args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("limit must be a positive integer")
		}
		limit = n
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	standings, err := app.Leaderboard.Top(ctx, limit)
	if err != nil {
		return err
	}
	if len(standings) == 0 {
		fmt.Println("No players yet")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPLAYER\tGUILD\tSCORE\tRANK")
	for _, s := range standings {
		guild := s.Guild
		if guild == "" {
			guild = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", s.Position, s.Username, guild, s.Score, s.Rank)
	}
	return tw.Flush()
}

func cmdAudit() error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	discrepancies, err := app.Reads.Audit(ctx)
	if err != nil {
		return err
	}
	if len(discrepancies) == 0 {
		fmt.Println("All scores match their solves and hint unlocks")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tUSER ID\tSCORE\tEXPECTED")
	for _, d := range discrepancies {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", d.Username, d.UserID, d.Score, d.Expected)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return fmt.Errorf("%d accounts out of balance", len(discrepancies))
}

func cmdConfig(args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "show":
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		if cfg.AdminToken != "" {
			fmt.Println("# admin token: set")
		}
		return nil

	case "init":
		cfg := config.Default()
		path := filepath.Join(cfg.DataDir, "config.yaml")
		if len(args) > 1 {
			path = args[1]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := cfg.SaveFile(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\nUse it with ARISE_CONFIG=%s\n", path, path)
		return nil

	default:
		return usageError("config <show|init> [path]")
	}
}
