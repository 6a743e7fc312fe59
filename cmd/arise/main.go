package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/felixgeelhaar/arise/internal/api"
	"github.com/felixgeelhaar/arise/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Keep stdout for command output; MCP uses it as transport
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "seed":
		err = cmdSeed()
	case "account":
		err = cmdAccount(args)
	case "challenges":
		err = cmdChallenges(args)
	case "submit":
		err = cmdSubmit(args)
	case "hint":
		err = cmdHint(args)
	case "leaderboard":
		err = cmdLeaderboard(args)
	case "audit":
		err = cmdAudit()
	case "config":
		err = cmdConfig(args)
	case "mcp":
		err = cmdMCP(args)
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("arise %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Arise - CTF scoring engine

Usage:
  arise <command> [arguments]

Player Commands:
  account create <username> [user-id] [--guild name]
                                        Provision a scoring account
  account show <user-id>                Show score, rank and progress
  account ledger <user-id> [limit]      Show score history
  challenges [user-id]                  List challenges
  submit <user-id> <challenge> <flag>   Submit a flag
  hint <user-id> <challenge>            Spend score on a hint

Admin Commands:
  seed                                  Load the challenge catalog into the store
  leaderboard [limit]                   Show the top players
  audit                                 Check every score against solves and hints
  config show                           Show the effective configuration
  config init [path]                    Write a config file

Integration Commands:
  mcp [--http addr]                     Start MCP server (stdio by default)

Other:
  help                                  Show this help message
  version                               Show version information

Configuration is read from ARISE_CONFIG and environment variables
(STORE_DRIVER, SQLITE_PATH, DATABASE_URL, REDIS_ADDR, RABBITMQ_URL, ...).`)
}

// openApp loads configuration and wires the engine in-process
func openApp(ctx context.Context) (*api.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDataDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return api.NewApp(ctx, cfg)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func usageError(usage string) error {
	return fmt.Errorf("usage: arise %s", usage)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
