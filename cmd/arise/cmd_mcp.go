package main

import (
	"fmt"

	mcpserver "github.com/felixgeelhaar/arise/internal/mcp"
)

// cmdMCP starts the MCP server on stdio, or on HTTP with --http <addr>
func cmdMCP(args []string) error {
	httpAddr := ""
	if len(args) > 0 {
		if args[0] != "--http" || len(args) < 2 {
			return usageError("mcp [--http addr]")
		}
		httpAddr = args[1]
	}

	ctx, cancel := signalContext()
	defer cancel()

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	srv := mcpserver.NewServer(mcpserver.Config{
		Scoring:     app.Scoring,
		Leaderboard: app.Leaderboard,
		Version:     Version,
	})

	if httpAddr != "" {
		return srv.ServeHTTP(ctx, httpAddr)
	}
	return srv.ServeStdio(ctx)
}
