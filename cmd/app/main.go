package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/marginalia/internal"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/parser"
	pkgconfig "github.com/starford/marginalia/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// extractNotes prints the extracted notes as a JSON array. Files that fail
// are reported on stderr and make the command fail once all are printed.
func extractNotes(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("at least one note path is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := cfg.IndexOptions().Parser

	notes := []*models.Note{}
	var errs []error
	for _, path := range cmd.Args().Slice() {
		note, err := parser.FromPath(path, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			errs = append(errs, err)
			continue
		}
		notes = append(notes, note)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(notes); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d notes failed", len(errs), cmd.Args().Len())
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "marginalia",
		Usage:   "Personal knowledge base over Markdown and markup notes: tags, links, search and graph",
		Version: version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (defaults apply when it is missing)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "note",
				Usage:     "Extract notes and print them as JSON",
				ArgsUsage: "<path>...",
				Action:    extractNotes,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdin/stdout",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
