package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/arkvault/internal"
	pkgconfig "github.com/starford/arkvault/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func baseOptions(cmd *cli.Command, cfg *internal.Config) []internal.Option {
	opts := []internal.Option{internal.WithConfig(cfg), internal.WithVersion(version)}
	if root := cmd.String("root"); root != "" {
		opts = append(opts, internal.WithRoot(root))
	}
	return opts
}

func runCollisions(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := baseOptions(cmd, cfg)
	if cmd.Args().Present() {
		opts = append(opts, internal.WithRoot(cmd.Args().First()))
	}
	return internal.Run(ctx, opts...)
}

func runMonitor(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := baseOptions(cmd, cfg)
	if cmd.NArg() > 0 {
		opts = append(opts, internal.WithRoot(cmd.Args().Get(0)))
	}
	interval := cfg.Index.Interval
	if cmd.NArg() > 1 {
		ms, err := strconv.ParseUint(cmd.Args().Get(1), 10, 32)
		if err != nil || ms == 0 {
			return fmt.Errorf("interval must be a positive number of milliseconds, got %q", cmd.Args().Get(1))
		}
		interval = time.Duration(ms) * time.Millisecond
	}
	if interval <= 0 {
		interval = time.Second
	}
	opts = append(opts, internal.WithInterval(interval))
	return internal.Run(ctx, opts...)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := baseOptions(cmd, cfg)
	if cmd.Args().Present() {
		opts = append(opts, internal.WithRoot(cmd.Args().First()))
	}
	return internal.RunMCP(ctx, opts...)
}

// fileAction builds the action of a file subcommand taking the given
// positional arguments after <storage>.
func fileAction(op string, args ...string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		want := 1 + len(args)
		if cmd.NArg() != want {
			return fmt.Errorf("%s: expected %d arguments, got %d", op, want, cmd.NArg())
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fc := internal.FileCommand{
			Op:       op,
			Storage:  cmd.Args().Get(0),
			Kind:     cmd.String("type"),
			Format:   cmd.String("format"),
			Versions: cmd.Bool("versions"),
		}
		if len(args) > 0 {
			fc.ID = cmd.Args().Get(1)
		}
		if len(args) > 1 {
			fc.Content = cmd.Args().Get(2)
		}
		return internal.RunFile(ctx, fc, baseOptions(cmd, cfg)...)
	}
}

func typeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "type",
		Usage: "Storage type when it cannot be inferred: file or folder",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: "Value encoding: raw or json",
		Value: "raw",
	}
}

func main() {

	cmd := &cli.Command{
		Name:    "ark",
		Usage:   "Versioned resource storage and directory index monitor",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("ARK_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Root directory (overrides root.path)",
				Sources: cli.EnvVars("ARK_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "file",
				Usage: "Read and write values in a named storage",
				Commands: []*cli.Command{
					{
						Name:      "append",
						Usage:     "Append content to the value of a resource",
						ArgsUsage: "<storage> <id> <content>",
						Flags:     []cli.Flag{typeFlag(), formatFlag()},
						Action:    fileAction("append", "id", "content"),
					},
					{
						Name:      "insert",
						Usage:     "Replace the value of a resource",
						ArgsUsage: "<storage> <id> <content>",
						Flags:     []cli.Flag{typeFlag(), formatFlag()},
						Action:    fileAction("insert", "id", "content"),
					},
					{
						Name:      "read",
						Usage:     "Print the value of a resource",
						ArgsUsage: "<storage> <id>",
						Flags:     []cli.Flag{typeFlag()},
						Action:    fileAction("read", "id"),
					},
					{
						Name:      "list",
						Usage:     "Print every value in a storage",
						ArgsUsage: "<storage>",
						Flags: []cli.Flag{
							typeFlag(),
							&cli.BoolFlag{Name: "versions", Usage: "One line per retained generation"},
						},
						Action: fileAction("list"),
					},
				},
			},
			{
				Name:      "collisions",
				Usage:     "Index a directory once and report identifier collisions",
				ArgsUsage: "[root]",
				Action:    runCollisions,
			},
			{
				Name:      "monitor",
				Usage:     "Keep the index of a directory fresh and report changes",
				ArgsUsage: "[root] [interval-ms]",
				Action:    runMonitor,
			},
			{
				Name:      "mcp",
				Usage:     "Serve the storage tools over MCP stdio",
				ArgsUsage: "[root]",
				Action:    runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
