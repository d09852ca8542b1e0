// Command registrar-admin is an interactive console for the admin command
// surface (spec.md §4.7): status, verify, and help, read one line at a
// time from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dotsama/identity-registrar/admin"
	"github.com/dotsama/identity-registrar/config"
	"github.com/dotsama/identity-registrar/similarity"
	"github.com/dotsama/identity-registrar/store/sqlite"
	"github.com/dotsama/identity-registrar/verifier"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: search ./config.toml then /etc/registrar/config.toml)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.URI)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := verifier.NewEngine(db, similarity.NewChecker(cfg.Instance.AdapterListener.DisplayName.Limit))
	cmd := admin.NewCommand(engine, db, func() int64 { return time.Now().UnixMilli() })

	repl(cmd, os.Stdin, os.Stdout)
}

func loadConfig(explicitPath string) (*config.Config, string, error) {
	if explicitPath != "" {
		cfg, err := config.Load(explicitPath)
		return cfg, explicitPath, err
	}
	return config.LoadDefault()
}

func repl(cmd *admin.Command, in *os.File, out *os.File) {
	ctx := context.Background()
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			result, err := cmd.Execute(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, result)
			}
		}
		fmt.Fprint(out, "> ")
	}
}
