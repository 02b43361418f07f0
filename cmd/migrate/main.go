package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlstore"
)

const (
	defaultTimeout = 30 * time.Second

	envDriver = "STOREFRONT_STORAGE_DRIVER"
	envDSN    = "STOREFRONT_DATABASE_DSN"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

// run разбирает флаги и выполняет одну команду мигратора.
func run(ctx context.Context, args []string, lookup func(string) (string, bool), out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		direction string
		steps     int
		driver    string
		dsn       string
	)
	fs.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&driver, "driver", "", "postgres|sqlite (fallback: "+envDriver+", default postgres)")
	fs.StringVar(&dsn, "dsn", "", "database DSN (fallback: "+envDSN+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	driver = firstNonEmpty(driver, envValue(lookup, envDriver), "postgres")
	dsn = firstNonEmpty(dsn, envValue(lookup, envDSN))
	if dsn == "" {
		return errors.New(envDSN + " (or -dsn) is required")
	}

	migrator, err := sqlstore.NewMigrator(strings.ToLower(driver), dsn, log.WithField("component", "migrate"))
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	direction = strings.ToLower(strings.TrimSpace(direction))
	switch direction {
	case "up":
		err = migrator.Up(ctx, steps)
	case "down":
		err = migrator.Down(ctx, steps)
	case "status":
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}
	if err != nil {
		return fmt.Errorf("migrate %s failed: %w", direction, err)
	}

	state, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "migrate %s ok: version=%d dirty=%t\n", direction, state.Version, state.Dirty)
	return nil
}

func envValue(lookup func(string) (string, bool), key string) string {
	if lookup == nil {
		return ""
	}
	v, _ := lookup(key)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
