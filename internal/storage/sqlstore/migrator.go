package sqlstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigrationState описывает текущее состояние схемы.
type MigrationState struct {
	// Version последней применённой миграции, 0 если схема пуста.
	Version uint
	// Dirty: миграция упала на середине и требует ручного вмешательства.
	Dirty bool
}

// Migrator применяет встроенные миграции соответствующего диалекта.
type Migrator struct {
	m      *migrate.Migrate
	logger *log.Entry
}

// NewMigrator открывает отдельное подключение для golang-migrate.
// Для SQLite dsn должен указывать на файл: ":memory:" у мигратора был бы свой.
func NewMigrator(driver, dsn string, logger *log.Entry) (*Migrator, error) {
	if logger == nil {
		logger = log.WithField("component", "migrator")
	}

	src, err := migrationSource(driver)
	if err != nil {
		return nil, err
	}
	url, err := migrationURL(driver, dsn)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	m.Log = migrateLogger{entry: logger}

	return &Migrator{m: m, logger: logger}, nil
}

func migrationSource(driver string) (source.Driver, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	d, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	return d, nil
}

// migrationURL приводит DSN приложения к URL драйвера golang-migrate.
func migrationURL(driver, dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	switch driver {
	case DriverPostgres:
		for _, prefix := range []string{"postgres://", "postgresql://"} {
			if strings.HasPrefix(dsn, prefix) {
				return "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
			}
		}
		return "", fmt.Errorf("postgres dsn must be a postgres:// url")
	case DriverSQLite:
		path := strings.TrimPrefix(dsn, "file:")
		if path == "" || strings.Contains(path, ":memory:") {
			return "", fmt.Errorf("sqlite migrations need a database file, got %q", dsn)
		}
		return "sqlite://" + path, nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", driver)
	}
}

// Up применяет миграции. steps=0 означает «все доступные».
func (mg *Migrator) Up(ctx context.Context, steps int) error {
	stop := mg.stopOnCancel(ctx)
	defer stop()

	var err error
	if steps > 0 {
		err = mg.m.Steps(steps)
	} else {
		err = mg.m.Up()
	}
	return mg.result("up", err)
}

// Down откатывает steps миграций; steps<=0 трактуется как один шаг.
func (mg *Migrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	stop := mg.stopOnCancel(ctx)
	defer stop()

	err := mg.m.Steps(-steps)
	if errors.Is(err, fs.ErrNotExist) {
		// Схема уже пуста.
		err = migrate.ErrNoChange
	}
	return mg.result("down", err)
}

// Reset откатывает все миграции.
func (mg *Migrator) Reset(ctx context.Context) error {
	stop := mg.stopOnCancel(ctx)
	defer stop()
	return mg.result("reset", mg.m.Down())
}

// Status возвращает текущую версию схемы.
func (mg *Migrator) Status(context.Context) (MigrationState, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationState{}, nil
	}
	if err != nil {
		return MigrationState{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationState{Version: version, Dirty: dirty}, nil
}

// Close освобождает подключение мигратора.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) result(direction string, err error) error {
	var short migrate.ErrShortLimit
	if errors.As(err, &short) {
		// Шагов запрошено больше, чем есть: применено всё доступное.
		mg.logger.WithFields(log.Fields{"direction": direction, "short": short.Short}).Info("migrations applied partially")
		return nil
	}
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.WithField("direction", direction).Info("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	mg.logger.WithField("direction", direction).Info("migrations applied")
	return nil
}

// stopOnCancel прерывает миграцию между шагами при отмене ctx.
func (mg *Migrator) stopOnCancel(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			select {
			case mg.m.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Migrate применяет все миграции и закрывает мигратор.
func Migrate(ctx context.Context, driver, dsn string, logger *log.Entry) error {
	mg, err := NewMigrator(driver, dsn, logger)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()
	return mg.Up(ctx, 0)
}

type migrateLogger struct {
	entry *log.Entry
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.entry.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func (l migrateLogger) Verbose() bool {
	return l.entry.Logger.IsLevelEnabled(log.DebugLevel)
}
