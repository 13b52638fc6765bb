package store

import (
	"bufio"
	"context"
	"database/sql/driver"
	"embed"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"

	"gitlab.com/dirk.krummacker/contactbook/internal/config"
	"gitlab.com/dirk.krummacker/contactbook/internal/model"
)

//go:embed schema/*.sql
var schemas embed.FS

func init() {
	// The sqlite driver registers itself as "sqlite", which sqlx does not know yet.
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
	// LOWER in SQLite only folds ASCII letters.
	sqlite.MustRegisterDeterministicScalarFunction(unicodeLower, 1, lowerText)
}

// unicodeLower is the SQLite function that lowercases text like strings.ToLower.
const unicodeLower = "unicode_lower"

func lowerText(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Open connects to the database described by cfg and checks that it is reachable.
func Open(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	var dsn string
	switch cfg.Driver {
	case config.DriverMySQL:
		dsn = MySQLDSN(cfg)
	case config.DriverSQLite:
		dsn = SQLiteDSN(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// SQLite serializes writers anyway; a single connection avoids busy errors.
		db.SetMaxOpenConns(1)
	}

	log.Debug().Str("driver", cfg.Driver).Str("host", cfg.Host).Str("path", cfg.Path).Msg("Database connection established")
	return db, nil
}

// MySQLDSN builds the data source name for the mysql driver. Dates are parsed into time.Time.
func MySQLDSN(cfg config.Database) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN()
}

// SQLiteDSN builds the data source name for the sqlite driver with foreign keys enforced.
func SQLiteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Migrate creates the tables for the driver of db if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	schema, err := schemas.Open("schema/" + db.DriverName() + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for database driver %q: %w", db.DriverName(), err)
	}
	defer schema.Close()

	log.Info().Str("driver", db.DriverName()).Msg("Applying database schema")
	return ExecScript(ctx, db, schema)
}

// ExecScript executes the SQL statements read from r one after another. Statements end with a
// semicolon at the end of a line; lines starting with "--" are comments.
func ExecScript(ctx context.Context, db *sqlx.DB, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	builder := strings.Builder{}
	count := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			count++
			if _, err := db.ExecContext(ctx, builder.String()); err != nil {
				return fmt.Errorf("statement %d failed: %w", count, err)
			}
			builder.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		count++
		if _, err := db.ExecContext(ctx, rest); err != nil {
			return fmt.Errorf("statement %d failed: %w", count, err)
		}
	}
	log.Debug().Int("statements", count).Msg("Script executed")
	return nil
}

// EnsureOwner makes sure that a users row exists for owner, so that contacts can reference it.
func EnsureOwner(ctx context.Context, db *sqlx.DB, owner model.OwnerID, email string) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE id = ?`, owner); err != nil {
		return fmt.Errorf("failed to look up owner %d: %w", owner, err)
	}
	if count > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO users (id, email) VALUES (?, ?)`, owner, email); err != nil {
		return fmt.Errorf("failed to create owner %d: %w", owner, err)
	}
	return nil
}
