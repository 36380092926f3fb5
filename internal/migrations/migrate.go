package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Up applies every pending migration to db.
func Up(db *sql.DB, dialect string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "sql"); err != nil {
		return fmt.Errorf("failed to run up migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Info().Str("dialect", dialect).Int64("version", version).Msg("[Migrations] schema up to date")
	return nil
}

// MigratePostgres opens a short-lived database/sql handle through the pgx
// stdlib driver, since goose does not speak pgxpool.
func MigratePostgres(url string) error {
	migrationDB, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open db for migrations: %w", err)
	}
	defer migrationDB.Close()

	return Up(migrationDB, DialectPostgres)
}
