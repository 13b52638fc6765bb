package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/contactbook/internal/config"
	"gitlab.com/dirk.krummacker/contactbook/internal/logging"
	"gitlab.com/dirk.krummacker/contactbook/internal/model"
	"gitlab.com/dirk.krummacker/contactbook/internal/store"
)

var (
	configPath string
	file       string
	owner      int64
	ownerEmail string
	verbosity  int
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=secret go run main.go
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=secret go run main.go --file=../../scripts/database.sql
// > DBDRIVER=sqlite DBPATH=contacts.db go run main.go --owner 1 --owner-email dirk@example.com
func main() {
	rootCmd := &cobra.Command{
		Use:   "migration",
		Short: "Create the contactbook tables",
		Long:  `Applies the built-in schema for the configured database driver, or executes the statements of an SQL file instead.`,
		RunE:  run,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (default "+config.DefaultFile+" if present)")
	rootCmd.Flags().StringVarP(&file, "file", "f", "", "SQL file to execute instead of the built-in schema")
	rootCmd.Flags().Int64Var(&owner, "owner", 0, "Also create the user with this id")
	rootCmd.Flags().StringVar(&ownerEmail, "owner-email", "", "Email of the user created with --owner")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Log.Level = logging.LevelForVerbosity(verbosity, cfg.Log.Level)
	cfg.Log.File = ""
	logging.Apply(cfg.Log)

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if file == "" {
		err = store.Migrate(ctx, db)
	} else {
		err = execFile(ctx, db)
	}
	if err != nil {
		return err
	}

	if owner != 0 {
		if owner < 0 {
			return fmt.Errorf("invalid owner id %d", owner)
		}
		if err := store.EnsureOwner(ctx, db, model.OwnerID(owner), ownerEmail); err != nil {
			return err
		}
		log.Info().Int64("owner", owner).Msg("Owner ready")
	}
	log.Info().Msg("Migration finished")
	return nil
}

// execFile runs the statements of the SQL file given with --file.
func execFile(ctx context.Context, db *sqlx.DB) error {
	readFile, err := os.Open(file) // nosemgrep
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer readFile.Close()

	log.Info().Str("file", file).Msg("Executing SQL file")
	return store.ExecScript(ctx, db, readFile)
}
