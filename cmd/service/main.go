package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/contactbook/internal/config"
	"gitlab.com/dirk.krummacker/contactbook/internal/logging"
	"gitlab.com/dirk.krummacker/contactbook/internal/model"
	"gitlab.com/dirk.krummacker/contactbook/internal/service"
	"gitlab.com/dirk.krummacker/contactbook/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	configPath string
	port       int
	migrate    bool
	verbosity  int
	owner      int64
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=secret JWT_SECRET=changeme GIN_MODE=release go run main.go --port 8080
// > DBDRIVER=sqlite DBPATH=contacts.db JWT_SECRET=changeme go run main.go --migrate
// > JWT_SECRET=changeme go run main.go token --owner 1
func main() {
	rootCmd := &cobra.Command{
		Use:   "contactbook",
		Short: "Contactbook - personal contacts REST service",
		Long:  `Contactbook serves the contacts of its users over a REST API. Every request is scoped to the owner named in its bearer token.`,
		RunE:  serve,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (default "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (overrides PORT env var)")
	rootCmd.Flags().BoolVar(&migrate, "migrate", false, "Create the database tables before serving")

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an owner",
		RunE:  issueToken,
	}
	tokenCmd.Flags().Int64Var(&owner, "owner", 0, "Owner id the token is issued for")
	_ = tokenCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(tokenCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("contactbook %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env, the configuration file and the environment, then sets up logging.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Log.Level = logging.LevelForVerbosity(verbosity, cfg.Log.Level)
	logging.Apply(cfg.Log)
	return cfg, nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.HTTP.Port = port
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth secret is required: set JWT_SECRET or auth.secret")
	}

	log.Info().
		Str("version", version).
		Int("port", cfg.HTTP.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting contactbook")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := store.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	contacts, err := store.New(db)
	if err != nil {
		return fmt.Errorf("failed to prepare statements: %w", err)
	}
	defer contacts.Close()

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	api := service.NewAPI(contacts, service.NewTokens(cfg.Auth.Secret, cfg.Auth.TTL))
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           service.SetupHttpRouter(api, cfg.HTTP.Logging),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Contactbook stopped")
	return nil
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth secret is required: set JWT_SECRET or auth.secret")
	}
	if owner <= 0 {
		return fmt.Errorf("invalid owner id %d", owner)
	}
	token, err := service.NewTokens(cfg.Auth.Secret, cfg.Auth.TTL).Sign(model.OwnerID(owner))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
