package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	url      string
	interval time.Duration
	timeout  time.Duration
)

// Usage example on the command line:
// > go run main.go --url http://localhost:8080/health --timeout 2m
func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}).With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:   "wait-until-available",
		Short: "Wait until the contacts service answers its health check",
		Run: func(cmd *cobra.Command, args []string) {
			if !waitUntilAvailable(newClient(interval), url, interval, timeout) {
				os.Exit(1)
			}
		},
	}
	rootCmd.Flags().StringVar(&url, "url", "http://localhost:8080/health", "Health check URL")
	rootCmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Time between two attempts")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this time (0 waits forever)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient returns a client that gives up on a single attempt after interval.
func newClient(interval time.Duration) *http.Client {
	return &http.Client{Timeout: interval}
}

// waitUntilAvailable polls url until it answers with 200 OK. It returns false if timeout passes
// first.
func waitUntilAvailable(client *http.Client, url string, interval time.Duration, timeout time.Duration) bool {
	start := time.Now()
	for {
		res, err := client.Get(url)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				log.Info().Str("url", url).Dur("waited", time.Since(start)).Msg("Service is available")
				return true
			}
			log.Info().Int("status", res.StatusCode).Msg("Service not ready")
		} else {
			log.Info().Err(err).Msg("Service not reachable")
		}
		if timeout > 0 && time.Since(start)+interval > timeout {
			log.Error().Dur("timeout", timeout).Msg("Gave up waiting for the service")
			return false
		}
		log.Info().Dur("waited", time.Since(start).Round(time.Second)).Msg("Waiting")
		time.Sleep(interval)
	}
}
