// cmd/novelctl/main.go
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/novelmovie/novelmovie/internal/app"
	"github.com/novelmovie/novelmovie/internal/auth"
	"github.com/novelmovie/novelmovie/internal/config"
	"github.com/novelmovie/novelmovie/internal/db"
	"github.com/novelmovie/novelmovie/internal/models"
	"github.com/novelmovie/novelmovie/internal/seed"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:           "novelctl",
	Short:         "Maintenance commands for the Novel Movie backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(conn)

		if err := db.Migrate(conn); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the taxonomy collections that are missing",
	Long: `Seed the taxonomy collections: genres, tone-options, movie-formats,
movie-styles, series, audience-demographics, central-themes,
mood-descriptors and cinematography-styles.

Entries are matched by slug, so running the command twice changes nothing.
Without --file the built-in defaults are used.`,
	RunE: runSeed,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the database and the character library",
	RunE:  runHealth,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a random hex key for JWT_SECRET or CONFIG_ENCRYPTION_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.GenerateSecureKey(32)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "database URL (defaults to DATABASE_URL)")
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML file with taxonomy entries")

	rootCmd.AddCommand(migrateCmd, seedCmd, healthCmd, keygenCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	return cfg, nil
}

func openDB() (*gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return db.Open(cfg.DatabaseURL)
}

func runSeed(cmd *cobra.Command, args []string) error {
	data := seed.Default()
	if seedFile != "" {
		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", seedFile, err)
		}
		data = raw
	}
	file, err := seed.Parse(data)
	if err != nil {
		return err
	}

	conn, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close(conn)
	if err := db.Migrate(conn); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()
	result, err := seed.Run(ctx, conn, file)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	kinds := make([]string, 0, len(file))
	for kind := range file {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, name := range kinds {
		kind := models.TaxonomyKind(name)
		fmt.Fprintf(out, "%-24s created %d, skipped %d\n", name, result.Created[kind], result.Skipped[kind])
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close(conn)
	if err := db.Ping(conn); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	fmt.Fprintln(out, "database: ok")

	result := app.NewLibraryClient(cfg).HealthCheck(cmd.Context())
	if !result.IsHealthy {
		return fmt.Errorf("character library unhealthy: %s", result.Error)
	}
	fmt.Fprintf(out, "character library: ok (%dms)\n", result.ResponseTime)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
