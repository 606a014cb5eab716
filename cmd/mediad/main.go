package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mediad/internal/app"
	"mediad/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a MediaApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(ctx context.Context, operation string) (*app.MediaApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewMediaApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "mediad",
	Short: "Media management server",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Data Dir:  %s\n", cfg.DataDir)
		fmt.Printf("Cache Dir: %s\n", cfg.CacheDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Storage:   %s\n", cfg.Storage.Type)
		fmt.Printf("Address:   %s\n", cfg.Server.Address)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the media server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// channels command
var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage channels",
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ListChannels")
		if err != nil {
			return err
		}
		defer a.Close()

		providers := a.ListChannels()
		if len(providers) == 0 {
			fmt.Println("No channels registered")
			return nil
		}
		for _, p := range providers {
			fmt.Printf("%s\t%s\n", p.Name(), p.Description())
		}
		return nil
	},
}

var channelsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-register all channels in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RefreshChannels")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.RefreshChannels(cmd.Context(), func(pct float64) {
			fmt.Printf("\rRefreshing channels... %.0f%%", pct)
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("refreshing channels: %w", err)
		}
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download <item-id>",
	Short: "Download one item's media content into storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid item id %q: %w", args[0], err)
		}

		a, err := newApp(cmd.Context(), "Download")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.Orchestrator().Download(cmd.Context(), itemID)
		if err != nil {
			return fmt.Errorf("downloading item: %w", err)
		}

		fmt.Printf("Stored at: %s\n", key)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup <dest-path>",
	Short: "Write a consistent snapshot of the item database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Backup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupDatabase(args[0]); err != nil {
			return fmt.Errorf("backing up database: %w", err)
		}

		fmt.Printf("Database backed up to %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// channels subcommands
	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsRefreshCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(backupCmd)
}
