// =============================================================================
// FBR Invoicer - Root Command
// =============================================================================
//
// This file defines the root command of the CLI. Every other command hangs
// off it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (invoicer)
//   ├── detectCmd   (invoicer detect)
//   ├── processCmd  (invoicer process)
//   ├── invoiceCmd  (invoicer invoice validate|post)
//   ├── sellerCmd   (invoicer seller add|list|search|show)
//   ├── serveCmd    (invoicer serve)
//   └── versionCmd  (invoicer version)
//
// STARTUP:
//   Before any subcommand runs, PersistentPreRunE
//   1. loads .env (if present) into the environment
//   2. loads config.yaml and applies environment overrides
//   3. sets up the zerolog logger
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/logger"
	"github.com/ginjaninja78/fbr-invoicer/internal/seller"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile is the main configuration file, set with --config.
var cfgFile string

// verbose lowers the log level to debug.
var verbose bool

// mainConfig is loaded once in PersistentPreRunE.
var mainConfig *config.MainConfig

var (
	log       zerolog.Logger
	logCloser io.Closer
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "FBR Invoicer - Turn sales spreadsheets into FBR digital invoices",
	Long: `FBR Invoicer reads sales spreadsheets (.xlsx, .xls, .csv) in whatever
column layout they come in, works out which column holds which invoice
field, and turns every row into an FBR digital invoicing payload.

Key Features:
  - Automatic column detection from header synonyms
  - Mapping profiles for recurring layouts
  - Per-row validation with labelled errors
  - Bulk validate / post against the FBR gateway
  - Seller profiles with per-seller bearer tokens
  - HTTP API for the same operations

Example Usage:
  invoicer detect --file sales.xlsx         # Show the detected column mapping
  invoicer process --seller 1               # Normalize every sheet in the input directory
  invoicer process --seller 1 --post        # ...and post the invoices to FBR
  invoicer serve --addr :8080               # Start the HTTP API`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initApp()
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "Path to the main configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// =============================================================================
// SHARED SETUP
// =============================================================================

func initApp() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	mainConfig = cfg

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logCfg.Output = cfg.LogFile
	if verbose {
		logCfg.Level = "debug"
	}
	closer, err := logger.Setup(logCfg)
	if err != nil {
		return err
	}
	logCloser = closer
	log = logger.WithComponent("cli")

	log.Debug().Str("config", cfgFile).Msg("configuration loaded")
	return nil
}

// openSellers opens the seller database named in the configuration.
func openSellers() (*seller.Store, error) {
	store, err := seller.Open(mainConfig.DatabasePath)
	if err != nil {
		return nil, err
	}
	return store, nil
}
