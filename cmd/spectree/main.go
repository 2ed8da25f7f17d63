package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/config"
	"github.com/spectree/spectree/internal/logging"
	"github.com/spectree/spectree/internal/telemetry"
	"github.com/spectree/spectree/internal/ui"
)

var (
	jsonOutput  bool
	offline     bool
	appFlag     string
	configFlag  string
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	logger = zerolog.Nop()
)

// noConfigCommands run without loading configuration.
var noConfigCommands = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Work on the cached tree only; never call the CMS")
	rootCmd.PersistentFlags().StringVar(&appFlag, "app", "", "documentId of the app (default: config key app)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: nearest .spectree/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "tree", Title: "Working With the Tree:"})
	rootCmd.AddGroup(&cobra.Group{ID: "sync", Title: "Sync & Data:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:   "spectree",
	Short: "spectree - specification tree editor",
	Long: `Plan an app as epics, features, user stories and tasks stored in a headless CMS.
Reorder and move items from the terminal; changes show locally at once and are
written back to the CMS in the background.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("spectree version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		ui.ConfigureColor()
		if noConfigCommands[cmd.Name()] {
			return
		}

		if err := config.Initialize(configFlag); err != nil {
			FatalErrorWithHint(err.Error(), "check the --config path or run 'spectree config list'")
		}
		bindFlags(cmd)
		jsonOutput = config.GetBool(config.KeyJSON)

		logger = logging.New(os.Stderr, logging.Options{
			Level:   config.GetString(config.KeyLogLevel),
			Verbose: verboseFlag,
			Quiet:   quietFlag,
		})

		if err := telemetry.Init(rootCtx, "spectree", Version); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)

		if rootCancel != nil {
			rootCancel()
		}
	},
}

// bindFlags lets explicitly set global flags override config and env.
func bindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if f := flags.Lookup("json"); f != nil && f.Changed {
		config.Set(config.KeyJSON, jsonOutput)
	}
	if f := flags.Lookup("app"); f != nil && f.Changed {
		config.Set(config.KeyApp, appFlag)
	}
	if offline {
		config.Set(config.KeyPersistToAPI, false)
	}
	if verboseFlag {
		config.Set(config.KeyLogLevel, "debug")
	}
}

func setupSignalContext() {
	if rootCtx != nil {
		return
	}
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func getRootContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if jsonOutput {
			outputJSONError(err, "")
		}
		FatalError("%v", err)
	}
}
