package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quaylabs/mooring/engine"
	"github.com/quaylabs/mooring/runtime"
)

// Global flags
var (
	configPath string
	verbose    bool
	cfg        *Config
)

var rootCmd = &cobra.Command{
	Use:   "mooring",
	Short: "Load and call WebAssembly modules",
	Long: `Mooring loads core WebAssembly modules into a sandboxed engine and
calls their exported functions.

Function signatures use WIT scalar notation, for example
"func(a: s32, b: s32) -> s32". When no signature is given, one is
derived from the export's core value types.

Configuration is read from a YAML file (--config), then overridden by
MOORING_ environment variables. Nested keys use a double underscore:
MOORING_RUNTIME__STACK_SLOTS=131072.`,
	Example: `  # List what a module exports
  mooring inspect calc.wasm

  # Call an exported function
  mooring run calc.wasm add 3 4

  # Same, stating the signature explicitly
  mooring run calc.wasm add --sig "func(a: s32, b: s32) -> s32" 3 4

  # Explore a module interactively
  mooring repl calc.wasm`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = LoadConfig(configPath)
		if err != nil {
			return err
		}
		if verbose || cfg.Log.Development {
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			engine.SetLogger(log.Named("engine"))
			runtime.SetLogger(log.Named("runtime"))
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newReplCommand())
}

// runtimeOptions translates the loaded configuration into environment
// options.
func runtimeOptions() []runtime.Option {
	var opts []runtime.Option
	if cfg.Runtime.MemoryLimitPages > 0 {
		opts = append(opts, runtime.WithMemoryLimitPages(cfg.Runtime.MemoryLimitPages))
	}
	return opts
}
