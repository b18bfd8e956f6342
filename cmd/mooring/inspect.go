package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quaylabs/mooring/runtime"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.wasm>",
		Short: "List a module's exported functions",
		Long: `Parse and load a module, then list its exported functions with their
core value types.`,
		Example: `  mooring inspect calc.wasm`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectModule(cmd.Context(), args[0])
		},
	}
}

func inspectModule(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	env, err := runtime.NewEnvironment(runtimeOptions()...)
	if err != nil {
		return err
	}
	defer env.Close(ctx)
	rt, err := env.NewRuntime(ctx, cfg.Runtime.StackSlots)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	mod, err := rt.ParseAndLoadModule(ctx, data)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	if name := mod.Name(); name != "" {
		fmt.Printf("Module: %s (%s)\n", path, name)
	} else {
		fmt.Printf("Module: %s\n", path)
	}

	funcs := mod.ExportedFunctions()
	if len(funcs) == 0 {
		fmt.Println("No exported functions.")
		return nil
	}
	fmt.Printf("\nExported functions:\n")
	for _, f := range funcs {
		result := ""
		if len(f.Results) > 0 {
			result = " -> " + strings.Join(f.Results, ", ")
		}
		fmt.Printf("  %s(%s)%s\n", f.Name, strings.Join(f.Params, ", "), result)
	}
	return nil
}
