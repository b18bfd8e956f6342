package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/quaylabs/mooring/errors"
	"github.com/quaylabs/mooring/runtime"
)

func newRunCommand() *cobra.Command {
	var (
		sigText  string
		withWASI bool
	)
	cmd := &cobra.Command{
		Use:   "run <file.wasm> <function> [args...]",
		Short: "Call one exported function of a module",
		Long: `Call an exported function with the given arguments and print its
results, one per line.

Arguments are converted according to the function's signature. Without
--sig the signature is derived from the export's core value types, with
integers treated as signed.`,
		Example: `  # Call add(3, 4)
  mooring run calc.wasm add 3 4

  # State the signature explicitly to pass unsigned arguments
  mooring run calc.wasm hash --sig "func(seed: u64) -> u64" 14695981039346656037

  # Let the module import wasi_snapshot_preview1
  mooring run app.wasm start --wasi`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(cmd.Context(), args[0], args[1], args[2:], sigText, withWASI)
		},
	}
	cmd.Flags().StringVar(&sigText, "sig", "", `function signature, e.g. "func(a: s32, b: s32) -> s32"`)
	cmd.Flags().BoolVar(&withWASI, "wasi", false, "make wasi_snapshot_preview1 importable")
	return cmd
}

func runModule(ctx context.Context, path, name string, rawArgs []string, sigText string, withWASI bool) error {
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

	if withWASI {
		if err := rt.LinkWASI(); err != nil {
			return err
		}
	}

	mod, err := rt.ParseAndLoadModule(ctx, data)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	var sig runtime.Signature
	if sigText != "" {
		sig, err = runtime.ParseSignature(sigText)
	} else {
		sig, err = deriveSignature(mod, name)
	}
	if err != nil {
		return err
	}

	fn, err := mod.FindFunction(ctx, name, sig)
	if err != nil {
		return fmt.Errorf("find %s: %w", name, err)
	}

	if len(rawArgs) != len(sig.Params) {
		return fmt.Errorf("%s takes %d argument(s), got %d", name, len(sig.Params), len(rawArgs))
	}
	slots := make([]uint64, len(rawArgs))
	for i, raw := range rawArgs {
		v, err := convertArg(raw, sig.Params[i])
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		slots[i] = v
	}

	out, err := fn.Call(ctx, slots...)
	if err != nil {
		if trap, ok := errors.AsTrap(err); ok {
			if detail, _, _ := strings.Cut(rt.ErrorInfo(), "\n"); detail != "" {
				return fmt.Errorf("%w: %s", trap, detail)
			}
			return trap
		}
		return err
	}
	for i, v := range out {
		fmt.Println(formatResult(v, sig.Results[i]))
	}
	return nil
}

// deriveSignature builds a signature from an export's core value types,
// reading integers as signed.
func deriveSignature(mod *runtime.Module, name string) (runtime.Signature, error) {
	for _, f := range mod.ExportedFunctions() {
		if f.Name != name {
			continue
		}
		var sig runtime.Signature
		for _, p := range f.Params {
			t, err := scalarForCoreType(p)
			if err != nil {
				return runtime.Signature{}, err
			}
			sig.Params = append(sig.Params, t)
		}
		for _, r := range f.Results {
			t, err := scalarForCoreType(r)
			if err != nil {
				return runtime.Signature{}, err
			}
			sig.Results = append(sig.Results, t)
		}
		return sig, nil
	}
	return runtime.Signature{}, errors.ErrFunctionNotFound
}

func scalarForCoreType(name string) (wit.Type, error) {
	switch name {
	case "i32":
		return wit.S32{}, nil
	case "i64":
		return wit.S64{}, nil
	case "f32":
		return wit.F32{}, nil
	case "f64":
		return wit.F64{}, nil
	}
	return nil, fmt.Errorf("unsupported value type %q", name)
}

// convertArg parses a textual argument into the raw stack slot the
// declared type lowers to.
func convertArg(value string, t wit.Type) (uint64, error) {
	switch t.(type) {
	case wit.Bool:
		return boolArg(value)
	case wit.S8:
		return signedArg(value, 8)
	case wit.S16:
		return signedArg(value, 16)
	case wit.S32:
		return signedArg(value, 32)
	case wit.U8:
		return unsignedArg(value, 8)
	case wit.U16:
		return unsignedArg(value, 16)
	case wit.U32:
		return unsignedArg(value, 32)
	case wit.Char:
		r := []rune(value)
		if len(r) != 1 {
			return 0, fmt.Errorf("char wants a single character, got %q", value)
		}
		return api.EncodeU32(uint32(r[0])), nil
	case wit.S64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an s64", value)
		}
		return api.EncodeI64(v), nil
	case wit.U64:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a u64", value)
		}
		return v, nil
	case wit.F32:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return 0, fmt.Errorf("%q is not an f32", value)
		}
		return api.EncodeF32(float32(v)), nil
	case wit.F64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an f64", value)
		}
		return api.EncodeF64(v), nil
	}
	return 0, fmt.Errorf("unsupported argument type %s", witTypeStr(t))
}

func boolArg(value string) (uint64, error) {
	switch value {
	case "true", "1":
		return 1, nil
	case "false", "0":
		return 0, nil
	}
	return 0, fmt.Errorf("%q is not a bool", value)
}

func signedArg(value string, bits int) (uint64, error) {
	v, err := strconv.ParseInt(value, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%q is not an s%d", value, bits)
	}
	return api.EncodeI32(int32(v)), nil
}

func unsignedArg(value string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(value, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%q is not a u%d", value, bits)
	}
	return api.EncodeU32(uint32(v)), nil
}

// formatResult renders a raw result slot according to its declared type.
func formatResult(v uint64, t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return strconv.FormatBool(v != 0)
	case wit.S8, wit.S16, wit.S32:
		return fmt.Sprintf("%d", api.DecodeI32(v))
	case wit.U8, wit.U16, wit.U32:
		return fmt.Sprintf("%d", api.DecodeU32(v))
	case wit.Char:
		return fmt.Sprintf("%q", rune(api.DecodeU32(v)))
	case wit.S64:
		return fmt.Sprintf("%d", int64(v))
	case wit.U64:
		return fmt.Sprintf("%d", v)
	case wit.F32:
		return fmt.Sprintf("%v", api.DecodeF32(v))
	case wit.F64:
		return fmt.Sprintf("%v", api.DecodeF64(v))
	}
	return fmt.Sprintf("%#x", v)
}

func witTypeStr(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	default:
		return fmt.Sprintf("%T", t)
	}
}
