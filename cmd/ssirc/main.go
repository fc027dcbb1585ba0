// Command ssirc is the WGSL shader compiler CLI.
//
// Usage:
//
//	ssirc compile shader.wgsl                 # Compile to stdout
//	ssirc compile -o shader.spv shader.wgsl   # Compile to file
//	ssirc compile --debug shader.wgsl         # Compile with debug info
//	ssirc resolve shader.wgsl                 # Print entry point / binding report
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shaderkit/ssirc"
	"github.com/shaderkit/ssirc/spirv"
)

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "ssirc",
		Short:         "Compile WGSL shaders to SPIR-V via the SSIR pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       version(),
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level pipeline logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
	}

	root.AddCommand(newCompileCmd())
	root.AddCommand(newResolveCmd())
	return root
}

func newCompileCmd() *cobra.Command {
	var (
		output   string
		debug    bool
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "compile <input.wgsl>",
		Short: "Compile a WGSL shader to SPIR-V",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			opts := naga.CompileOptions{
				SPIRVVersion: spirv.Version1_3,
				Debug:        debug,
				Validate:     validate,
				Logger:       logrus.StandardLogger(),
			}
			spirvBytes, err := naga.CompileWithOptions(string(source), opts)
			if err != nil {
				return fmt.Errorf("compiling %s: %w", args[0], err)
			}

			if output == "" {
				_, err = os.Stdout.Write(spirvBytes)
				return err
			}
			if err := os.WriteFile(output, spirvBytes, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %s to %s (%d bytes)\n", args[0], output, len(spirvBytes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&debug, "debug", false, "include debug info (OpName, OpLine)")
	cmd.Flags().BoolVar(&validate, "validate", true, "validate SSIR before emission")
	return cmd
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <input.wgsl>",
		Short: "Print the resolver's entry-point and binding report without emitting SPIR-V",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			ast, err := naga.Parse(string(source))
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			table, err := naga.BuildResolver(ast)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			for _, ep := range table.EntryPoints {
				fmt.Fprintf(out, "%s: %s, %d used binding(s), %d vertex input(s), %d fragment output(s)\n",
					ep.Name, ep.Stage, len(ep.UsedBindings), len(ep.VertexInputs), len(ep.FragmentOutputs))
				for _, id := range ep.UsedBindings {
					sym := table.Symbol(id)
					if sym == nil {
						continue
					}
					fmt.Fprintf(out, "  binding %s @group(%d) @binding(%d)\n", sym.Name, derefOr(sym.Group, 0), derefOr(sym.Binding, 0))
				}
			}
			return nil
		},
	}
}

func derefOr(p *uint32, def uint32) uint32 {
	if p == nil {
		return def
	}
	return *p
}
