package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:           "doffy-proxygen",
		Short:         "Generate weavable proxy stubs for Go interfaces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newGenerateCmd(), newScanCmd())
	return rootCmd
}

func newGenerateCmd() *cobra.Command {
	var opts GenerateOptions
	var stdout bool

	cmd := &cobra.Command{
		Use:   "generate <package-dir>",
		Short: "Write a stub struct that implements an interface through woven func fields",
		Example: "  doffy-proxygen generate ./examples/user-service --type UserService\n" +
			"  doffy-proxygen generate . --type Store --stub StoreStub --stdout",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Dir = args[0]
			if _, err := os.Stat(opts.Dir); os.IsNotExist(err) {
				return fail(cmd.ErrOrStderr(), fmt.Errorf("directory '%s' does not exist", opts.Dir))
			}
			if opts.Output == "" && !stdout {
				stub := opts.Stub
				if stub == "" {
					stub = opts.Interface + "Proxy"
				}
				opts.Output = filepath.Join(opts.Dir, strings.ToLower(stub)+"_gen.go")
			}

			src, err := Generate(opts)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			if stdout {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if err := os.WriteFile(opts.Output, src, 0o644); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ wrote %s\n", opts.Output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Interface, "type", "t", "", "Interface to generate a stub for")
	cmd.Flags().StringVar(&opts.Stub, "stub", "", "Stub type name (default <type>Proxy)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file (default <dir>/<stub>_gen.go)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the stub instead of writing a file")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <project-root>",
		Short: "List interfaces and the shape each method would be woven with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootDir := args[0]
			found, err := Scan(rootDir)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				color.New(color.FgYellow).Fprintln(out, "No interfaces found")
				return nil
			}

			bold := color.New(color.Bold)
			faint := color.New(color.Faint)
			for _, iface := range found {
				rel, err := filepath.Rel(rootDir, iface.File)
				if err != nil {
					rel = iface.File
				}
				bold.Fprintf(out, "%s.%s", iface.Package, iface.Name)
				faint.Fprintf(out, " (%s:%d)\n", rel, iface.Line)
				for _, m := range iface.Methods {
					fmt.Fprintf(out, "  %-24s %s\n", m.Name, shapeColor(m.Shape).Sprint(m.Shape))
				}
			}
			return nil
		},
	}
}

func shapeColor(shape string) *color.Color {
	switch {
	case shape == "unsupported":
		return color.New(color.FgRed)
	case strings.HasPrefix(shape, "Async"):
		return color.New(color.FgCyan)
	case strings.HasPrefix(shape, "Generic"):
		return color.New(color.FgMagenta)
	default:
		return color.New(color.Reset)
	}
}

func fail(w io.Writer, err error) error {
	color.New(color.FgRed).Fprintf(w, "Error: %v\n", err)
	return err
}
