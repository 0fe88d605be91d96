// Command eaglec is a thin driver shim around the Eagle core: the
// lexer/parser lives outside this core, so this binary takes an
// already-built AST through an injected Frontend and wires it straight
// into internal/compiler.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eaglec/internal/ast"
	"eaglec/internal/compiler"
)

// Frontend turns a source file into a top-level AST. The real lexer and
// parser live outside this core; frontend is the seam a caller embedding
// eaglec wires a concrete implementation into. unconfiguredFrontend, the
// default, reports that no frontend has been configured, so `eaglec compile` fails
// loudly rather than silently doing nothing.
type Frontend interface {
	Parse(path string) ([]ast.Node, error)
}

var frontend Frontend

type unconfiguredFrontend struct{}

func (unconfiguredFrontend) Parse(path string) ([]ast.Node, error) {
	return nil, fmt.Errorf("no frontend configured: eaglec's lexer/parser is supplied by the embedding program")
}

func main() {
	if frontend == nil {
		frontend = unconfiguredFrontend{}
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eaglec",
		Short: "Eagle core driver: type registry, scope manager, AST dispatcher, ARC inserter",
	}
	root.AddCommand(compileCmd(), checkCmd(), dumpTypesCmd())
	return root
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "lower a source file to LLVM IR text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			top, err := frontend.Parse(args[0])
			if err != nil {
				return err
			}
			mod, err := compiler.CompileProgram(top)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Print(mod.String())
				return nil
			}
			return os.WriteFile(out, []byte(mod.String()), 0o644)
		},
	}
	cmd.Flags().StringP("output", "o", "", "write LLVM IR to this file instead of stdout")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "parse and lower a source file, reporting errors without emitting IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := frontend.Parse(args[0])
			if err != nil {
				return err
			}
			if _, err := compiler.CompileProgram(top); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func dumpTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-types [file]",
		Short: "compile a source file and list the struct/class/interface/enum names it registers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := frontend.Parse(args[0])
			if err != nil {
				return err
			}
			c := compiler.New()
			if _, err := c.Compile(top); err != nil {
				return err
			}
			for _, name := range c.Reg().TypeNames() {
				fmt.Println(name)
			}
			return nil
		},
	}
}
