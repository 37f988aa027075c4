package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gocart/pkg/asm"
	"gocart/pkg/emit"
)

const version = "1.0.0"

var (
	inputFile  string
	outputFile string
	lexOnly    bool
)

var rootCmd = &cobra.Command{
	Use:   "gocart",
	Short: "gocart assembles macro-assembler source into a cartridge blob",
	Long: `gocart compiles the cartridge description language into the binary
asset blob loaded by the simulation engine.

Source files may include other files, bind compile-time constants with def,
define macros, and use repeat/for/if blocks; all of these are resolved at
build time, so the emitted cartridge contains only literal data.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFile, "input-file", "i", "", "source file to assemble")
	rootCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "cartridge file to write")
	rootCmd.Flags().BoolVarP(&lexOnly, "lex-only", "l", false, "print the token stream and skip parsing")
	rootCmd.MarkFlagRequired("input-file")
}

func run(cmd *cobra.Command, args []string) error {
	lex := asm.NewLexer()
	if err := lex.LexFile(inputFile); err != nil {
		return err
	}

	if lexOnly {
		lex.DumpTokens(os.Stdout)
		return nil
	}
	if outputFile == "" {
		return fmt.Errorf("an output file is required (use -o)")
	}

	root, err := asm.NewParser(lex).ParseTokens()
	if err != nil {
		return err
	}
	defer root.Destroy()

	blob, err := emit.Emit(root, filepath.Dir(inputFile))
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, blob, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", outputFile, err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
