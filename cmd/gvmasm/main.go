// Command gvmasm assembles gvm64 source into a flat bytecode image.
package main

import (
	"fmt"
	"os"

	"github.com/kaelstrom/gvm64/asmbuild"
	"github.com/spf13/cobra"
)

func main() {
	var output string

	rootCmd := &cobra.Command{
		Use:   "gvmasm <source-file>",
		Short: "Assemble gvm64 source into a bytecode image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return assembleFile(args[0], output)
		},
	}
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output bytecode path (default: <source>.bin)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func assembleFile(sourcePath, output string) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", sourcePath, err)
	}

	b := asmbuild.New()
	if err := b.CompileSource(string(source)); err != nil {
		return fmt.Errorf("assembling %s: %w", sourcePath, err)
	}
	if err := b.Finalize(); err != nil {
		return fmt.Errorf("assembling %s: %w", sourcePath, err)
	}
	bytecode, err := b.Dump()
	if err != nil {
		return fmt.Errorf("assembling %s: %w", sourcePath, err)
	}

	if output == "" {
		output = sourcePath + ".bin"
	}
	if err := os.WriteFile(output, bytecode, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	fmt.Printf("wrote %d bytes to %s\n", len(bytecode), output)
	return nil
}
