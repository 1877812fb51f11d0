// Command jsxedit runs the visual JSX editor and its one-shot tooling.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jsxedit",
	Short: "Visual editor for React components",
	Long: `jsxedit serves a browser-based visual editor for React components:
it renders JSX to a live DOM, maps clicks back to source spans and
rewrites the source as you edit. The one-shot subcommands expose the
same pipeline for scripts: stamp, render, edit, lint and generate.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jsxedit: %v\n", err)
		os.Exit(1)
	}
}

// readSource reads a component file, or stdin for "-".
func readSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeResult prints source to stdout, or rewrites the input file when
// inPlace is set and the input was not stdin.
func writeResult(path, source string, inPlace bool) error {
	if inPlace && path != "-" {
		return os.WriteFile(path, []byte(source), 0o644)
	}
	fmt.Print(source)
	if len(source) > 0 && source[len(source)-1] != '\n' {
		fmt.Println()
	}
	return nil
}
