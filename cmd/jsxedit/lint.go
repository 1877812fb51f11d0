package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/a11y"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/preview"
)

var lintJSON bool

var lintCmd = &cobra.Command{
	Use:   "lint <file>",
	Short: "Run accessibility checks against a JSX file",
	Long: `Lint renders a JSX file and runs the same accessibility rules the
editor surfaces in its lint panel. Warnings print and pass; errors
print and fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintJSON, "json", false, "print issues as JSON")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	source, err := readSource(args[0])
	if err != nil {
		return err
	}

	r := preview.NewRenderer()
	defer r.Dispose()

	result := r.RenderSource(source)
	if result.Errored() {
		return result.Err
	}

	issues := a11y.NewLinter().Lint(result.Tree)

	if lintJSON {
		return json.NewEncoder(os.Stdout).Encode(issues)
	}

	if len(issues) == 0 {
		fmt.Println("no issues")
		return nil
	}

	errored := 0
	for _, issue := range issues {
		fmt.Printf("%s: <%s> %s: %s\n", issue.Severity, issue.Tag, issue.Rule, issue.Detail)
		if issue.Severity == a11y.SeverityError {
			errored++
		}
	}
	if errored > 0 {
		return fmt.Errorf("%d of %d issues are errors", errored, len(issues))
	}
	return nil
}
