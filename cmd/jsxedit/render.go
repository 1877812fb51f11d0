package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/preview"
)

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Render a JSX file to HTML",
	Long: `Render compiles a JSX file the way an editor session would: markers
are stamped in, the source is sanitized and the resulting HTML is
printed. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
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
	fmt.Println(result.HTML)
	return nil
}
