package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/akshayaparida/react-component-editor-sub000/pkg/config"
	"github.com/akshayaparida/react-component-editor-sub000/pkg/generate"
)

var (
	generateModel string
	generateOut   string
)

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a JSX component from a prompt",
	Long: `Generate asks the configured model for a component and prints the
JSX. Requires OPENAI_API_KEY in the environment or a .env file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateModel, "model", "", "chat model, overrides the config file")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "write the component to a file instead of stdout")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if generateModel != "" {
		cfg.Generate.Model = generateModel
	}
	if cfg.Generate.APIKey == "" {
		return errors.New("no API key: set OPENAI_API_KEY or generate.api_key")
	}

	gen, err := generate.NewGenerator(generate.Config{
		APIKey:  cfg.Generate.APIKey,
		Model:   cfg.Generate.Model,
		Timeout: cfg.Generate.Timeout.Std(),
	})
	if err != nil {
		return err
	}

	source, err := gen.Generate(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	if generateOut != "" {
		if err := os.WriteFile(generateOut, []byte(source+"\n"), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", generateOut)
		return nil
	}
	fmt.Println(source)
	return nil
}
