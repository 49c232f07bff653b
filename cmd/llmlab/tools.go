package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go-llmlab/internal/brochure"
	"go-llmlab/internal/config"
	"go-llmlab/internal/llm"
	"go-llmlab/internal/summary"
	"go-llmlab/internal/tokens"
)

func newTokensCommand() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "tokens [text...]",
		Short: "Show how a model's tokenizer splits text",
		Long: `Encodes text with the tokenizer of the given model and prints each token id
with the text it decodes to. Text is read from stdin when no arguments are given.

Example:
  llmlab tokens --model gpt-4.1-mini "Hi my name is Ed and I like banoffee pie"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(raw)
			}
			toks, err := tokens.NewInspector().Inspect(model, text)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range toks {
				fmt.Fprintf(out, "%s=%s\n", color.CyanString("%d", t.ID), t.Text)
			}
			fmt.Fprintf(out, "%d tokens\n", len(toks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gpt-4.1-mini", "Model whose tokenizer to use")
	return cmd
}

func newSummarizeCommand() *cobra.Command {
	var backendName string
	cmd := &cobra.Command{
		Use:   "summarize <url>",
		Short: "Summarize a website in markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if backendName == "" {
				backendName = s.cfg.Summary.Backend
			}
			b, err := s.registry.Get(backendName)
			if err != nil {
				return err
			}
			out, err := summary.New(s.pages, b).Summarize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "Backend to summarize with (defaults to summary.backend)")
	return cmd
}

func newBrochureCommand() *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "brochure <company> <url>",
		Short: "Write a company brochure from its website",
		Long: `Fetches the landing page, asks the link backend which pages matter for a
brochure, fetches those and asks the brochure backend to write it.

Example:
  llmlab brochure "Hugging Face" https://huggingface.co --pdf hf.pdf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			linker, err := s.registry.Get(s.cfg.Brochure.LinkBackend)
			if err != nil {
				return err
			}
			writer, err := s.registry.Get(s.cfg.Brochure.Backend)
			if err != nil {
				return err
			}
			gen := brochure.NewGenerator(s.pages, linker, writer, s.cfg.Brochure.MaxPromptChars)
			b, err := gen.CreateBrochure(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.Markdown)

			if pdfPath == "" {
				return nil
			}
			if err := brochure.SetLicense(os.Getenv(s.cfg.Brochure.UniPDFKeyEnv)); err != nil {
				return err
			}
			if err := brochure.RenderPDF(b, pdfPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), color.GreenString("✓ wrote %s", pdfPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Also render the brochure to this PDF file")
	return cmd
}

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured backends and the models their endpoints report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range cfg.Backends {
				fmt.Fprintf(out, "%s\t%s\t%s\n", color.YellowString(b.Name), b.Provider, b.Model)
			}

			d := llm.DiscoveryFor(cfg.Backends)
			for _, ep := range d.Endpoints() {
				models, err := d.Models(cmd.Context(), ep.BaseURL)
				if err != nil {
					fmt.Fprintf(out, "\n%s %s: %v\n", color.RedString("✗"), ep.BaseURL, err)
					continue
				}
				fmt.Fprintf(out, "\n%s %s\n", color.GreenString("✓"), ep.BaseURL)
				for _, m := range models {
					fmt.Fprintf(out, "  %s\n", m.Name)
				}
			}
			return nil
		},
	}
}

func newCheckKeyCommand() *cobra.Command {
	var envName string
	cmd := &cobra.Command{
		Use:   "check-key",
		Short: "Sanity-check an OpenAI project key from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(".env"); err != nil {
				return err
			}
			if err := config.CheckAPIKey(os.Getenv(envName)); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), color.RedString("✗ %s: %v", envName, err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ %s found and looks good so far", envName))
			return nil
		},
	}
	cmd.Flags().StringVar(&envName, "env", "OPENAI_API_KEY", "Environment variable holding the key")
	return cmd
}
