package main

import (
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-llmlab/internal/config"
	"go-llmlab/internal/llm"
	"go-llmlab/internal/tools"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "llmlab",
		Short:         "Small LLM tools: tokens, summaries, brochures and multi-model conversations",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			logrus.SetOutput(os.Stderr)
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Path to config file (built-in defaults when absent)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newTokensCommand(),
		newSummarizeCommand(),
		newBrochureCommand(),
		newConverseCommand(),
		newModelsCommand(),
		newCheckKeyCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file; a missing default file falls back to
// the built-in backends.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		if err := config.LoadEnv(".env"); err != nil {
			return nil, err
		}
		logrus.WithField("path", configPath).Debug("config file not found, using defaults")
		return config.Default(), nil
	}
	return config.LoadConfig(configPath)
}

// session is everything a command needs to talk to backends and websites.
type session struct {
	cfg      *config.Config
	registry *llm.Registry
	manager  *llm.Manager
	pages    *tools.WebParserClient
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	registry, manager, err := llm.BuildBackends(cfg.Backends, llm.DefaultQueueConfig())
	if err != nil {
		return nil, err
	}
	pages := tools.NewWebParserClient(
		time.Duration(cfg.Scraper.TimeoutSeconds)*time.Second,
		cfg.Scraper.UserAgent,
		cfg.Scraper.MaxPageMB,
		tools.WithMaxChars(cfg.Scraper.MaxChars),
		tools.WithCache(tools.NewLRUCache(cfg.Scraper.CacheSize, time.Duration(cfg.Scraper.CacheTTLMinutes)*time.Minute)),
	)
	return &session{cfg: cfg, registry: registry, manager: manager, pages: pages}, nil
}

func (s *session) Close() {
	s.manager.Stop()
}
