package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/s1s5/python-graphql-compiler/config"
	"github.com/s1s5/python-graphql-compiler/plugins"
)

var configFilenames = []string{".pygqlc.yml", "pygqlc.yml", ".pygqlc.yaml", "pygqlc.yaml"}

type options struct {
	// configFile is searched for from the working directory when empty.
	configFile  string
	watch       bool
	printSchema bool
	stdout      io.Writer
}

func run(ctx context.Context, opts options) error {
	cfgFile := opts.configFile
	if cfgFile == "" {
		var err error
		cfgFile, err = config.FindConfigFile(".", configFilenames)
		if err != nil {
			return fmt.Errorf("failed to find config file: %w", err)
		}
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadSchema(ctx); err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	if opts.printSchema {
		formatter.NewFormatter(opts.stdout).FormatSchema(cfg.Schema)
		return nil
	}

	if err := plugins.GenerateCode(ctx, cfg); err != nil {
		if !opts.watch {
			return fmt.Errorf("failed to generate code: %w", err)
		}
		// keep watching so the next edit can fix it
		slog.ErrorContext(ctx, "failed to generate code", "error", err)
	}

	if opts.watch {
		return watch(ctx, cfg)
	}
	return nil
}
