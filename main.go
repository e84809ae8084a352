package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.1.0"

var (
	configOption      = flag.String("config", "", "config file (default: the first of "+fmt.Sprint(configFilenames)+" found in the working directory or a parent)")
	watchOption       = flag.Bool("watch", false, "regenerate when query or schema files change")
	printSchemaOption = flag.Bool("print-schema", false, "print the loaded schema and exit")
	verboseOption     = flag.Bool("v", false, "verbose logging")
	versionOption     = flag.Bool("version", false, "pygqlc version")
)

func main() {
	flag.Parse()

	if *versionOption {
		fmt.Printf("pygqlc v%s\n", version)

		return
	}

	level := slog.LevelInfo
	if *verboseOption {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		configFile:  *configOption,
		watch:       *watchOption,
		printSchema: *printSchemaOption,
		stdout:      os.Stdout,
	}
	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
