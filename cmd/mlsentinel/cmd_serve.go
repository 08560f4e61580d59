package main

// ---------------------------------------------------------------------------
// cmd_serve.go — start the mlsentinel engine
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/mlsentinel-project/mlsentinel/internal/api"
	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/mlsentinel-project/mlsentinel/internal/engine"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	dryRun := fs.Bool("dry-run", false, "Validate config, then exit")
	quiet := fs.Bool("quiet", false, "Suppress banner and non-essential output")
	fs.BoolVar(quiet, "q", false, "Suppress banner and non-essential output")
	noColor := fs.Bool("no-color", false, "Disable color output")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *noColor {
		os.Setenv("NO_COLOR", "1")
	}

	if !*quiet {
		fmt.Fprint(os.Stderr, bannerText())
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		errorf("loading config: %v", err)
	}

	warnings, validationErrs := cfg.Validate()
	for _, w := range warnings {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s %s\n", yellow("⚠"), w)
		}
	}
	if len(validationErrs) > 0 {
		for _, e := range validationErrs {
			fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), e)
		}
		errorf("config validation failed with %d error(s)", len(validationErrs))
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if *dryRun {
		fmt.Fprintf(os.Stdout, "%s Config valid.\n", green("✓"))
		os.Exit(0)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		errorf("creating engine: %v", err)
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s Starting mlsentinel engine...\n", dim("▸"))
	}

	srv := api.NewServer(eng)
	if err := srv.Start(); err != nil {
		errorf("starting API server: %v", err)
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s Engine running. API on %s:%d. Press Ctrl+C to stop.\n",
			green("✓"), cfg.Server.Host, cfg.Server.Port)
	}

	// Starts the engine, blocks until SIGINT/SIGTERM, then shuts it down.
	if err := eng.Run(); err != nil {
		errorf("engine error: %v", err)
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s Shutting down...\n", dim("▸"))
	}
	if err := srv.Stop(); err != nil {
		warnf("stopping API server: %v", err)
	}
}
