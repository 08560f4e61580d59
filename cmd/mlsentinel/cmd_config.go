package main

// ---------------------------------------------------------------------------
// cmd_config.go — show, validate, or initialize configuration
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"gopkg.in/yaml.v3"
)

func cmdConfig(args []string) {
	sub := "show"
	if len(args) > 0 {
		switch args[0] {
		case "show", "validate", "init":
			sub = args[0]
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	format := fs.String("format", "yaml", "Output format: yaml, json")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *jsonOut {
		*format = "json"
	}

	switch sub {
	case "init":
		path := *output
		if path == "" {
			path = *configPath
		}
		if _, err := os.Stat(path); err == nil {
			errorf("refusing to overwrite existing config at %s", path)
		}
		if err := core.SaveConfig(core.DefaultConfig(), path); err != nil {
			errorf("writing config: %v", err)
		}
		fmt.Fprintf(os.Stdout, "%s Wrote starter config to %s\n", green("✓"), path)

	case "validate":
		cfg, err := core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Config invalid: %v\n", red("✗"), err)
			os.Exit(1)
		}
		warnings, errs := cfg.Validate()
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "%s %s\n", yellow("⚠"), w)
		}
		if len(errs) > 0 {
			fmt.Fprintf(os.Stderr, "%s Config has %d issue(s):\n", red("✗"), len(errs))
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "  - %s\n", e)
			}
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "%s Config valid (%s).\n", green("✓"), *configPath)

	default: // show
		cfg, err := core.LoadConfig(*configPath)
		if err != nil {
			errorf("loading config: %v", err)
		}

		// Redact API keys from the output
		safeCfg := *cfg
		safeCfg.Server.APIKeys = nil

		w, cleanup := outputWriter(*output)
		defer cleanup()

		if *format == "json" {
			data, err := json.MarshalIndent(&safeCfg, "", "  ")
			if err != nil {
				errorf("marshaling config: %v", err)
			}
			fmt.Fprintln(w, string(data))
			return
		}

		data, err := yaml.Marshal(&safeCfg)
		if err != nil {
			errorf("marshaling config: %v", err)
		}
		fmt.Fprint(w, string(data))
	}
}
