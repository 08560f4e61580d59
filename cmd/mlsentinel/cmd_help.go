package main

// ---------------------------------------------------------------------------
// cmd_help.go — per-command help text
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"
)

func cmdHelp(cmd string) {
	switch cmd {
	case "serve":
		fmt.Printf("%s\n\n", bold("mlsentinel serve — start the engine and API server"))
		fmt.Printf("USAGE\n  mlsentinel serve [flags]\n\n")
		fmt.Printf("FLAGS\n")
		fmt.Printf("  %-22s %s\n", "--config <path>", "Config file path")
		fmt.Printf("  %-22s %s\n", "--log-level <level>", "Log level override: debug, info, warn, error")
		fmt.Printf("  %-22s %s\n", "--dry-run", "Validate config, then exit")
		fmt.Printf("  %-22s %s\n", "--quiet, -q", "Suppress banner and non-essential output")
		fmt.Printf("  %-22s %s\n", "--no-color", "Disable color output")
	case "status":
		fmt.Printf("%s\n\n", bold("mlsentinel status — show status of a running instance"))
		fmt.Printf("USAGE\n  mlsentinel status [flags]\n\n")
		fmt.Printf("FLAGS\n")
		printClientFlags()
		fmt.Printf("  %-22s %s\n", "--format <fmt>", "Output format: table, json, csv")
	case "alerts":
		fmt.Printf("%s\n\n", bold("mlsentinel alerts — fetch and manage alerts"))
		fmt.Printf("USAGE\n  mlsentinel alerts [flags]\n")
		fmt.Printf("  mlsentinel alerts get <alert-id>\n")
		fmt.Printf("  mlsentinel alerts ack <alert-id>\n")
		fmt.Printf("  mlsentinel alerts resolve <alert-id>\n")
		fmt.Printf("  mlsentinel alerts false-positive <alert-id>\n\n")
		fmt.Printf("FLAGS\n")
		printClientFlags()
		fmt.Printf("  %-22s %s\n", "--severity <sev>", "Minimum severity: INFO, WARNING, HIGH, CRITICAL")
		fmt.Printf("  %-22s %s\n", "--limit <n>", "Maximum alerts to fetch")
		fmt.Printf("  %-22s %s\n", "--format <fmt>", "Output format: table, json, csv")
	case "threats":
		fmt.Printf("%s\n\n", bold("mlsentinel threats — list active threat events"))
		fmt.Printf("USAGE\n  mlsentinel threats [flags]\n\n")
		fmt.Printf("FLAGS\n")
		printClientFlags()
		fmt.Printf("  %-22s %s\n", "--since <rfc3339>", "Only show events after this time")
		fmt.Printf("  %-22s %s\n", "--format <fmt>", "Output format: table, json, csv")
	case "events":
		fmt.Printf("%s\n\n", bold("mlsentinel events — submit a threat event"))
		fmt.Printf("USAGE\n  mlsentinel events submit --type <type> --score <score> [flags]\n\n")
		fmt.Printf("FLAGS\n")
		printClientFlags()
		fmt.Printf("  %-22s %s\n", "--type <type>", "DATA_POISONING, ADVERSARIAL_ATTACK, or MODEL_INTEGRITY")
		fmt.Printf("  %-22s %s\n", "--score <score>", "Threat score in [0, 1]")
		fmt.Printf("  %-22s %s\n", "--confidence <c>", "Detection confidence in [0, 1]")
		fmt.Printf("  %-22s %s\n", "--source <id>", "Source identifier for pattern analysis")
	case "summary":
		fmt.Printf("%s\n\n", bold("mlsentinel summary — show the latest windowed summary"))
		fmt.Printf("USAGE\n  mlsentinel summary [flags]\n\n")
		fmt.Printf("FLAGS\n")
		printClientFlags()
		fmt.Printf("  %-22s %s\n", "--format <fmt>", "Output format: table, json")
	case "config":
		fmt.Printf("%s\n\n", bold("mlsentinel config — inspect and manage configuration"))
		fmt.Printf("USAGE\n  mlsentinel config show [flags]\n")
		fmt.Printf("  mlsentinel config validate [flags]\n")
		fmt.Printf("  mlsentinel config init [--output <path>]\n")
	case "version":
		fmt.Printf("%s\n\n", bold("mlsentinel version — print version and build info"))
		fmt.Printf("USAGE\n  mlsentinel version\n")
	default:
		fmt.Fprintf(os.Stderr, "no help available for %q\n\n", cmd)
		printUsage(os.Stderr)
	}
}

func printClientFlags() {
	fmt.Printf("  %-22s %s\n", "--config <path>", "Config file path")
	fmt.Printf("  %-22s %s\n", "--host <host>", "API host override")
	fmt.Printf("  %-22s %s\n", "--port <port>", "API port override")
	fmt.Printf("  %-22s %s\n", "--api-key <key>", "API key for authentication")
	fmt.Printf("  %-22s %s\n", "--timeout <dur>", "Request timeout (default 5s)")
}
