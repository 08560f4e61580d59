package main

// ---------------------------------------------------------------------------
// banner.go — banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	return `
    ╔════════════════════════════════════════════════════════╗
    ║                                                        ║
    ║    M L S E N T I N E L                                 ║
    ║                                                        ║
    ║    ML THREAT DETECTION & REAL-TIME MONITORING          ║
    ║                                                        ║
    ╚════════════════════════════════════════════════════════╝
`
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "mlsentinel v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, bannerText())
	fmt.Fprintf(w, "  %s\n\n", dim("v"+version))
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  mlsentinel <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	fmt.Fprintf(w, "  %-10s  %s\n", bold("serve"), "Start the mlsentinel engine and API server")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("status"), "Show status of a running mlsentinel instance")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("alerts"), "Fetch, acknowledge, or resolve alerts")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("threats"), "List active threat events")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("events"), "Submit a threat event to the pipeline")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("summary"), "Show the latest windowed threat summary")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("config"), "Show, validate, or initialize configuration")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("version"), "Print version and build info")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("help"), "Show help for a command")
	fmt.Fprintf(w, "\n%s\n\n", bold("GLOBAL FLAGS"))
	fmt.Fprintf(w, "  %-22s  %s\n", "--config <path>", "Config file path (default: "+defaultConfigPath+", env: MLSENTINEL_CONFIG)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--api-key <key>", "API key (env: MLSENTINEL_API_KEY)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--format <fmt>", "Output format: table, json, csv (default: table)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--version, -V", "Print version and exit")
	fmt.Fprintf(w, "  %-22s  %s\n", "--help, -h", "Show help")
	fmt.Fprintf(w, "\n%s\n\n", bold("ENVIRONMENT VARIABLES"))
	fmt.Fprintf(w, "  %-22s  %s\n", "MLSENTINEL_CONFIG", "Default config file path")
	fmt.Fprintf(w, "  %-22s  %s\n", "MLSENTINEL_HOST", "API host override")
	fmt.Fprintf(w, "  %-22s  %s\n", "MLSENTINEL_PORT", "API port override")
	fmt.Fprintf(w, "  %-22s  %s\n", "MLSENTINEL_API_KEY", "API key for authentication")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Start with defaults"))
	fmt.Fprintf(w, "  mlsentinel serve\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Check a running instance"))
	fmt.Fprintf(w, "  mlsentinel status --format json\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Fetch critical alerts as CSV"))
	fmt.Fprintf(w, "  mlsentinel alerts --severity CRITICAL --format csv --output alerts.csv\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Submit an external detection to the pipeline"))
	fmt.Fprintf(w, "  mlsentinel events submit --type ADVERSARIAL_ATTACK --score 0.85\n\n")
	fmt.Fprintf(w, "Run %s for detailed help on any command.\n\n", bold("mlsentinel help <command>"))
}
