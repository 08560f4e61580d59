package main

// ---------------------------------------------------------------------------
// cmd_status.go — fetch status from a running instance
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"time"
)

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	format := fs.String("format", "table", "Output format: table, json, csv")
	jsonOut := fs.Bool("json", false, "Output raw JSON (shorthand for --format json)")
	output := fs.String("output", "", "Write output to file")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	*configPath = envConfig(*configPath)
	hostVal := envHost(*host)
	portVal := envPort(*port)

	if *jsonOut {
		*format = "json"
	}
	outFmt := parseFormat(*format)

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	base := apiBase(*configPath, hostVal, portVal)
	apiKey := resolveAPIKey(*apiKeyFlag, *configPath)
	body, err := apiGet(base+"/api/v1/status", apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	w, cleanup := outputWriter(*output)
	defer cleanup()

	if outFmt == FormatJSON {
		fmt.Fprintln(w, string(body))
		return
	}

	var status map[string]interface{}
	if err := json.Unmarshal(body, &status); err != nil {
		errorf("parsing response: %v", err)
	}

	if outFmt == FormatCSV {
		headers := []string{"field", "value"}
		rows := [][]string{
			{"version", fmt.Sprintf("%v", status["version"])},
			{"status", fmt.Sprintf("%v", status["status"])},
			{"bus_connected", fmt.Sprintf("%v", status["bus_connected"])},
			{"active_threats", fmt.Sprintf("%v", status["active_threats"])},
			{"alerts_total", fmt.Sprintf("%v", status["alerts_total"])},
			{"adversarial_calibrated", fmt.Sprintf("%v", status["adversarial_calibrated"])},
			{"timestamp", fmt.Sprintf("%v", status["timestamp"])},
		}
		writeCSV(w, headers, rows)
		return
	}

	// Table (default)
	fmt.Fprintf(w, "%s MLSentinel Status\n\n", bold("●"))
	fmt.Fprintf(w, "  %-24s %s\n", "Version:", green(fmt.Sprintf("%v", status["version"])))
	fmt.Fprintf(w, "  %-24s %v\n", "Status:", status["status"])
	fmt.Fprintf(w, "  %-24s %v\n", "Bus connected:", status["bus_connected"])
	fmt.Fprintf(w, "  %-24s %v\n", "Active threats:", status["active_threats"])
	fmt.Fprintf(w, "  %-24s %v\n", "Alerts stored:", status["alerts_total"])
	fmt.Fprintf(w, "  %-24s %v\n", "Adversarial calibrated:", status["adversarial_calibrated"])
	fmt.Fprintf(w, "  %-24s %v\n", "Timestamp:", status["timestamp"])
	fmt.Fprintln(w)
}
