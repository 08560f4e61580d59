package main

// ---------------------------------------------------------------------------
// cmd_threats.go — list active threat events from a running instance
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"time"
)

func cmdThreats(args []string) {
	fs := flag.NewFlagSet("threats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	since := fs.String("since", "", "Only show events after this RFC3339 time")
	format := fs.String("format", "table", "Output format: table, json, csv")
	jsonOut := fs.Bool("json", false, "Output raw JSON (shorthand for --format json)")
	output := fs.String("output", "", "Write output to file")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *jsonOut {
		*format = "json"
	}
	outFmt := parseFormat(*format)

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	base := apiBase(*configPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, *configPath)
	url := base + "/api/v1/threats"
	if *since != "" {
		if _, err := time.Parse(time.RFC3339, *since); err != nil {
			errorf("invalid --since %q: %v", *since, err)
		}
		url += "?since=" + *since
	}

	body, err := apiGet(url, apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	w, cleanup := outputWriter(*output)
	defer cleanup()

	if outFmt == FormatJSON {
		fmt.Fprintln(w, string(body))
		return
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(body, &resp); err != nil {
		errorf("parsing response: %v", err)
	}
	threats, _ := resp["threats"].([]interface{})

	if outFmt == FormatCSV {
		headers := []string{"id", "type", "level", "score", "timestamp"}
		rows := make([][]string, 0, len(threats))
		for _, t := range threats {
			ev := t.(map[string]interface{})
			rows = append(rows, []string{
				fmt.Sprintf("%v", ev["id"]),
				fmt.Sprintf("%v", ev["type"]),
				fmt.Sprintf("%v", ev["level"]),
				fmt.Sprintf("%v", ev["score"]),
				fmt.Sprintf("%v", ev["timestamp"]),
			})
		}
		writeCSV(w, headers, rows)
		return
	}

	// Table (default)
	if len(threats) == 0 {
		fmt.Fprintf(w, "%s No active threats.\n", dim("▸"))
		return
	}

	fmt.Fprintf(w, "%s Active Threats (%d)\n\n", bold("⚠"), len(threats))

	tbl := NewTable(w, "TYPE", "LEVEL", "SCORE", "TIMESTAMP", "ID")
	for _, t := range threats {
		ev := t.(map[string]interface{})
		tbl.AddRow(
			fmt.Sprintf("%v", ev["type"]),
			fmt.Sprintf("%v", ev["level"]),
			fmt.Sprintf("%.3f", toFloat(ev["score"])),
			fmt.Sprintf("%v", ev["timestamp"]),
			fmt.Sprintf("%v", ev["id"]),
		)
	}
	tbl.Render()
	fmt.Fprintln(w)
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
