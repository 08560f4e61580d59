package main

// ---------------------------------------------------------------------------
// cmd_summary.go — show the latest windowed threat summary
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"
)

func cmdSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	format := fs.String("format", "table", "Output format: table, json")
	jsonOut := fs.Bool("json", false, "Output raw JSON (shorthand for --format json)")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *jsonOut {
		*format = "json"
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	base := apiBase(*configPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, *configPath)
	body, err := apiGet(base+"/api/v1/summary", apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if parseFormat(*format) == FormatJSON {
		fmt.Println(string(body))
		return
	}

	var resp struct {
		Summary *struct {
			Timestamp         time.Time `json:"timestamp"`
			TotalEvents       int       `json:"total_events"`
			RecentEvents      int       `json:"recent_events"`
			AnomalousActivity bool      `json:"anomalous_activity"`
			ByType            map[string]struct {
				Count    int     `json:"count"`
				AvgScore float64 `json:"avg_score"`
				MaxScore float64 `json:"max_score"`
			} `json:"by_type"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		errorf("parsing response: %v", err)
	}

	if resp.Summary == nil {
		fmt.Printf("%s No summary yet — the aggregation cycle has not run.\n", dim("▸"))
		return
	}

	s := resp.Summary
	spike := "no"
	if s.AnomalousActivity {
		spike = red("YES")
	}

	fmt.Printf("%s Threat Summary\n\n", bold("Σ"))
	fmt.Printf("  %-18s %s\n", "Timestamp:", s.Timestamp.Format(time.RFC3339))
	fmt.Printf("  %-18s %d\n", "Total events:", s.TotalEvents)
	fmt.Printf("  %-18s %d\n", "Recent events:", s.RecentEvents)
	fmt.Printf("  %-18s %s\n", "Activity spike:", spike)
	fmt.Println()

	if len(s.ByType) > 0 {
		types := make([]string, 0, len(s.ByType))
		for t := range s.ByType {
			types = append(types, t)
		}
		sort.Strings(types)

		tbl := NewTable(os.Stdout, "TYPE", "COUNT", "AVG SCORE", "MAX SCORE")
		for _, t := range types {
			ts := s.ByType[t]
			tbl.AddRow(t,
				fmt.Sprintf("%d", ts.Count),
				fmt.Sprintf("%.3f", ts.AvgScore),
				fmt.Sprintf("%.3f", ts.MaxScore),
			)
		}
		tbl.Render()
		fmt.Println()
	}
}
