package main

// ---------------------------------------------------------------------------
// cmd_events.go — submit threat events to a running instance
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func cmdEvents(args []string) {
	if len(args) > 0 && args[0] == "submit" {
		cmdEventsSubmit(args[1:])
		return
	}
	errorf("usage: mlsentinel events submit --type <type> --score <score> [flags]")
}

func cmdEventsSubmit(args []string) {
	fs := flag.NewFlagSet("events-submit", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	threatType := fs.String("type", "", "DATA_POISONING, ADVERSARIAL_ATTACK, or MODEL_INTEGRITY")
	score := fs.Float64("score", -1, "Threat score in [0, 1]")
	confidence := fs.Float64("confidence", 1.0, "Detection confidence in [0, 1]")
	source := fs.String("source", "", "Source identifier for pattern analysis")
	jsonOut := fs.Bool("json", false, "Output raw JSON")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *threatType == "" {
		errorf("--type is required")
	}
	if *score < 0 || *score > 1 {
		errorf("--score must be in [0, 1]")
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		errorf("invalid timeout %q: %v", *timeoutStr, err)
	}

	details := map[string]interface{}{}
	if *source != "" {
		details["source_id"] = *source
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"threat_type":  strings.ToUpper(*threatType),
		"threat_score": *score,
		"confidence":   *confidence,
		"details":      details,
	})

	base := apiBase(*configPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, *configPath)
	body, err := apiPost(base+"/api/v1/events", payload, apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if *jsonOut {
		fmt.Println(string(body))
		return
	}

	fmt.Fprintf(os.Stdout, "%s Event accepted (%s, score %.2f)\n",
		green("✓"), strings.ToUpper(*threatType), *score)
}
