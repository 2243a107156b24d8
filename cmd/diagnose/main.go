// Command diagnose runs a one-shot market diagnosis from a snapshot
// file and prints the report, without needing the HTTP server.
//
// Usage:
//
//	diagnose -input snapshot.json [-format text|json]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"market-doctor/internal/decision"
	"market-doctor/internal/engine"
	"market-doctor/internal/logging"
)

func main() {
	inputPath := flag.String("input", "", "path to a diagnosis request JSON file (use - for stdin)")
	format := flag.String("format", "text", "output format: text or json")
	logLevel := flag.String("log-level", "ERROR", "log level for analyzer diagnostics")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "diagnose: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	var data []byte
	var err error
	if *inputPath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*inputPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "diagnose: failed to read input: %v\n", err)
		os.Exit(1)
	}

	var req engine.Request
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Fprintf(os.Stderr, "diagnose: invalid request JSON: %v\n", err)
		os.Exit(1)
	}
	if req.Signal.Symbol == "" {
		fmt.Fprintln(os.Stderr, "diagnose: snapshot is missing a symbol")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: *logLevel, Output: "stderr", JSONFormat: false})

	eng := engine.New(decision.DefaultConfig(), logger)
	report := eng.Diagnose(req)

	switch *format {
	case "json":
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "diagnose: failed to encode report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	case "text":
		fmt.Println(report.Text)
		fmt.Printf("\n[%s %s] %s", report.Symbol, report.Timeframe, report.Decision)
		if report.Strength != "" {
			fmt.Printf(" (%s)", report.Strength)
		}
		fmt.Printf(" | confidence %.0f%% | report %s\n", report.Confidence*100, report.ID)
	default:
		fmt.Fprintf(os.Stderr, "diagnose: unknown format %q\n", *format)
		os.Exit(2)
	}
}
