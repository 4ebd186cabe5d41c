package main

// message-trace runs redprl on a .prl file and prints every parsed message
// followed by how it was classified. For debugging.

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sanjit/redprl-mcp/internal/config"
	"github.com/sanjit/redprl-mcp/internal/logging"
	"github.com/sanjit/redprl-mcp/internal/redprl"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: message-trace <file.prl> [-- redprl flags...]\n")
		os.Exit(1)
	}

	file := os.Args[1]
	var extraArgs []string
	for i, arg := range os.Args[2:] {
		if arg == "--" {
			extraArgs = os.Args[i+3:]
			break
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New("warn", "", os.Stderr)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Close()

	runner := cfg.Runner(logger.Logger)
	runner.Args = append(runner.Args, extraArgs...)

	doc, err := redprl.LoadDocument(file)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	fmt.Printf("$ %s %s\n\n", runner.Binary, strings.Join(runner.Command(doc), " "))

	response, err := runner.Run(context.Background(), doc)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	messages := redprl.ParseMessages(response)
	for i, m := range messages {
		fmt.Printf("=== Message %d ===\n", i+1)
		fmt.Printf("[%s] %s %d.%d-%d.%d\n",
			m.Kind, m.Path,
			m.Range.Start.Line, m.Range.Start.Character,
			m.Range.End.Line, m.Range.End.Character)
		for _, line := range m.Content {
			fmt.Printf("  | %s\n", line)
		}
		fmt.Println()
	}

	res := redprl.Classifier{BaseDir: filepath.Dir(doc.Path)}.Classify(messages)
	diags := 0
	for _, ds := range res.Diagnostics {
		diags += len(ds)
	}
	fmt.Printf("--- %d messages: %d diagnostics in %d files, %d lenses, %d symbols ---\n\n",
		len(messages), diags, len(res.Diagnostics), len(res.Lenses), len(res.Symbols))
	fmt.Print(redprl.FormatResult(res))
	fmt.Println()
}
