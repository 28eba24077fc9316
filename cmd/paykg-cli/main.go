// Command paykg-cli is an interactive shell over the knowledge graph:
// assert and retract facts and rules, run queries, and dry-run payment
// authorizations.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hebuildapps/paykg/pkg/paykg"
	"github.com/hebuildapps/paykg/pkg/paykg/config"
	"github.com/hebuildapps/paykg/pkg/paykg/store/sqlite"
)

func main() {
	var (
		dbPath     = flag.String("db", "", "SQLite path (optional; in-memory without it)")
		configPath = flag.String("config", "", "YAML config file (optional)")
		oneShot    = flag.String("query", "", "One-shot query (non-interactive mode)")
	)
	flag.Parse()

	ctx := context.Background()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	opts := paykg.Options{Config: cfg}
	if *dbPath != "" {
		persist, err := sqlite.Open(ctx, *dbPath)
		if err != nil {
			log.Fatal(err)
		}
		opts.Persist = persist
	}

	graph, err := paykg.New(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer graph.Close()

	if *oneShot != "" {
		if err := runQuery(ctx, graph, *oneShot); err != nil {
			log.Fatal(err)
		}
		return
	}

	fmt.Println("paykg shell — assert/retract/query/authorize/facts/rules (Ctrl+D to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(ctx, graph, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func dispatch(ctx context.Context, graph *paykg.Graph, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "assert":
		added, err := graph.Assert(ctx, rest)
		if err != nil {
			return err
		}
		fmt.Println("added:", added)
	case "retract":
		removed, err := graph.Retract(ctx, rest)
		if err != nil {
			return err
		}
		fmt.Println("removed:", removed)
	case "query":
		return runQuery(ctx, graph, rest)
	case "authorize":
		parts := strings.Fields(rest)
		if len(parts) != 3 {
			return fmt.Errorf("usage: authorize <user> <amount> <recipient>")
		}
		d, err := graph.AuthorizePayment(ctx, parts[0], parts[1], parts[2])
		if err != nil {
			return err
		}
		fmt.Printf("allow: %v (%s)\n", d.Allow, d.ID)
		for _, r := range d.Reasons {
			fmt.Println("  reason:", r)
		}
		for _, s := range d.Trace {
			fmt.Printf("  %d. %s -> %s\n", s.Step, s.Action, s.Outcome)
		}
	case "facts":
		for _, f := range graph.ListFacts() {
			fmt.Println(f)
		}
	case "rules":
		for _, r := range graph.ListRules() {
			fmt.Println(r)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func runQuery(ctx context.Context, graph *paykg.Graph, text string) error {
	results, err := graph.Query(ctx, text)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no")
		return nil
	}
	for i, binding := range results {
		if len(binding) == 0 {
			fmt.Println("yes")
			continue
		}
		fmt.Printf("%d:", i+1)
		for name, value := range binding {
			fmt.Printf(" ?%s=%s", name, value)
		}
		fmt.Println()
	}
	return nil
}
