// Command bootstrap seeds a SQLite knowledge store from a rules file so a
// server can start against a pre-populated database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hebuildapps/paykg/pkg/paykg/config"
	"github.com/hebuildapps/paykg/pkg/paykg/kb"
	"github.com/hebuildapps/paykg/pkg/paykg/store/sqlite"
	"github.com/hebuildapps/paykg/pkg/paykg/term"
)

func main() {
	var (
		dbPath    = flag.String("db", "", "SQLite path (required)")
		rulesPath = flag.String("rules", "", "Rules file (default: built-in rule set)")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}

	rules := config.DefaultRules
	if *rulesPath != "" {
		data, err := os.ReadFile(*rulesPath)
		if err != nil {
			log.Fatal(err)
		}
		rules = string(data)
	}

	ctx := context.Background()
	persist, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer persist.Close()

	lines, err := config.SplitRules(rules)
	if err != nil {
		log.Fatal(err)
	}

	nFacts, nRules := 0, 0
	for _, line := range lines {
		t, err := term.Parse(line.Text)
		if err != nil {
			log.Fatalf("line %d: %v", line.Num, err)
		}
		if rule, ok := kb.RuleFromTerm(t); ok {
			if err := rule.Validate(); err != nil {
				log.Fatalf("line %d: %v", line.Num, err)
			}
			if err := persist.AppendRule(ctx, rule.Term().String()); err != nil {
				log.Fatal(err)
			}
			nRules++
			continue
		}
		if !t.IsGround() {
			log.Fatalf("line %d: fact contains variables: %s", line.Num, t)
		}
		if err := persist.AppendFact(ctx, t.String()); err != nil {
			log.Fatal(err)
		}
		nFacts++
	}

	fmt.Printf("seeded %s: %d facts, %d rules\n", *dbPath, nFacts, nRules)
}
