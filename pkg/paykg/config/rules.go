package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultRules is the bootstrap rule set the payment agent ships with.
// can-pay reads the (balance user amount) fact in functional notation;
// payment-safe combines it with the ENS shape check.
const DefaultRules = `# payment reasoning bootstrap
(= (valid-ens ?name) (ends-with ?name ".eth"))
(= (can-pay ?user ?amount) (>= (balance ?user) ?amount))
(= (payment-safe ?user ?amount ?ens) (and (can-pay ?user ?amount) (valid-ens ?ens)))
(= (large-payment ?amount) (> ?amount 1000))
(= (new-user ?user) (< (user-age-days ?user) 1))
(= (suspicious-pattern ?user ?amount) (and (large-payment ?amount) (new-user ?user)))
`

// Rules returns the bootstrap rules text: the configured file if set,
// otherwise the built-in set.
func (c Config) Rules() (string, error) {
	if c.RulesPath == "" {
		return DefaultRules, nil
	}
	data, err := os.ReadFile(c.RulesPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SplitRules breaks a rules text into one term text per line, skipping
// blanks and # comments. Line numbers are reported on the error path by the
// caller, so each entry keeps its position.
func SplitRules(rules string) ([]Line, error) {
	scanner := bufio.NewScanner(strings.NewReader(rules))
	var out []Line
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		out = append(out, Line{Num: n, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return out, nil
}

// Line is one non-comment line of a rules file.
type Line struct {
	Num  int
	Text string
}
