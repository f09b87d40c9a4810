package categorize

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRules returns the built-in rule set. The order encodes precedence.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "AI", Keywords: []string{"ai", "artificial intelligence", "machine learning", "deep learning", "llm", "gpt", "chatgpt"}},
		{Category: "Python", Keywords: []string{"python", "django", "flask", "fastapi", "pandas", "numpy"}},
		{Category: "JavaScript", Keywords: []string{"javascript", "nodejs", "react", "vue", "angular", "typescript"}},
		{Category: "DevOps", Keywords: []string{"docker", "kubernetes", "ci/cd", "jenkins", "github actions", "terraform"}},
		{Category: "Web", Keywords: []string{"web development", "frontend", "backend", "api", "rest", "graphql"}},
		{Category: "Data", Keywords: []string{"data science", "data analysis", "big data", "analytics", "visualization"}},
		{Category: "Cloud", Keywords: []string{"aws", "azure", "gcp", "cloud computing", "serverless"}},
		{Category: "Security", Keywords: []string{"cybersecurity", "security", "encryption", "vulnerability", "penetration testing"}},
	}
}

// LoadRules reads an ordered rule list from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	if err := Validate(rules); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// Validate rejects empty rule lists, unlabelled rules, duplicate labels and
// rules without usable keywords.
func Validate(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("no rules defined")
	}

	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		if strings.TrimSpace(rule.Category) == "" {
			return fmt.Errorf("rule %d has no category label", i+1)
		}
		if _, dup := seen[rule.Category]; dup {
			return fmt.Errorf("duplicate category %q", rule.Category)
		}
		seen[rule.Category] = struct{}{}

		if len(rule.Keywords) == 0 {
			return fmt.Errorf("category %q has no keywords", rule.Category)
		}
		for _, kw := range rule.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("category %q has an empty keyword", rule.Category)
			}
		}
	}
	return nil
}
