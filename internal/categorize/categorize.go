// Package categorize assigns category labels to articles using an ordered
// keyword rule list.
package categorize

import (
	"strings"

	"techtrends/aggregator/internal/models"
)

// Rule pairs a category label with the keyword phrases that select it.
// Rule order is significant: the first rule with a matching phrase wins.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Label returns the first category whose keywords occur in the lower-cased
// concatenation of title and description. Phrases match as plain
// substrings, so short keywords can match inside longer words.
func Label(title, description string, rules []Rule) (string, bool) {
	text := strings.ToLower(title + " " + description)
	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(keyword)) {
				return rule.Category, true
			}
		}
	}
	return "", false
}

// Apply returns the article with its category assigned, or cleared when no
// rule matches. No other field changes.
func Apply(article models.Article, rules []Rule) models.Article {
	if label, ok := Label(article.Title, article.Description, rules); ok {
		article.Category = &label
	} else {
		article.Category = nil
	}
	return article
}
