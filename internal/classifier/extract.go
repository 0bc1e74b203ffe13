package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"specsharp/internal/taxonomy"
	"specsharp/internal/trace"
)

// groupedNumber matches a whole comma-grouped number such as 1,234,567.
var groupedNumber = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})+\b`)

func stripThousands(text string) string {
	return groupedNumber.ReplaceAllStringFunc(text, func(n string) string {
		return strings.ReplaceAll(n, ",", "")
	})
}

// extract applies the taxonomy's extraction rules to text. Only the first
// match of each rule is used; values outside the rule's range are clamped
// and the clamp is traced.
func (c *Classifier) extract(text string, tr *trace.Trace) map[string]int {
	if text == "" {
		return nil
	}
	text = stripThousands(text)
	counts := make(map[string]int)
	for _, rule := range c.rules {
		m := rule.Re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		raw, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		v := raw
		if v < rule.Min {
			v = rule.Min
		}
		if v > rule.Max {
			v = rule.Max
		}
		if v != raw {
			tr.Record(trace.StepExtractionClamped, map[string]any{
				"rule":    rule.Name,
				"raw":     raw,
				"clamped": v,
				"min":     rule.Min,
				"max":     rule.Max,
			})
		}
		counts[rule.Name] = v
	}
	if len(counts) == 0 {
		return nil
	}
	return counts
}

// Extract runs only the extraction rules.
func (c *Classifier) Extract(text string, tr *trace.Trace) map[string]int {
	return c.extract(taxonomy.NormalizeKeyword(text), tr)
}
