package scoring

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

// Content rule weights.
const (
	keywordScore    = 20
	uppercaseScore  = 10
	repeatedScore   = 15
	shortenerScore  = 10
	uppercaseRatio  = 0.7
	uppercaseMinLen = 20
	repeatedMinRun  = 11
)

// Finding is one content rule that matched.
type Finding struct {
	Rule   string `json:"rule"`
	Match  string `json:"match,omitempty"`
	Points int    `json:"points"`
}

// analyzeContent applies the content rules to text. Findings are folded into
// one signal whose score is their capped sum. It returns nil when nothing
// matched.
func analyzeContent(text string, iocs ioc.Set, patterns Patterns) *threat.Signal {
	var findings []Finding
	lower := strings.ToLower(text)

	for _, kw := range patterns.Keywords {
		if kw != "" && strings.Contains(lower, kw) {
			findings = append(findings, Finding{Rule: "keyword", Match: kw, Points: keywordScore})
		}
	}

	if ratio, ok := upperRatio(text); ok && ratio > uppercaseRatio {
		findings = append(findings, Finding{Rule: "excessive_uppercase", Match: fmt.Sprintf("%.2f", ratio), Points: uppercaseScore})
	}

	if run, ok := longestRun(text); ok {
		findings = append(findings, Finding{Rule: "repeated_characters", Match: run, Points: repeatedScore})
	}

	for _, host := range shortenerHosts(iocs, patterns.Shorteners) {
		findings = append(findings, Finding{Rule: "url_shortener", Match: host, Points: shortenerScore})
	}

	if len(findings) == 0 {
		return nil
	}

	score := 0
	rules := make([]string, 0, len(findings))
	for _, f := range findings {
		score += f.Points
		rules = append(rules, f.Rule)
	}

	return &threat.Signal{
		Kind:          types.SignalContentPattern,
		Score:         threat.ClampScore(score),
		IndicatorType: types.IndicatorText,
		Source:        "content_analysis",
		Description:   "Suspicious content: " + strings.Join(dedupe(rules), ", "),
		Metadata:      map[string]any{"findings": findings},
	}
}

// upperRatio is the share of upper case among letters. ok is false for texts
// shorter than uppercaseMinLen or without letters.
func upperRatio(text string) (float64, bool) {
	if len([]rune(text)) < uppercaseMinLen {
		return 0, false
	}
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0, false
	}
	return float64(upper) / float64(letters), true
}

// longestRun finds a run of at least repeatedMinRun identical characters,
// ignoring whitespace.
func longestRun(text string) (string, bool) {
	var prev rune
	count := 0
	for _, r := range text {
		if r == prev && !unicode.IsSpace(r) {
			count++
			if count >= repeatedMinRun {
				return strings.Repeat(string(r), count), true
			}
			continue
		}
		prev = r
		count = 1
	}
	return "", false
}

// shortenerHosts returns the distinct shortener hosts referenced by the URLs
// and the bare domains of iocs, so "bit.ly/x" counts like "https://bit.ly/x".
func shortenerHosts(iocs ioc.Set, shorteners []string) []string {
	hosts := make([]string, 0, len(iocs.URLs)+len(iocs.Domains))
	for _, u := range iocs.URLs {
		if parsed, err := url.Parse(u); err == nil {
			hosts = append(hosts, parsed.Hostname())
		}
	}
	hosts = append(hosts, iocs.Domains...)

	var matched []string
	seen := map[string]struct{}{}
	for _, h := range hosts {
		host := strings.TrimPrefix(strings.ToLower(h), "www.")
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		if slices.Contains(shorteners, host) {
			matched = append(matched, host)
		}
	}
	return matched
}

func dedupe(values []string) []string {
	seen := map[string]struct{}{}
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
