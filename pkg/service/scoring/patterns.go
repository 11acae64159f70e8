package scoring

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Patterns are the content rules. Matching is case-insensitive.
type Patterns struct {
	Keywords   []string `yaml:"keywords"`
	Shorteners []string `yaml:"shorteners"`
}

func DefaultPatterns() Patterns {
	return Patterns{
		Keywords: []string{
			"free nitro",
			"discord nitro for free",
			"steam gift",
			"claim your prize",
			"you have been selected",
			"airdrop",
			"double your crypto",
			"verify your account",
			"account will be suspended",
			"click here to claim",
		},
		Shorteners: []string{
			"bit.ly",
			"tinyurl.com",
			"t.co",
			"goo.gl",
			"is.gd",
			"ow.ly",
			"cutt.ly",
			"rb.gy",
			"shorturl.at",
			"tiny.cc",
		},
	}
}

// LoadPatterns reads patterns from a YAML file. Lists absent from the file
// keep their defaults.
func LoadPatterns(path string) (Patterns, error) {
	p := DefaultPatterns()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, goerr.Wrap(err, "failed to read scoring patterns", goerr.V("file", path))
	}

	var loaded Patterns
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Patterns{}, goerr.Wrap(err, "failed to parse scoring patterns", goerr.V("file", path))
	}

	if len(loaded.Keywords) > 0 {
		p.Keywords = loaded.Keywords
	}
	if len(loaded.Shorteners) > 0 {
		p.Shorteners = loaded.Shorteners
	}
	p.normalize()
	return p, nil
}

func (x *Patterns) normalize() {
	for i, k := range x.Keywords {
		x.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	for i, s := range x.Shorteners {
		x.Shorteners[i] = strings.ToLower(strings.TrimSpace(s))
	}
}
