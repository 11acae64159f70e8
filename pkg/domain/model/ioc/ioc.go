package ioc

import "github.com/secmon-lab/bastion/pkg/domain/types"

// Set holds indicators extracted from one piece of text. Each slice is
// deduplicated and keeps the order of first appearance.
type Set struct {
	URLs    []string `json:"urls"`
	IPs     []string `json:"ips"`
	Domains []string `json:"domains"`
	Emails  []string `json:"emails"`
	Hashes  []string `json:"hashes"`
}

type Indicator struct {
	Value string              `json:"value"`
	Type  types.IndicatorType `json:"type"`
}

func (x Set) Empty() bool {
	return x.Count() == 0
}

func (x Set) Count() int {
	return len(x.URLs) + len(x.IPs) + len(x.Domains) + len(x.Emails) + len(x.Hashes)
}

// Indicators flattens the set in lookup priority order: URL, domain, IP, hash,
// then email.
func (x Set) Indicators() []Indicator {
	out := make([]Indicator, 0, x.Count())
	add := func(values []string, t types.IndicatorType) {
		for _, v := range values {
			out = append(out, Indicator{Value: v, Type: t})
		}
	}
	add(x.URLs, types.IndicatorURL)
	add(x.Domains, types.IndicatorDomain)
	add(x.IPs, types.IndicatorIP)
	add(x.Hashes, types.IndicatorHash)
	add(x.Emails, types.IndicatorEmail)
	return out
}

// Values returns every indicator value, in Indicators order.
func (x Set) Values() []string {
	indicators := x.Indicators()
	out := make([]string, len(indicators))
	for i, ind := range indicators {
		out[i] = ind.Value
	}
	return out
}
