package ioc_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

func TestSetIndicators(t *testing.T) {
	set := ioc.Set{
		URLs:    []string{"https://evil.example/a"},
		IPs:     []string{"10.0.0.1"},
		Domains: []string{"evil.example"},
		Emails:  []string{"a@evil.example"},
		Hashes:  []string{"d41d8cd98f00b204e9800998ecf8427e"},
	}

	gt.Equal(t, set.Count(), 5)
	gt.False(t, set.Empty())

	got := set.Indicators()
	gt.A(t, got).Length(5)
	gt.Equal(t, got[0].Type, types.IndicatorURL)
	gt.Equal(t, got[1].Type, types.IndicatorDomain)
	gt.Equal(t, got[2].Type, types.IndicatorIP)
	gt.Equal(t, got[3].Type, types.IndicatorHash)
	gt.Equal(t, got[4].Type, types.IndicatorEmail)
	gt.Equal(t, set.Values()[0], "https://evil.example/a")
}

func TestSetEmpty(t *testing.T) {
	gt.True(t, ioc.Set{}.Empty())
	gt.A(t, ioc.Set{}.Indicators()).Length(0)
}
