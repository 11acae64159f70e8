package threat_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/domain/model/ioc"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

func TestAggregateIsMaxNotSum(t *testing.T) {
	testCases := []struct {
		name   string
		scores []int
		want   int
	}{
		{name: "no signals", scores: nil, want: 0},
		{name: "single", scores: []int{42}, want: 42},
		{name: "several weak signals are not summed", scores: []int{40, 40, 40}, want: 40},
		{name: "strong signal is not diluted", scores: []int{95, 10, 5}, want: 95},
		{name: "over range is clamped", scores: []int{150}, want: 100},
		{name: "negative is clamped", scores: []int{-20}, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var signals []threat.Signal
			for _, s := range tc.scores {
				signals = append(signals, threat.Signal{Kind: types.SignalContentPattern, Score: s})
			}
			analysis := threat.NewAnalysis(ioc.Set{}, signals)
			gt.Equal(t, analysis.AggregateScore, tc.want)
		})
	}
}

func TestSuggestAction(t *testing.T) {
	testCases := []struct {
		score       int
		action      types.SuggestedAction
		shouldBlock bool
	}{
		{score: 0, action: types.ActionNone},
		{score: 49, action: types.ActionNone},
		{score: 50, action: types.ActionAlertMods},
		{score: 79, action: types.ActionAlertMods},
		{score: 80, action: types.ActionDeleteMessage, shouldBlock: true},
		{score: 89, action: types.ActionDeleteMessage, shouldBlock: true},
		{score: 90, action: types.ActionBanUser, shouldBlock: true},
		{score: 100, action: types.ActionBanUser, shouldBlock: true},
	}

	for _, tc := range testCases {
		analysis := threat.NewAnalysis(ioc.Set{}, []threat.Signal{{Score: tc.score}})
		gt.Equal(t, analysis.SuggestedAction, tc.action)
		gt.Equal(t, analysis.ShouldBlock, tc.shouldBlock)
	}
}

func TestTopSignal(t *testing.T) {
	analysis := threat.NewAnalysis(ioc.Set{}, []threat.Signal{
		{Kind: types.SignalContentPattern, Score: 30},
		{Kind: types.SignalURLReputation, Score: 95},
	})
	top, ok := analysis.TopSignal()
	gt.True(t, ok)
	gt.Equal(t, top.Kind, types.SignalURLReputation)
	gt.True(t, analysis.ShouldAlert())

	_, ok = threat.NewAnalysis(ioc.Set{}, nil).TopSignal()
	gt.False(t, ok)
}
