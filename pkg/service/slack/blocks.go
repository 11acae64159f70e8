package slack

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/slack-go/slack"
)

const (
	actionBlockID  = "incident_actions"
	maxIndicators  = 5
	maxDescription = 2900
)

func plainText(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, s, false, false)
}

func markdown(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, s, false, false)
}

func buildAlertBlocks(alert *incident.Alert) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(plainText(scoreEmoji(alert.Score) + " " + alert.Title())),
	}

	if alert.Description != "" {
		blocks = append(blocks, slack.NewSectionBlock(markdown(shortenString(alert.Description, maxDescription)), nil, nil))
	}

	fields := []*slack.TextBlockObject{
		markdown(fmt.Sprintf("*User:*\n%s", userMention(alert.SubjectUserID))),
		markdown(fmt.Sprintf("*Score:*\n%d / %d", alert.Score, threat.MaxScore)),
		markdown(fmt.Sprintf("*Type:*\n%s", alert.ThreatType)),
		markdown(fmt.Sprintf("*Community:*\n%s", alert.CommunityID)),
	}
	blocks = append(blocks, slack.NewSectionBlock(nil, fields, nil))

	if len(alert.Indicators) > 0 {
		blocks = append(blocks, slack.NewSectionBlock(
			markdown("*Indicators:*\n"+indicatorList(alert.Indicators)), nil, nil))
	}

	if alert.Enrichment.Known() {
		var lines []string
		for _, r := range alert.Enrichment.Records {
			line := fmt.Sprintf("• `%s` %s (%d%%)", defang(r.Indicator), r.Source, r.Confidence)
			if r.Reference != "" {
				line += fmt.Sprintf(" <%s|details>", r.Reference)
			}
			lines = append(lines, line)
		}
		blocks = append(blocks, slack.NewSectionBlock(
			markdown("*Threat intel:*\n"+strings.Join(lines, "\n")), nil, nil))
	}

	blocks = append(blocks, slack.NewContextBlock("",
		markdown(fmt.Sprintf("ID: `%s` | %s", alert.ID, alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")))))

	return blocks
}

// buildActionBlock has one button per analyst action. The alert ID travels
// as the button value.
func buildActionBlock(id types.AlertID) slack.Block {
	styles := map[types.AnalystAction]slack.Style{
		types.AnalystBan:     slack.StyleDanger,
		types.AnalystTimeout: slack.StylePrimary,
	}

	buttons := make([]slack.BlockElement, 0, len(types.AnalystActions))
	for _, action := range types.AnalystActions {
		btn := slack.NewButtonBlockElement(incident.SlackActionID(action), id.String(), plainText(action.Label()))
		if style, ok := styles[action]; ok {
			btn = btn.WithStyle(style)
		}
		buttons = append(buttons, btn)
	}
	return slack.NewActionBlock(actionBlockID, buttons...)
}

func buildOpenAlertBlocks(alert *incident.Alert) []slack.Block {
	return append(buildAlertBlocks(alert), buildActionBlock(alert.ID))
}

func buildResolvedAlertBlocks(alert *incident.Alert, outcome incident.Outcome) []slack.Block {
	status := "✅"
	if !outcome.Success {
		status = "⚠️"
	}
	return append(buildAlertBlocks(alert),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(markdown(fmt.Sprintf("%s *%s* by %s %s\n%s",
			status, outcome.Action.Label(), outcome.AnalystID,
			humanize.Time(outcome.ExecutedAt), outcome.Message)), nil, nil),
	)
}

func buildMitigationBlocks(report raid.Report) []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(plainText("🛡️ Raid mitigation")),
		slack.NewSectionBlock(markdown(report.Summary()), nil, nil),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			markdown(fmt.Sprintf("*Triggered by:*\n%s", userMention(report.TriggeredBy))),
			markdown(fmt.Sprintf("*Removed:*\n%d / %d", report.Removed, report.Attempted)),
			markdown(fmt.Sprintf("*Failed:*\n%d", report.Failed)),
		}, nil),
	}
}

func scoreEmoji(score int) string {
	switch {
	case score >= threat.BlockThreshold:
		return "🚨"
	case score >= threat.AlertThreshold:
		return "⚠️"
	}
	return "ℹ️"
}

func indicatorList(indicators []string) string {
	lines := make([]string, 0, maxIndicators+1)
	for i, v := range indicators {
		if i == maxIndicators {
			lines = append(lines, fmt.Sprintf("... and %d more", len(indicators)-maxIndicators))
			break
		}
		lines = append(lines, "• `"+defang(v)+"`")
	}
	return strings.Join(lines, "\n")
}

func defang(v string) string {
	return strings.ReplaceAll(v, ".", "[.]")
}

func userMention(id types.UserID) string {
	if id == "" {
		return "unknown"
	}
	return id.String()
}

func shortenString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
