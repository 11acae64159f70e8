package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/model/raid"
	"github.com/secmon-lab/bastion/pkg/domain/model/threat"
	"github.com/secmon-lab/bastion/pkg/domain/types"
)

const (
	sinkName = "discord"

	colorCritical = 0xFF0000
	colorWarning  = 0xFFA500
	colorInfo     = 0x3498DB
	colorResolved = 0x95A5A6

	maxIndicators = 5
	footerText    = "bastion threat response"
)

// Notifier posts alerts as embeds with one button per analyst action to a
// moderator channel.
type Notifier struct {
	session   interfaces.DiscordSession
	channelID string
}

var _ interfaces.AlertNotifier = &Notifier{}

func NewNotifier(session interfaces.DiscordSession, channelID string) *Notifier {
	return &Notifier{session: session, channelID: channelID}
}

func (x *Notifier) Name() string { return sinkName }

func (x *Notifier) NotifyAlert(ctx context.Context, alert *incident.Alert) (*incident.NotificationRef, error) {
	msg := &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{alertEmbed(alert)},
		Components: actionComponents(alert.ID),
	}

	posted, err := x.session.ChannelMessageSendComplex(x.channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to post alert",
			goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.AlertIDKey, alert.ID))
	}

	return &incident.NotificationRef{
		Sink:      sinkName,
		ChannelID: posted.ChannelID,
		MessageID: posted.ID,
	}, nil
}

// NotifyResolution replaces the action buttons with the outcome.
func (x *Notifier) NotifyResolution(ctx context.Context, alert *incident.Alert, ref incident.NotificationRef, outcome incident.Outcome) error {
	embed := alertEmbed(alert)
	embed.Color = colorResolved
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Resolution",
		Value: resolutionText(outcome),
	})

	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	embeds := []*discordgo.MessageEmbed{embed}
	components := []discordgo.MessageComponent{}
	edit.Embeds = &embeds
	edit.Components = &components

	if _, err := x.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return goerr.Wrap(err, "failed to update alert message",
			goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.AlertIDKey, alert.ID))
	}
	return nil
}

func (x *Notifier) NotifyMitigation(ctx context.Context, report raid.Report) error {
	color := colorWarning
	if report.Skipped {
		color = colorInfo
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Raid mitigation",
		Description: report.Summary(),
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Triggered by", Value: userMention(report.TriggeredBy), Inline: true},
			{Name: "Removed", Value: fmt.Sprintf("%d / %d", report.Removed, report.Attempted), Inline: true},
			{Name: "Failed", Value: fmt.Sprintf("%d", report.Failed), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: footerText},
	}

	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if _, err := x.session.ChannelMessageSendComplex(x.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return goerr.Wrap(err, "failed to post mitigation report",
			goerr.T(errs.TagDiscordError), classify(err),
			goerr.TV(errs.CommunityIDKey, report.CommunityID))
	}
	return nil
}

func alertEmbed(alert *incident.Alert) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: userMention(alert.SubjectUserID), Inline: true},
		{Name: "Score", Value: fmt.Sprintf("%d / %d", alert.Score, threat.MaxScore), Inline: true},
		{Name: "Type", Value: alert.ThreatType.String(), Inline: true},
	}
	if alert.ChannelID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Channel", Value: "<#" + alert.ChannelID.String() + ">", Inline: true,
		})
	}
	if len(alert.Indicators) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Indicators",
			Value: indicatorList(alert.Indicators),
		})
	}
	if alert.Enrichment.Known() {
		var sources []string
		for _, r := range alert.Enrichment.Records {
			sources = append(sources, fmt.Sprintf("%s (%s, %d%%)", r.Indicator, r.Source, r.Confidence))
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Threat intel",
			Value: strings.Join(sources, "\n"),
		})
	}

	return &discordgo.MessageEmbed{
		Title:       alert.Title(),
		Description: alert.Description,
		Color:       scoreColor(alert.Score),
		Timestamp:   alert.CreatedAt.UTC().Format(time.RFC3339),
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: footerText + " | " + alert.ID.String()},
	}
}

func actionComponents(id types.AlertID) []discordgo.MessageComponent {
	styles := map[types.AnalystAction]discordgo.ButtonStyle{
		types.AnalystBan:     discordgo.DangerButton,
		types.AnalystTimeout: discordgo.PrimaryButton,
		types.AnalystDelete:  discordgo.SecondaryButton,
		types.AnalystIgnore:  discordgo.SuccessButton,
	}

	buttons := make([]discordgo.MessageComponent, 0, len(types.AnalystActions))
	for _, action := range types.AnalystActions {
		buttons = append(buttons, discordgo.Button{
			Label:    action.Label(),
			Style:    styles[action],
			CustomID: incident.DiscordCustomID(action, id),
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func resolutionText(outcome incident.Outcome) string {
	status := "✅"
	if !outcome.Success {
		status = "⚠️"
	}
	return fmt.Sprintf("%s %s by <@%s> %s\n%s",
		status, outcome.Action.Label(), outcome.AnalystID,
		humanize.Time(outcome.ExecutedAt), outcome.Message)
}

func indicatorList(indicators []string) string {
	lines := make([]string, 0, maxIndicators+1)
	for i, v := range indicators {
		if i == maxIndicators {
			lines = append(lines, fmt.Sprintf("... and %d more", len(indicators)-maxIndicators))
			break
		}
		// Defang so the embed does not render clickable links.
		lines = append(lines, "`"+strings.ReplaceAll(v, ".", "[.]")+"`")
	}
	return strings.Join(lines, "\n")
}

func userMention(id types.UserID) string {
	if id == "" {
		return "unknown"
	}
	return "<@" + id.String() + ">"
}

func scoreColor(score int) int {
	switch {
	case score >= threat.BlockThreshold:
		return colorCritical
	case score >= threat.AlertThreshold:
		return colorWarning
	}
	return colorInfo
}
