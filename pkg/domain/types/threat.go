package types

import "github.com/m-mizutani/goerr/v2"

// SignalKind names the detection technique that produced a signal.
type SignalKind string

const (
	SignalURLReputation  SignalKind = "url_reputation"
	SignalFileReputation SignalKind = "file_reputation"
	SignalContentPattern SignalKind = "content_pattern"
	SignalNewAccount     SignalKind = "new_account"
	SignalMassModeration SignalKind = "mass_moderation"
)

func (x SignalKind) String() string { return string(x) }

type IndicatorType string

const (
	IndicatorURL    IndicatorType = "url"
	IndicatorIP     IndicatorType = "ip"
	IndicatorDomain IndicatorType = "domain"
	IndicatorEmail  IndicatorType = "email"
	IndicatorHash   IndicatorType = "hash"
	IndicatorText   IndicatorType = "text"
	IndicatorUser   IndicatorType = "user"
)

func (x IndicatorType) String() string { return string(x) }

// SuggestedAction is derived from the aggregate score.
type SuggestedAction string

const (
	ActionNone          SuggestedAction = "none"
	ActionAlertMods     SuggestedAction = "alert_mods"
	ActionDeleteMessage SuggestedAction = "delete_message"
	ActionBanUser       SuggestedAction = "ban_user"
)

func (x SuggestedAction) String() string { return string(x) }

// AnalystAction is one of the four mutually exclusive ways to resolve an alert.
type AnalystAction string

const (
	AnalystBan     AnalystAction = "ban"
	AnalystTimeout AnalystAction = "timeout"
	AnalystDelete  AnalystAction = "delete"
	AnalystIgnore  AnalystAction = "ignore"
)

var AnalystActions = []AnalystAction{AnalystBan, AnalystTimeout, AnalystDelete, AnalystIgnore}

var analystActionLabels = map[AnalystAction]string{
	AnalystBan:     "🔨 Ban",
	AnalystTimeout: "⏳ Timeout",
	AnalystDelete:  "🗑️ Delete",
	AnalystIgnore:  "✅ Ignore",
}

func (x AnalystAction) String() string { return string(x) }

func (x AnalystAction) Label() string { return analystActionLabels[x] }

func (x AnalystAction) Validate() error {
	switch x {
	case AnalystBan, AnalystTimeout, AnalystDelete, AnalystIgnore:
		return nil
	}
	return goerr.New("invalid analyst action", goerr.V("action", x))
}

type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)

func (x AlertStatus) String() string { return string(x) }
