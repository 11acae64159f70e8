package discord

var (
	ToMessage       = toMessage
	ToMemberJoin    = toMemberJoin
	ToAuditLogEntry = toAuditLogEntry
)
