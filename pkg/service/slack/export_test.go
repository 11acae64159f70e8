package slack

var (
	BuildOpenAlertBlocks     = buildOpenAlertBlocks
	BuildResolvedAlertBlocks = buildResolvedAlertBlocks
)
