package errs

import "github.com/m-mizutani/goerr/v2"

var (
	// Client side
	TagNotFound       = goerr.NewTag("not_found")
	TagValidation     = goerr.NewTag("validation")
	TagInvalidRequest = goerr.NewTag("invalid_request")
	TagForbidden      = goerr.NewTag("forbidden") // platform refused an action (missing permission)
	TagConflict       = goerr.NewTag("conflict")
	TagRateLimit      = goerr.NewTag("rate_limit")

	// Dependency side
	TagExternal    = goerr.NewTag("external")
	TagTimeout     = goerr.NewTag("timeout")
	TagCircuitOpen = goerr.NewTag("circuit_open")
	TagDatabase    = goerr.NewTag("database")
	TagInternal    = goerr.NewTag("internal")

	// Platform specific
	TagDiscordError = goerr.NewTag("discord_error")
	TagSlackError   = goerr.NewTag("slack_error")
	TagLLMError     = goerr.NewTag("llm_error")
)
