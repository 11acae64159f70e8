package cli

var (
	RunAnalyze   = runAnalyze
	RunCheckJoin = runCheckJoin
)
