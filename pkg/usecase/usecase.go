package usecase

import (
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/repository"
	"github.com/secmon-lab/bastion/pkg/service/assist"
	"github.com/secmon-lab/bastion/pkg/service/auditwatch"
	"github.com/secmon-lab/bastion/pkg/service/incident"
	"github.com/secmon-lab/bastion/pkg/service/intel"
	"github.com/secmon-lab/bastion/pkg/service/raid"
	"github.com/secmon-lab/bastion/pkg/service/scoring"
)

type UseCases struct {
	// services and adapters
	platform   interfaces.Platform
	repository interfaces.Repository
	engine     *scoring.Engine
	intel      *intel.Service
	dispatcher *incident.Dispatcher
	raid       *raid.Detector
	watcher    *auditwatch.Watcher
	assistant  *assist.Assistant

	// configs
	autoDelete        bool
	minAccountAgeDays int
}

var _ interfaces.EventUsecases = &UseCases{}

type Option func(*UseCases)

func WithPlatform(platform interfaces.Platform) Option {
	return func(u *UseCases) {
		u.platform = platform
	}
}

func WithRepository(repository interfaces.Repository) Option {
	return func(u *UseCases) {
		u.repository = repository
	}
}

func WithScoringEngine(engine *scoring.Engine) Option {
	return func(u *UseCases) {
		u.engine = engine
	}
}

func WithIntel(svc *intel.Service) Option {
	return func(u *UseCases) {
		u.intel = svc
	}
}

func WithDispatcher(dispatcher *incident.Dispatcher) Option {
	return func(u *UseCases) {
		u.dispatcher = dispatcher
	}
}

func WithRaidDetector(detector *raid.Detector) Option {
	return func(u *UseCases) {
		u.raid = detector
	}
}

func WithAuditWatcher(watcher *auditwatch.Watcher) Option {
	return func(u *UseCases) {
		u.watcher = watcher
	}
}

func WithAssistant(assistant *assist.Assistant) Option {
	return func(u *UseCases) {
		u.assistant = assistant
	}
}

// WithAutoDelete enables deleting messages whose analysis says they should
// be blocked, without waiting for an analyst.
func WithAutoDelete(enabled bool) Option {
	return func(u *UseCases) {
		u.autoDelete = enabled
	}
}

// WithMinAccountAgeDays sets the account age under which a joining member
// raises a new_account alert. Zero disables the check.
func WithMinAccountAgeDays(days int) Option {
	return func(u *UseCases) {
		u.minAccountAgeDays = days
	}
}

func New(opts ...Option) *UseCases {
	u := &UseCases{
		repository: repository.NewMemory(),
		engine:     scoring.New(),
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}
