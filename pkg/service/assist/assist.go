// Package assist answers community questions with an LLM. The model is an
// unreliable dependency: every call is budgeted per community, guarded by a
// breaker and a timeout, and falls back to a canned reply.
package assist

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/service/resilience"
	"github.com/secmon-lab/bastion/pkg/utils/logging"
)

const (
	EmptyQuestionReply = "Please include a question after the mention."
	RateLimitedReply   = "I'm answering too many questions right now. Please try again in a little while."
	FallbackReply      = "I can't answer right now. Please ask a moderator instead."

	maxQuestionLength = 2000
	maxAnswerLength   = 1900
)

const defaultSystemPrompt = "You are a security assistant for an online community. " +
	"Answer questions about account safety, scams and phishing briefly and plainly. " +
	"Never ask for passwords, tokens or personal data."

type Assistant struct {
	llm          gollem.LLMClient
	budget       *resilience.SharedBudget
	policy       *resilience.Policy
	systemPrompt string
}

type Option func(*Assistant)

// WithBudget limits questions per community across every process sharing
// the budget's store.
func WithBudget(budget *resilience.SharedBudget) Option {
	return func(a *Assistant) { a.budget = budget }
}

func WithPolicy(policy *resilience.Policy) Option {
	return func(a *Assistant) { a.policy = policy }
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Assistant) { a.systemPrompt = prompt }
}

// DefaultPolicyConfig has no retry: a slow answer is worse than none.
func DefaultPolicyConfig() resilience.PolicyConfig {
	return resilience.PolicyConfig{
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
		Breaker: resilience.BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute},
		Timeout: 20 * time.Second,
	}
}

func New(llm gollem.LLMClient, opts ...Option) *Assistant {
	a := &Assistant{
		llm:          llm,
		systemPrompt: defaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy == nil {
		a.policy = resilience.NewPolicy("assistant", DefaultPolicyConfig())
	}
	return a
}

// Ask always returns a reply that can be posted as is.
func (x *Assistant) Ask(ctx context.Context, communityID types.CommunityID, question string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return EmptyQuestionReply
	}
	if len(question) > maxQuestionLength {
		question = question[:maxQuestionLength]
	}

	if x.budget != nil && !x.budget.TryAcquire(ctx, communityID.String(), 1) {
		logging.From(ctx).Info("assistant budget exhausted", slog.String("community_id", communityID.String()))
		return RateLimitedReply
	}

	return resilience.Graceful(ctx, "assistant", func(ctx context.Context) (string, error) {
		return resilience.Call(ctx, x.policy, func(ctx context.Context) (string, error) {
			return x.generate(ctx, question)
		})
	}, FallbackReply)
}

func (x *Assistant) generate(ctx context.Context, question string) (string, error) {
	session, err := x.llm.NewSession(ctx, gollem.WithSessionSystemPrompt(x.systemPrompt))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create LLM session", goerr.T(errs.TagLLMError))
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(question))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer", goerr.T(errs.TagLLMError))
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.New("empty response from LLM", goerr.T(errs.TagLLMError))
	}

	answer := strings.TrimSpace(strings.Join(resp.Texts, "\n"))
	if answer == "" {
		return "", goerr.New("blank response from LLM", goerr.T(errs.TagLLMError))
	}
	if len([]rune(answer)) > maxAnswerLength {
		answer = string([]rune(answer)[:maxAnswerLength]) + "…"
	}
	return answer, nil
}
