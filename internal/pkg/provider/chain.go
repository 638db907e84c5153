package provider

import (
	"Tracklight/internal/model"
	"Tracklight/internal/pkg/metric"
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	OutcomeOK           = "ok"
	OutcomeEmpty        = "empty"
	OutcomeNotFound     = "not_found"
	OutcomeTransient    = "transient"
	OutcomeMalformed    = "malformed"
	OutcomeTimeout      = "timeout"
	OutcomeNoCredential = "no_credential"
)

// Attempt 链中单个数据源的执行结果
type Attempt struct {
	Provider Name
	Outcome  string
	Err      error
}

// ExhaustedError 所有数据源都没有给出可用数据
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Provider, a.Outcome))
	}
	return "all providers exhausted (" + strings.Join(parts, ", ") + ")"
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Chain 按优先级依次尝试数据源，直到拿到非空数据
type Chain struct {
	clients  []Client
	recorder Recorder
}

// NewChain clients 的顺序即默认优先级；无需凭据的数据源始终排在最后
func NewChain(recorder Recorder, clients ...Client) *Chain {
	return &Chain{clients: clients, recorder: recorder}
}

type step struct {
	client Client
	cred   *Credential
}

// plan 带 Key 的数据源按租户凭据顺序排列，缺凭据的跳过，免凭据的追加在末尾
func (c *Chain) plan(kind model.EntityKind, creds []Credential) ([]step, []Attempt) {
	var steps []step
	var skipped []Attempt
	used := make(map[Name]bool)

	for i := range creds {
		cred := creds[i]
		for _, cl := range c.clients {
			if cl.Name() != cred.Provider || !cl.RequiresCredential() || !cl.Supports(kind) || used[cl.Name()] {
				continue
			}
			if cred.APIKey == "" {
				continue
			}
			used[cl.Name()] = true
			steps = append(steps, step{client: cl, cred: &cred})
		}
	}
	for _, cl := range c.clients {
		if !cl.Supports(kind) || used[cl.Name()] {
			continue
		}
		if cl.RequiresCredential() {
			skipped = append(skipped, Attempt{Provider: cl.Name(), Outcome: OutcomeNoCredential})
			continue
		}
		steps = append(steps, step{client: cl})
	}
	return steps, skipped
}

// Execute 返回规范化后的结果，或 ErrNotFound / ErrAllProvidersExhausted
func (c *Chain) Execute(ctx context.Context, ref Reference, creds []Credential) (*RawResult, []Attempt, error) {
	steps, attempts := c.plan(ref.Kind, creds)

	for _, s := range steps {
		name := s.client.Name()
		start := time.Now()
		raw, err := s.client.FetchEntityMetrics(ctx, ref, s.cred)
		elapsed := time.Since(start)

		outcome := outcomeOf(err)
		var counters model.Counters
		if err == nil {
			if raw == nil {
				outcome = OutcomeEmpty
			} else if counters, err = metric.Normalize(raw.Counters); err != nil {
				outcome = OutcomeEmpty
			}
		}
		c.observe(name, ref.Kind, outcome, elapsed)
		attempts = append(attempts, Attempt{Provider: name, Outcome: outcome, Err: err})

		switch outcome {
		case OutcomeOK:
			raw.Counters = counters
			raw.Provider = name
			log.InfoContext(ctx, "provider returned usable metrics",
				"provider", name, "kind", ref.Kind, "ref", ref.ID(), "latency", elapsed)
			return raw, attempts, nil
		case OutcomeNotFound:
			log.InfoContext(ctx, "provider reported entity not found",
				"provider", name, "kind", ref.Kind, "ref", ref.ID(), "err", err)
			return nil, attempts, errors.Wrapf(ErrNotFound, "%s", name)
		default:
			log.WarnContext(ctx, "provider unusable, trying next",
				"provider", name, "kind", ref.Kind, "ref", ref.ID(), "outcome", outcome, "err", err, "latency", elapsed)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return nil, attempts, &ExhaustedError{Attempts: attempts}
}

func (c *Chain) observe(name Name, kind model.EntityKind, outcome string, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveProviderCall(string(name), string(kind), outcome, elapsed)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrJobTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrMalformedResponse):
		return OutcomeMalformed
	default:
		return OutcomeTransient
	}
}
