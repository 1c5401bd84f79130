package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Registry holds provider capability profiles and performs ordered selection
// with fallback. Registration happens once at startup; the table is frozen
// when the service starts and immutable thereafter.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // registration order
	chain     []string // explicit operator preference, may be partial
	limiters  map[string]*rate.Limiter
	frozen    bool

	timeout time.Duration
	logger  *log.Logger
}

// NewRegistry creates a registry. chain is the operator-configured fallback
// order by provider id; providers registered but absent from the chain are
// tried after it, in registration order. timeout bounds each provider
// invocation.
func NewRegistry(chain []string, timeout time.Duration, logger *log.Logger) *Registry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		providers: make(map[string]Provider),
		limiters:  make(map[string]*rate.Limiter),
		chain:     chain,
		timeout:   timeout,
		logger:    logger.WithPrefix("registry"),
	}
}

// Register adds a provider. It fails after the registry is frozen or when the
// id is already taken.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s: registry is frozen", p.ID())
	}
	id := p.ID()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("register %s: %w", id, errors.New("duplicate provider id"))
	}

	r.providers[id] = p
	r.order = append(r.order, id)

	if rpm := p.Capability().RequestsPerMinute; rpm > 0 {
		r.limiters[id] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}

	r.logger.Debug("registered provider", "id", id, "cost", p.Capability().Cost)
	return nil
}

// freeze makes the capability table immutable.
func (r *Registry) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Candidates returns the providers supporting the language (and pinned
// voice, when set) in fallback-chain order.
func (r *Registry) Candidates(language, voice string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.providers))
	var out []Provider

	appendIf := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		p, ok := r.providers[id]
		if !ok {
			return
		}
		if _, ok := p.Capability().VoiceFor(language, voice); !ok {
			return
		}
		out = append(out, p)
	}

	for _, id := range r.chain {
		appendIf(id)
	}
	for _, id := range r.order {
		appendIf(id)
	}
	return out
}

// Invocation is a successful provider call.
type Invocation struct {
	Audio    *ProviderAudio
	Provider string
	Voice    string
}

// Invoke runs the fallback chain for the request: candidates are tried in
// order, each under the registry timeout and the provider's rate budget.
// Every per-provider failure is absorbed and logged; only exhausting the
// whole chain surfaces an error.
func (r *Registry) Invoke(ctx context.Context, req ProviderRequest) (*Invocation, error) {
	candidates := r.Candidates(req.Language, req.Voice)
	if len(candidates) == 0 {
		return nil, NewError(ErrProviderUnsupported, "registry", "select").
			WithSeverity(SeverityError)
	}

	var lastErr error
	for _, p := range candidates {
		profile := p.Capability()
		voice, _ := profile.VoiceFor(req.Language, req.Voice)

		if profile.MaxTextLen > 0 && utf8.RuneCountInString(req.Text) > profile.MaxTextLen {
			r.logger.Debug("skipping provider, text too long",
				"provider", p.ID(), "limit", profile.MaxTextLen)
			lastErr = fmt.Errorf("%s: %w", p.ID(), ErrTextTooLong)
			continue
		}

		audio, err := r.invokeOne(ctx, p, req, voice)
		if err != nil {
			if ctx.Err() != nil {
				// The caller is gone or out of time; stop walking the chain.
				return nil, NewError(ctx.Err(), "registry", "invoke").WithProvider(p.ID())
			}
			lastErr = err
			r.logger.Warn("provider failed, advancing chain",
				"provider", p.ID(), "err", err)
			continue
		}

		return &Invocation{Audio: audio, Provider: p.ID(), Voice: voice}, nil
	}

	return nil, NewError(fmt.Errorf("%w: last error: %v", ErrProviderExhausted, lastErr),
		"registry", "invoke")
}

// invokeOne calls a single provider under its rate budget and the registry
// timeout. A rate-limiter wait that would outlast the timeout surfaces as a
// context error and is treated like any other provider failure.
func (r *Registry) invokeOne(ctx context.Context, p Provider, req ProviderRequest, voice string) (*ProviderAudio, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.RLock()
	limiter := r.limiters[p.ID()]
	r.mu.RUnlock()

	if limiter != nil {
		if err := limiter.Wait(callCtx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	invokeReq := req
	invokeReq.Voice = voice

	audio, err := p.Synthesize(callCtx, invokeReq)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s: %w", p.ID(), ErrTimeout)
		}
		return nil, fmt.Errorf("%s: %w", p.ID(), err)
	}
	if audio == nil || len(audio.Data) == 0 {
		return nil, fmt.Errorf("%s: empty audio", p.ID())
	}
	return audio, nil
}

// ProviderIDs returns the registered provider ids in effective chain order.
func (r *Registry) ProviderIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.providers))
	var out []string
	for _, id := range r.chain {
		if _, ok := r.providers[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range r.order {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
