package app

import (
	"context"
	"strings"

	"github.com/parlando-ai/parlando/internal/resilience"
	"github.com/parlando-ai/parlando/pkg/provider/llm"
)

// fallbackProvider chains completion providers behind per-entry circuit
// breakers, so oracle evaluation and feedback survive a failing primary
// backend by falling over to the next one.
type fallbackProvider struct {
	group *resilience.FallbackGroup[llm.Provider]
	name  string
}

func newFallbackProvider(primary, secondary llm.Provider) *fallbackProvider {
	group := resilience.NewFallbackGroup(primary, primary.Name(), resilience.FallbackConfig{})
	group.AddFallback(secondary.Name(), secondary)
	return &fallbackProvider{
		group: group,
		name:  strings.Join(group.Names(), "+"),
	}
}

func (p *fallbackProvider) Name() string { return p.name }

func (p *fallbackProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return resilience.ExecuteWithResult(p.group, func(prov llm.Provider) (*llm.CompletionResponse, error) {
		return prov.Complete(ctx, req)
	})
}

var _ llm.Provider = (*fallbackProvider)(nil)
