package core

import (
	"fmt"

	"github.com/stevegt/oracle/deepseek"
	"github.com/stevegt/oracle/util"
)

// Strategy is how a provider is invoked.
type Strategy int

const (
	// StreamingChain providers stream a reply and receive the full
	// conversation history on every call.
	StreamingChain Strategy = iota
	// SynchronousHTTP providers answer one request/response POST and
	// receive only the current user message.
	SynchronousHTTP
)

func (s Strategy) String() string {
	switch s {
	case StreamingChain:
		return "streaming"
	case SynchronousHTTP:
		return "http"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ProviderSpec describes one supported provider.  It is never
// mutated after NewProviders returns.
type ProviderSpec struct {
	Name     string
	Models   []string
	Strategy Strategy
	// BaseURL is the API base for streaming providers and the full
	// completion endpoint for HTTP providers.
	BaseURL string
	// KeyEnv names the environment variable that usually holds the
	// provider's API key.
	KeyEnv string
}

// HasModel reports whether model is offered by the provider.
func (p *ProviderSpec) HasModel(model string) bool {
	return util.StringInSlice(model, p.Models)
}

func (p *ProviderSpec) String() string {
	return fmt.Sprintf("%-10s %-10s %v", p.Name, p.Strategy, p.Models)
}

// Providers is the catalog of supported providers.
type Providers struct {
	byName map[string]*ProviderSpec
	order  []string
}

// NewProviders builds the provider catalog.
func NewProviders() (providers *Providers) {
	providers = &Providers{byName: make(map[string]*ProviderSpec)}
	add := func(name string, strategy Strategy, baseURL, keyEnv string, models ...string) {
		providers.byName[name] = &ProviderSpec{
			Name:     name,
			Models:   models,
			Strategy: strategy,
			BaseURL:  baseURL,
			KeyEnv:   keyEnv,
		}
		providers.order = append(providers.order, name)
	}

	add("Groq", StreamingChain, "https://api.groq.com/openai/v1", "GROQ_API_KEY",
		"llama-3.3-70b-versatile", "gemma2-9b-it")
	add("OpenAI", StreamingChain, "https://api.openai.com/v1", "OPENAI_API_KEY",
		"gpt-4o-mini", "gpt-4o")
	add("DeepSeek", SynchronousHTTP, deepseek.DefaultEndpoint, "DEEPSEEK_API_KEY",
		"deepseek-chat", "deepseek-reasoner")

	return
}

// Resolve validates a provider and model pair.  An unknown provider
// fails with ErrInvalidProvider before the model is looked at.
func (providers *Providers) Resolve(provider, model string) (spec *ProviderSpec, err error) {
	spec, ok := providers.byName[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	if !spec.HasModel(model) {
		return nil, fmt.Errorf("%w: %q is not offered by %s", ErrInvalidModel, model, provider)
	}
	return spec, nil
}

// List returns the providers in catalog order.
func (providers *Providers) List() (list []*ProviderSpec) {
	for _, name := range providers.order {
		list = append(list, providers.byName[name])
	}
	return
}
