package core

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/client"
	"github.com/stevegt/oracle/deepseek"
	"github.com/stevegt/oracle/openai"
)

// State is where the Oracle is in its session lifecycle.
type State int32

const (
	Unbound State = iota
	Bound
	Responding
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Responding:
		return "responding"
	}
	return "unknown"
}

// ClientFactory builds the streaming chat handle for a provider.
type ClientFactory func(spec *ProviderSpec, baseURL, apiKey string) client.StreamClient

// DefaultClientFactory speaks the OpenAI protocol at baseURL.
func DefaultClientFactory(spec *ProviderSpec, baseURL, apiKey string) client.StreamClient {
	return openai.NewClient(apiKey, baseURL)
}

// Selection is what the user picked before initializing.
type Selection struct {
	Provider string
	Model    string
	APIKey   string
	Kind     DocumentKind
	Source   *SourceDescriptor
}

// Session is the live binding of provider, model, credential and
// grounding prompt.  The document is frozen into Sysmsg at bind time.
type Session struct {
	ID       string
	Provider *ProviderSpec
	Model    string
	Kind     DocumentKind
	Sysmsg   string
	// Document is the loaded text, kept so the UI can warn about
	// challenge pages.
	Document string
	// Tokens is the size of Sysmsg; zero if it could not be counted.
	Tokens  int
	BoundAt time.Time

	strategy strategy
}

// Oracle binds a document to a provider and runs the conversation.
// All operations are serialized; a turn holds the lock until the
// reply is complete.
type Oracle struct {
	Providers       *Providers
	Loader          *Loader
	NewStreamClient ClientFactory
	// HTTPClient is used by synchronous HTTP providers.
	HTTPClient *http.Client
	// Endpoints overrides ProviderSpec.BaseURL by provider name.
	Endpoints map[string]string
	// Stderr receives diagnostics such as raw malformed responses.
	Stderr io.Writer

	mu      sync.Mutex
	state   atomic.Int32
	session *Session
	memory  *Memory
	lastRaw string
}

// New returns an unbound Oracle with the default provider catalog,
// extractors and clients.
func New() *Oracle {
	return &Oracle{
		Providers:       NewProviders(),
		Loader:          NewLoader(),
		NewStreamClient: DefaultClientFactory,
		HTTPClient:      http.DefaultClient,
		Stderr:          os.Stderr,
		memory:          NewMemory(),
	}
}

// State returns the current lifecycle state.  It does not block on a
// turn in progress.
func (o *Oracle) State() State {
	return State(o.state.Load())
}

// Session returns the bound session, or nil.
func (o *Oracle) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// History returns a snapshot of the conversation for display.
func (o *Oracle) History() []Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mem().Snapshot()
}

// LastRaw returns the raw body of the most recent malformed provider
// response, or "".
func (o *Oracle) LastRaw() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRaw
}

func (o *Oracle) mem() *Memory {
	if o.memory == nil {
		o.memory = NewMemory()
	}
	return o.memory
}

func (o *Oracle) stderr() io.Writer {
	if o.Stderr == nil {
		return os.Stderr
	}
	return o.Stderr
}

func (o *Oracle) endpoint(spec *ProviderSpec) string {
	if u, ok := o.Endpoints[spec.Name]; ok && u != "" {
		return u
	}
	return spec.BaseURL
}

// Initialize loads the selected document, builds its grounding
// prompt, validates the provider and model, and binds a new session.
// On any failure the previous session, if any, stays bound.
func (o *Oracle) Initialize(ctx context.Context, sel Selection) (sess *Session, err error) {
	defer Return(&err)
	if sel.Source == nil {
		return nil, ErrMissingDocument
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	loader := o.Loader
	if loader == nil {
		loader = NewLoader()
	}
	text, err := loader.Load(ctx, sel.Kind, sel.Source)
	if err != nil {
		return nil, err
	}
	sysmsg := BuildSysmsg(sel.Kind, text)

	providers := o.Providers
	if providers == nil {
		providers = NewProviders()
	}
	spec, err := providers.Resolve(sel.Provider, sel.Model)
	if err != nil {
		return nil, err
	}

	sess = &Session{
		ID:       uuid.NewString(),
		Provider: spec,
		Model:    sel.Model,
		Kind:     sel.Kind,
		Sysmsg:   sysmsg,
		Document: text,
		BoundAt:  time.Now(),
	}
	switch spec.Strategy {
	case StreamingChain:
		factory := o.NewStreamClient
		if factory == nil {
			factory = DefaultClientFactory
		}
		sess.strategy = &streamChain{
			client: factory(spec, o.endpoint(spec), sel.APIKey),
			model:  sel.Model,
			sysmsg: sysmsg,
		}
	case SynchronousHTTP:
		dc := deepseek.NewClient(sel.APIKey, o.endpoint(spec))
		if o.HTTPClient != nil {
			dc.HTTPClient = o.HTTPClient
		}
		sess.strategy = &httpCall{client: dc, model: sel.Model, provider: spec.Name}
	default:
		Assert(false, "unknown strategy: %v", spec.Strategy)
	}

	tc, tcErr := TokenCount(sysmsg)
	if tcErr != nil {
		Debug("cannot count prompt tokens: %v", tcErr)
	}
	sess.Tokens = tc

	o.session = sess
	o.mem()
	o.state.Store(int32(Bound))
	Debug("session %s bound: %s/%s, %v document, %d prompt tokens", sess.ID, spec.Name, sel.Model, sel.Kind, tc)
	return sess, nil
}

// Submit sends one user message and returns the reply.  Streamed
// fragments are written to out as they arrive; out may be nil.
//
// The human and ai turns are appended together only after a reply is
// obtained.  If the provider is unreachable nothing is appended.  If
// the provider answered with a body that holds no reply, ApologyReply
// is appended and returned along with an error wrapping
// ErrMalformedResponse.
func (o *Oracle) Submit(ctx context.Context, input string, out io.Writer) (resp string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess := o.session
	if sess == nil {
		return "", ErrNotBound
	}
	o.state.Store(int32(Responding))
	defer o.state.Store(int32(Bound))

	mem := o.mem()
	resp, err = sess.strategy.reply(ctx, input, mem.Snapshot(), out)
	var merr *MalformedResponseError
	switch {
	case err == nil:
	case errors.As(err, &merr):
		o.lastRaw = merr.Raw
		Fpf(o.stderr(), "malformed response from %s; full response:\n%s\n", merr.Provider, merr.Raw)
	default:
		return "", err
	}
	mem.AppendExchange(input, resp)
	return resp, err
}

// Clear discards the conversation.  The session binding is kept.
func (o *Oracle) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.memory = NewMemory()
	if o.session == nil {
		o.state.Store(int32(Unbound))
	}
}
