package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/client"
)

// DefaultEndpoint is DeepSeek's chat completion URL.
const DefaultEndpoint = "https://api.deepseek.com/v1/chat/completions"

var (
	// ErrUnreachable is returned for transport failures and non-2xx
	// responses.
	ErrUnreachable = errors.New("deepseek: provider unreachable")
	// ErrMalformed is returned when a 2xx body lacks
	// choices[0].message.content.
	ErrMalformed = errors.New("deepseek: malformed response")
)

// ResponseError carries the raw body of a response that could not be
// used, for diagnostics.
type ResponseError struct {
	Kind   error
	Status int
	Raw    []byte
	Detail string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%v (status %d): %s", e.Kind, e.Status, e.Detail)
}

func (e *ResponseError) Unwrap() error {
	return e.Kind
}

// Client is a request/response chat client for DeepSeek.  It does not
// stream and does not hold any conversation state.
type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient creates a new DeepSeek client.  An empty endpoint selects
// DefaultEndpoint.
func NewClient(apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		APIKey:     apiKey,
		Endpoint:   endpoint,
		HTTPClient: http.DefaultClient,
	}
}

// Request defines the payload sent to DeepSeek.
type Request struct {
	Model    string    `json:"model"`
	Messages []ChatMsg `json:"messages"`
}

// ChatMsg represents a single chat message on the wire.
type ChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the subset of the completion body we read.  Pointers
// let us tell a missing field from an empty one.
type Response struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// wireRole maps client roles onto DeepSeek's lowercase role names.
func wireRole(role string) string {
	switch role {
	case client.RoleAI:
		return "assistant"
	case client.RoleSystem:
		return "system"
	default:
		return "user"
	}
}

// CompleteChat posts messages and returns choices[0].message.content.
// The messages are sent exactly as given; the caller decides how much
// of a conversation to include.
func (c *Client) CompleteChat(ctx context.Context, model string, messages []client.ChatMsg) (out string, err error) {
	defer Return(&err)

	reqPayload := Request{Model: model}
	for _, m := range messages {
		reqPayload.Messages = append(reqPayload.Messages, ChatMsg{
			Role:    wireRole(m.Role),
			Content: m.Content,
		})
	}
	payloadBytes, err := json.Marshal(reqPayload)
	Ck(err)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payloadBytes))
	Ck(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	Debug("POST %s model=%s messages=%d", c.Endpoint, model, len(reqPayload.Messages))
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, doErr := hc.Do(req)
	if doErr != nil {
		return "", &ResponseError{Kind: ErrUnreachable, Detail: doErr.Error()}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ResponseError{
			Kind:   ErrUnreachable,
			Status: resp.StatusCode,
			Raw:    body,
			Detail: strings.TrimSpace(string(body)),
		}
	}
	if readErr != nil {
		return "", &ResponseError{Kind: ErrUnreachable, Status: resp.StatusCode, Raw: body, Detail: readErr.Error()}
	}

	var response Response
	jsonErr := json.Unmarshal(body, &response)
	if jsonErr != nil {
		return "", &ResponseError{Kind: ErrMalformed, Status: resp.StatusCode, Raw: body, Detail: jsonErr.Error()}
	}
	if len(response.Choices) == 0 || response.Choices[0].Message == nil || response.Choices[0].Message.Content == nil {
		return "", &ResponseError{Kind: ErrMalformed, Status: resp.StatusCode, Raw: body, Detail: "no choices[0].message.content"}
	}
	return *response.Choices[0].Message.Content, nil
}
