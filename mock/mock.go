package mock

import (
	"context"
	"strings"

	"github.com/stevegt/oracle/client"
)

// Client is a mock LLM provider for testing.
// It implements the StreamClient interface and streams pre-configured
// responses based on the model name.  Tests can configure responses
// using SetResponse and inspect what was sent in Requests.
type Client struct {
	Responses map[string]string // model name -> response
	Requests  []client.Request
	Err       error
}

// NewClient creates a new mock client.
func NewClient() *Client {
	return &Client{
		Responses: make(map[string]string),
	}
}

// SetResponse sets the response for a given model name.
func (c *Client) SetResponse(model, response string) {
	c.Responses[model] = response
}

// Stream records the request and streams the configured response one
// word at a time.  If no response has been configured for the model,
// it streams a default response.  If Err is set it is returned
// instead.
func (c *Client) Stream(ctx context.Context, req client.Request) (*client.Fragments, error) {
	req.History = append([]client.ChatMsg(nil), req.History...)
	c.Requests = append(c.Requests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	response, ok := c.Responses[req.Model]
	if !ok {
		response = "default mock response"
	}
	words := strings.SplitAfter(response, " ")
	return client.SliceFragments(words...), nil
}

var _ client.StreamClient = (*Client)(nil)
