package openai

import (
	"context"
	"errors"
	"io"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/client"
)

// Client implements the StreamClient interface for OpenAI and for
// providers that speak the OpenAI chat completion protocol, such as
// Groq.
type Client struct {
	client *gptLib.Client
}

// NewClient creates a new Client.  If baseURL is empty the OpenAI
// default is used.
func NewClient(apiKey, baseURL string) *Client {
	cfg := gptLib.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{client: gptLib.NewClientWithConfig(cfg)}
}

// messages converts a request into OpenAI's ChatCompletionMessage
// format: the system message first, then the replayed history, then
// the new user input.
func messages(req client.Request) []gptLib.ChatCompletionMessage {
	omsgs := []gptLib.ChatCompletionMessage{
		{
			Role:    gptLib.ChatMessageRoleSystem,
			Content: req.Sysmsg,
		},
	}
	for _, msg := range req.History {
		var role string
		switch msg.Role {
		case client.RoleUser:
			role = gptLib.ChatMessageRoleUser
		case client.RoleAI:
			role = gptLib.ChatMessageRoleAssistant
		case client.RoleSystem:
			role = gptLib.ChatMessageRoleSystem
		default:
			role = gptLib.ChatMessageRoleUser
		}
		omsgs = append(omsgs, gptLib.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	omsgs = append(omsgs, gptLib.ChatCompletionMessage{
		Role:    gptLib.ChatMessageRoleUser,
		Content: req.Input,
	})
	return omsgs
}

// Stream opens a streaming chat completion and returns its delta
// content as Fragments.  The stream stays open until the fragments
// are drained or closed.
func (oc *Client) Stream(ctx context.Context, req client.Request) (frags *client.Fragments, err error) {
	defer Return(&err)
	omsgs := messages(req)
	Debug("streaming %d messages to %s", len(omsgs), req.Model)
	stream, err := oc.client.CreateChatCompletionStream(ctx, gptLib.ChatCompletionRequest{
		Model:    req.Model,
		Messages: omsgs,
		Stream:   true,
	})
	Ck(err)
	next := func() (string, bool, error) {
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return "", true, nil
			}
			if err != nil {
				return "", false, err
			}
			if len(resp.Choices) == 0 {
				continue
			}
			frag := resp.Choices[0].Delta.Content
			if frag == "" {
				// role-only or finish chunks carry no text
				continue
			}
			return frag, false, nil
		}
	}
	closer := func() error {
		stream.Close()
		return nil
	}
	frags = client.NewFragments(next, closer)
	return
}

// Assert that Client implements client.StreamClient.
var _ client.StreamClient = (*Client)(nil)
