package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/stevegt/oracle/client"
	"github.com/stevegt/oracle/deepseek"
)

// ApologyReply stands in for a reply that could not be extracted from
// a provider response.
const ApologyReply = "Sorry, an error occurred while processing your request."

// strategy produces the reply to one user turn.  It is chosen once,
// when a session is bound.
type strategy interface {
	reply(ctx context.Context, input string, history []Turn, out io.Writer) (string, error)
}

// streamChain is the grounding prompt composed with a streaming chat
// handle.  Every call replays the whole history.
type streamChain struct {
	client client.StreamClient
	model  string
	sysmsg string
}

func (c *streamChain) reply(ctx context.Context, input string, history []Turn, out io.Writer) (resp string, err error) {
	req := client.Request{
		Model:   c.model,
		Sysmsg:  c.sysmsg,
		History: chatMsgs(history),
		Input:   input,
	}
	frags, err := c.client.Stream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProviderUnreachable, err)
	}
	resp, err = client.Drain(frags, out)
	if errors.Is(err, client.ErrWrite) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: stream interrupted: %w", ErrProviderUnreachable, err)
	}
	return resp, nil
}

// httpCall posts only the current user message.  The grounding
// prompt and the history are not sent; this provider integration has
// always been stateless.
type httpCall struct {
	client   *deepseek.Client
	model    string
	provider string
}

func (c *httpCall) reply(ctx context.Context, input string, history []Turn, out io.Writer) (resp string, err error) {
	msgs := []client.ChatMsg{{Role: client.RoleUser, Content: input}}
	resp, err = c.client.CompleteChat(ctx, c.model, msgs)
	if err != nil {
		var rerr *deepseek.ResponseError
		if errors.Is(err, deepseek.ErrMalformed) && errors.As(err, &rerr) {
			resp = ApologyReply
			err = &MalformedResponseError{Provider: c.provider, Raw: string(rerr.Raw)}
		} else {
			return "", fmt.Errorf("%w: %w", ErrProviderUnreachable, err)
		}
	}
	if out != nil {
		_, werr := io.WriteString(out, resp)
		if werr != nil && err == nil {
			err = werr
		}
	}
	return
}

// chatMsgs converts memory turns to provider-neutral messages.
func chatMsgs(turns []Turn) (msgs []client.ChatMsg) {
	for _, t := range turns {
		role := client.RoleUser
		if t.Role == RoleAI {
			role = client.RoleAI
		}
		msgs = append(msgs, client.ChatMsg{Role: role, Content: t.Content})
	}
	return
}
