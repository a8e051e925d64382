package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrWrite marks a Drain failure caused by the destination writer
// rather than by the stream.
var ErrWrite = errors.New("writing reply")

// Role names used in ChatMsg.  Providers map these onto their own
// wire values.
const (
	RoleSystem = "SYSTEM"
	RoleUser   = "USER"
	RoleAI     = "ASSISTANT"
)

// ChatMsg represents a single chat message.
type ChatMsg struct {
	Role    string
	Content string
}

// Request is one call into a streaming chat handle.  Sysmsg is the
// grounding prompt, History is the replayed conversation, and Input
// is the user's new message.
type Request struct {
	Model   string
	Sysmsg  string
	History []ChatMsg
	Input   string
}

// StreamClient defines the interface for providers that can stream a
// chat completion.  Implementations such as the openai package's
// Client return a Fragments producer that the caller drains.
type StreamClient interface {
	Stream(ctx context.Context, req Request) (*Fragments, error)
}

// Fragments is a lazy, finite, one-shot sequence of reply text
// fragments.  It cannot be restarted; once Next reports done, or
// once Close has been called, it yields nothing more.
type Fragments struct {
	next  func() (frag string, done bool, err error)
	close func() error
	done  bool
}

// NewFragments wraps a producer function.  next is called until it
// reports done or returns an error.  closer may be nil.
func NewFragments(next func() (string, bool, error), closer func() error) *Fragments {
	return &Fragments{next: next, close: closer}
}

// SliceFragments returns a Fragments that yields each string in
// frags once.
func SliceFragments(frags ...string) *Fragments {
	i := 0
	return NewFragments(func() (string, bool, error) {
		if i >= len(frags) {
			return "", true, nil
		}
		i++
		return frags[i-1], false, nil
	}, nil)
}

// Next returns the next fragment.  ok is false when the sequence is
// exhausted or failed.
func (f *Fragments) Next() (frag string, ok bool, err error) {
	if f.done {
		return
	}
	frag, done, err := f.next()
	if err != nil || done {
		f.done = true
		return "", false, err
	}
	return frag, true, nil
}

// Close releases the underlying stream.  It is safe to call more
// than once.
func (f *Fragments) Close() (err error) {
	f.done = true
	if f.close != nil {
		err = f.close()
		f.close = nil
	}
	return
}

// Drain reads every fragment, writing each to w as it arrives, and
// returns the concatenated reply.  w may be nil.  Drain closes f.
// Errors from w wrap ErrWrite; any other error came from the stream.
func Drain(f *Fragments, w io.Writer) (reply string, err error) {
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()
	var sb strings.Builder
	for {
		frag, ok, ferr := f.Next()
		if ferr != nil {
			return sb.String(), ferr
		}
		if !ok {
			break
		}
		sb.WriteString(frag)
		if w != nil {
			_, err = io.WriteString(w, frag)
			if err != nil {
				return sb.String(), fmt.Errorf("%w: %w", ErrWrite, err)
			}
		}
	}
	return sb.String(), nil
}
