package core

import (
	"sync"

	. "github.com/stevegt/goadapt"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
	codecErr  error
)

// getCodec loads the cl100k tokenizer once.  The codec is read-only
// after loading.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// TokenCount returns the number of cl100k tokens in text.  Providers
// use different tokenizers, so treat the count as an estimate.
func TokenCount(text string) (count int, err error) {
	defer Return(&err)
	c, err := getCodec()
	Ck(err)
	ids, _, err := c.Encode(text)
	Ck(err)
	count = len(ids)
	return
}
