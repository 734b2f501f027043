package llm

import (
	"context"
)

// PartType discriminates multi-part message content.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ContentPart is one element of a multi-part user message.
type ContentPart struct {
	Type PartType
	Text string
	// ImageURL is an https or data: URL, used when Type is PartImage.
	ImageURL string
}

// Message is a provider-neutral chat message. When Parts is non-empty it
// takes precedence over Content.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// Stream yields incremental completion text. Recv returns io.EOF when the
// model is done; Close releases the underlying connection and is safe to
// call more than once.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client opens streaming chat completions against an LLM provider. The
// context passed to StreamChatCompletion governs the upstream connection:
// cancelling it aborts the provider request.
type Client interface {
	StreamChatCompletion(ctx context.Context, messages []Message) (Stream, error)
}
