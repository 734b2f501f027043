package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"lumen_backend/internal/config"
)

// OpenAIClient implements Client over the OpenAI chat-completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(cfg.OpenAI.APIKey),
		model:  cfg.OpenAI.Model,
	}
}

func (c *OpenAIClient) StreamChatCompletion(ctx context.Context, messages []Message) (Stream, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
		Stream:   true,
	}

	for _, m := range messages {
		req.Messages = append(req.Messages, toOpenAIMessage(m))
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	return &openAIStream{inner: stream}, nil
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	if len(m.Parts) == 0 {
		return openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	parts := make([]openai.ChatMessagePart, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case PartImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    p.ImageURL,
					Detail: openai.ImageURLDetailHigh,
				},
			})
		default:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		}
	}

	return openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts}
}

type openAIStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next incremental content delta. Empty deltas (role
// announcements, finish reasons) come back as empty strings; io.EOF marks
// the end of the stream.
func (s *openAIStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	return s.inner.Close()
}
