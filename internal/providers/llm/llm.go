package llm

import "context"

// Turn is one past message of a conversation.
type Turn struct {
	Role string // user|assistant
	Text string
}

type Request struct {
	System  string
	History []Turn
	Prompt  string
	// JSON asks the model for a single JSON document instead of prose.
	JSON        bool
	Temperature float32
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}
