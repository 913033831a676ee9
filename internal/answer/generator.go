package answer

import (
	"context"
	"strings"
)

// SystemPrompt is the contract sent with every generative call.
const SystemPrompt = "You answer questions about precious metal prices. " +
	"Use only the evidence supplied in the message. " +
	"Never invent, estimate or recompute figures; quote numbers exactly as they appear in the evidence. " +
	"Keep answers short, at most a few sentences. " +
	"Always name the date the data is from. " +
	"If the evidence does not answer the question, say so."

// Request is one generative call.
type Request struct {
	SystemPrompt string
	Evidence     string
	Suggested    string
	Question     string
}

// UserMessage renders the evidence, the computed answer and the question as
// a single user turn.
func (r Request) UserMessage() string {
	var b strings.Builder
	b.WriteString("Evidence:\n")
	b.WriteString(r.Evidence)
	if r.Suggested != "" {
		b.WriteString("\n\nComputed answer:\n")
		b.WriteString(r.Suggested)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(r.Question)
	return b.String()
}

// Chunk is one streamed piece of generated text. A chunk with Err set is
// the last one sent.
type Chunk struct {
	Text string
	Err  error
}

// Generator is the generative backend. Stream implementations must close
// the channel when done and stop sending once ctx is cancelled.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
