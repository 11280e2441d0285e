package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChatMessage is one turn in the serialized chat prompt sent to the
// external backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest mirrors the OpenAI-compatible chat completion envelope,
// grounded on other_examples' GChief117-SwarmC2 tactical-advisor client,
// which builds the same {model, messages, tools} request shape against a
// chat completion endpoint.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Tools    []toolSchema  `json:"tools,omitempty"`
}

type toolSchema struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// chatReply is the subset of a chat completion response this adapter reads:
// either a tool call or a plain text message, never both.
type chatReply struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"` // JSON-encoded object
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// External talks to a real chat-style LLM backend over HTTP. On a malformed
// reply it retries once, then downgrades to a Pattern decision for that
// single call, per §4.6/§7's retry-then-downgrade policy.
type External struct {
	Endpoint string
	Model    string
	APIKey   string
	Client   *http.Client
	fallback *Pattern
}

// NewExternal builds an External backend with a bounded-timeout client.
func NewExternal(endpoint, model, apiKey string, timeout time.Duration) *External {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &External{
		Endpoint: endpoint,
		Model:    model,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: timeout},
		fallback: NewPattern(),
	}
}

const systemPrompt = `You are an aviation assistant. Decide whether to call a tool or answer directly.
Respond either with a tool call or with a final text answer. Never fabricate a numeric crosswind value — only state a value you derived from a fetched METAR and a selected runway.`

func (e *External) Decide(ctx context.Context, query string, transcript []Step, catalog []ToolDescriptor, tracked Tracked) (Decision, error) {
	d, err := e.attempt(ctx, query, transcript, catalog)
	if err == nil {
		return d, nil
	}
	d, err = e.attempt(ctx, query, transcript, catalog)
	if err == nil {
		return d, nil
	}
	return e.fallback.Decide(ctx, query, transcript, catalog, tracked)
}

func (e *External) attempt(ctx context.Context, query string, transcript []Step, catalog []ToolDescriptor) (Decision, error) {
	req := chatRequest{
		Model:    e.Model,
		Messages: buildMessages(query, transcript),
		Tools:    buildToolSchemas(catalog),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Decision{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return Decision{}, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("llm: upstream status %d", resp.StatusCode)
	}

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Decision{}, fmt.Errorf("llm: malformed reply: %w", err)
	}
	return parseReply(reply)
}

func parseReply(reply chatReply) (Decision, error) {
	if len(reply.Choices) == 0 {
		return Decision{}, fmt.Errorf("llm: malformed reply: no choices")
	}
	msg := reply.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		if tc.Function.Name == "" {
			return Decision{}, fmt.Errorf("llm: malformed reply: empty tool name")
		}
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return Decision{}, fmt.Errorf("llm: malformed tool arguments: %w", err)
			}
		}
		return Decision{Kind: KindTool, ToolName: tc.Function.Name, ToolArgs: args}, nil
	}

	if msg.Content == "" {
		return Decision{}, fmt.Errorf("llm: malformed reply: empty content and no tool call")
	}
	return Decision{Kind: KindFinal, Text: msg.Content}, nil
}

func buildMessages(query string, transcript []Step) []ChatMessage {
	msgs := []ChatMessage{{Role: "system", Content: systemPrompt}, {Role: "user", Content: query}}
	for _, s := range transcript {
		if s.ToolName != "" {
			msgs = append(msgs, ChatMessage{Role: "assistant", Content: fmt.Sprintf("called %s", s.ToolName)})
			msgs = append(msgs, ChatMessage{Role: "tool", Content: s.Observation})
		}
	}
	return msgs
}

func buildToolSchemas(catalog []ToolDescriptor) []toolSchema {
	out := make([]toolSchema, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, toolSchema{Type: "function", Function: functionSpec{Name: t.Name, Description: t.Description}})
	}
	return out
}
