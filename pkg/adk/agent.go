package adk

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// maxToolRounds bounds the tool-call loop of a single Chat turn.
const maxToolRounds = 8

// ErrTooManyToolCalls is returned when the model keeps calling tools
// without ever answering.
var ErrTooManyToolCalls = errors.New("model exceeded the tool call limit for one turn")

// Tool represents an executable action for the agent
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error)
	Schema() map[string]interface{} // JSON schema for arguments
}

// ToolCall represents a request from the LLM to execute a tool
type ToolCall struct {
	ToolName string
	Args     map[string]interface{}
}

// Message represents a chat message
type Message struct {
	Role    string // "user", "model", "system", "function"
	Content string
}

// LLMProvider defines the interface for different AI models
type LLMProvider interface {
	GenerateResponse(ctx context.Context, history []Message, tools []Tool) (string, *ToolCall, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Agent is the core ADK agent
type Agent struct {
	llm     LLMProvider
	tools   map[string]Tool
	history []Message
	logger  *zap.Logger
}

// NewAgent creates a new agent with the given LLM provider
func NewAgent(llm LLMProvider, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		llm:    llm,
		tools:  make(map[string]Tool),
		logger: logger.Named("agent"),
	}
}

// SetSystemPrompt replaces the system message at the head of the history.
func (a *Agent) SetSystemPrompt(prompt string) {
	if len(a.history) > 0 && a.history[0].Role == "system" {
		a.history[0].Content = prompt
		return
	}
	a.history = append([]Message{{Role: "system", Content: prompt}}, a.history...)
}

// RegisterTool adds a tool to the agent's registry
func (a *Agent) RegisterTool(t Tool) {
	a.tools[t.Name()] = t
}

// Tools returns the registered tools sorted by name.
func (a *Agent) Tools() []Tool {
	list := make([]Tool, 0, len(a.tools))
	for _, t := range a.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []Message {
	return append([]Message(nil), a.history...)
}

// Reset forgets the conversation but keeps the system prompt.
func (a *Agent) Reset() {
	if len(a.history) > 0 && a.history[0].Role == "system" {
		a.history = a.history[:1]
		return
	}
	a.history = nil
}

// Chat sends a message to the agent and returns the response
func (a *Agent) Chat(ctx context.Context, input string, progress func(string)) (string, error) {
	a.history = append(a.history, Message{Role: "user", Content: input})
	toolList := a.Tools()

	for round := 0; round < maxToolRounds; round++ {
		respText, toolCall, err := a.llm.GenerateResponse(ctx, a.history, toolList)
		if err != nil {
			return "", err
		}

		// If the model just replied with text, we are done
		if toolCall == nil {
			a.history = append(a.history, Message{Role: "model", Content: respText})
			return respText, nil
		}

		a.logger.Debug("executing tool", zap.String("tool", toolCall.ToolName), zap.Any("args", toolCall.Args))
		a.history = append(a.history, Message{
			Role:    "model",
			Content: fmt.Sprintf("I will call tool %s with args %v", toolCall.ToolName, toolCall.Args),
		})

		tool, exists := a.tools[toolCall.ToolName]
		if !exists {
			a.history = append(a.history, Message{Role: "function", Content: fmt.Sprintf("Error: Tool %s not found", toolCall.ToolName)})
			continue
		}

		result, err := tool.Execute(ctx, toolCall.Args, progress)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			a.logger.Warn("tool failed", zap.String("tool", toolCall.ToolName), zap.Error(err))
			result = fmt.Sprintf("Error executing tool: %v", err)
		}

		a.history = append(a.history, Message{
			Role:    "function",
			Content: fmt.Sprintf("Tool %s returned: %s", toolCall.ToolName, result),
		})
	}
	return "", ErrTooManyToolCalls
}
