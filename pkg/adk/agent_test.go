package adk

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReply struct {
	text string
	call *ToolCall
	err  error
}

// scriptedLLM replays replies in order and records what it was sent.
type scriptedLLM struct {
	replies  []scriptedReply
	seen     [][]Message
	toolSeen []string
}

func (s *scriptedLLM) GenerateResponse(_ context.Context, history []Message, tools []Tool) (string, *ToolCall, error) {
	s.seen = append(s.seen, append([]Message(nil), history...))
	s.toolSeen = s.toolSeen[:0]
	for _, t := range tools {
		s.toolSeen = append(s.toolSeen, t.Name())
	}
	if len(s.replies) == 0 {
		return "", &ToolCall{ToolName: "Echo"}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.call, r.err
}

func (s *scriptedLLM) ListModels(context.Context) ([]string, error) { return []string{"fake"}, nil }

type echoTool struct {
	name  string
	calls int
	err   error
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echoes its input" }
func (e *echoTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{"type": "string", "description": "what to echo"},
		},
		"required": []string{"text"},
	}
}

func (e *echoTool) Execute(_ context.Context, args map[string]interface{}, progress func(string)) (string, error) {
	e.calls++
	if progress != nil {
		progress("echoing")
	}
	if e.err != nil {
		return "", e.err
	}
	return "echo: " + args["text"].(string), nil
}

func TestChatRunsToolThenAnswers(t *testing.T) {
	llm := &scriptedLLM{replies: []scriptedReply{
		{call: &ToolCall{ToolName: "Echo", Args: map[string]interface{}{"text": "hi"}}},
		{text: "done"},
	}}
	tool := &echoTool{name: "Echo"}
	a := NewAgent(llm, nil)
	a.SetSystemPrompt("be brief")
	a.RegisterTool(tool)

	var progress []string
	out, err := a.Chat(context.Background(), "say hi", func(s string) { progress = append(progress, s) })
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 1, tool.calls)
	assert.Equal(t, []string{"echoing"}, progress)

	h := a.History()
	require.Len(t, h, 5)
	assert.Equal(t, "system", h[0].Role)
	assert.Equal(t, "function", h[3].Role)
	assert.Contains(t, h[3].Content, "echo: hi")
	assert.Equal(t, Message{Role: "model", Content: "done"}, h[4])
}

func TestChatReportsUnknownToolAndToolErrors(t *testing.T) {
	llm := &scriptedLLM{replies: []scriptedReply{
		{call: &ToolCall{ToolName: "Missing"}},
		{call: &ToolCall{ToolName: "Broken", Args: map[string]interface{}{}}},
		{text: "sorry"},
	}}
	a := NewAgent(llm, nil)
	a.RegisterTool(&echoTool{name: "Broken", err: errors.New("boom")})

	out, err := a.Chat(context.Background(), "try", nil)
	require.NoError(t, err)
	assert.Equal(t, "sorry", out)

	last := llm.seen[len(llm.seen)-1]
	assert.Contains(t, last[2].Content, "Tool Missing not found")
	assert.Contains(t, last[4].Content, "Error executing tool: boom")
}

func TestChatStopsRunawayToolLoop(t *testing.T) {
	llm := &scriptedLLM{}
	a := NewAgent(llm, nil)
	a.RegisterTool(&echoTool{name: "Echo", err: errors.New("no text")})

	_, err := a.Chat(context.Background(), "loop", nil)
	assert.ErrorIs(t, err, ErrTooManyToolCalls)
	assert.Len(t, llm.seen, maxToolRounds)
}

func TestToolsAreSortedAndResetKeepsPrompt(t *testing.T) {
	a := NewAgent(&scriptedLLM{replies: []scriptedReply{{text: "ok"}}}, nil)
	a.RegisterTool(&echoTool{name: "b"})
	a.RegisterTool(&echoTool{name: "a"})
	assert.Equal(t, "a", a.Tools()[0].Name())

	a.SetSystemPrompt("one")
	a.SetSystemPrompt("two")
	_, err := a.Chat(context.Background(), "hello", nil)
	require.NoError(t, err)
	a.Reset()
	assert.Equal(t, []Message{{Role: "system", Content: "two"}}, a.History())
}

func TestSystemInstruction(t *testing.T) {
	c := systemInstruction("You are a security assistant.")
	require.Len(t, c.Parts, 1)
	assert.Equal(t, genai.Text("You are a security assistant."), c.Parts[0])
	assert.Empty(t, c.Role)
}

func TestToSchema(t *testing.T) {
	s := toSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mode":  map[string]interface{}{"type": "string", "enum": []string{"risk", "threat"}},
			"limit": map[string]interface{}{"type": "integer"},
			"tags":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
		"required": []interface{}{"mode"},
	})
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"mode"}, s.Required)
	assert.Equal(t, []string{"risk", "threat"}, s.Properties["mode"].Enum)
	assert.Equal(t, genai.TypeInteger, s.Properties["limit"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["tags"].Items.Type)
	assert.Nil(t, toSchema(nil))
}

func TestEmbeddedPromptNamesTools(t *testing.T) {
	p := GetSystemPrompt()
	for _, name := range []string{"RunRiskAssessment", "RunComplianceCheck", "SubmitIncident", "CompareWithBaseline"} {
		assert.Contains(t, p, name)
	}
}
