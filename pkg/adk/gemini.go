package adk

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiProvider(ctx context.Context, apiKey string, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-pro"
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	iter := g.client.ListModels(ctx)
	var names []string
	for {
		m, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		// m.Name is like "models/gemini-pro"
		if strings.Contains(m.Name, "gemini") {
			names = append(names, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	return names, nil
}

// toSchema converts a tool's JSON schema into the genai form. Unknown
// keywords are ignored.
func toSchema(js map[string]interface{}) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	switch js["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		s.Type = genai.TypeString
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	s.Enum = stringList(js["enum"])
	s.Required = stringList(js["required"])
	if items, ok := js["items"].(map[string]interface{}); ok {
		s.Items = toSchema(items)
	}
	if props, ok := js["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	return s
}

func stringList(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, e := range l {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}

// systemInstruction wraps the system prompt as role-less content.
func systemInstruction(text string) *genai.Content {
	return &genai.Content{Parts: []genai.Part{genai.Text(text)}}
}

func (g *GeminiProvider) GenerateResponse(ctx context.Context, history []Message, tools []Tool) (string, *ToolCall, error) {
	var toolDefs []*genai.FunctionDeclaration
	for _, t := range tools {
		toolDefs = append(toolDefs, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  toSchema(t.Schema()),
		})
	}
	g.model.Tools = nil
	if len(toolDefs) > 0 {
		g.model.Tools = []*genai.Tool{{FunctionDeclarations: toolDefs}}
	}

	g.model.SystemInstruction = nil
	var cs []*genai.Content
	for _, msg := range history {
		role := "user"
		switch msg.Role {
		case "system":
			g.model.SystemInstruction = systemInstruction(msg.Content)
			continue
		case "model":
			role = "model"
		}
		// Function output is sent back as user text so the model sees it.
		cs = append(cs, &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}, Role: role})
	}
	if len(cs) == 0 {
		return "", nil, fmt.Errorf("empty history")
	}

	session := g.model.StartChat()
	session.History = cs[:len(cs)-1]
	resp, err := session.SendMessage(ctx, cs[len(cs)-1].Parts...)
	if err != nil {
		return "", nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil, fmt.Errorf("no response candidates")
	}

	var (
		responseText string
		toolCall     *ToolCall
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			toolCall = &ToolCall{ToolName: p.Name, Args: p.Args}
		case genai.Text:
			responseText += string(p)
		}
	}
	if toolCall == nil && responseText == "" {
		return "", nil, fmt.Errorf("model returned an empty response")
	}
	return responseText, toolCall, nil
}

func (g *GeminiProvider) Close() {
	g.client.Close()
}
