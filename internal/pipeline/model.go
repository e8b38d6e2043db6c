package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// StatementModel reads records out of a PDF the line tokenizer could not.
type StatementModel interface {
	ExtractRecords(ctx context.Context, pdfBytes []byte) ([]RawRecord, error)
}

const statementPrompt = "You are a parser for Indian bank and UPI PDF statements.\n\n" +
	"Task:\n" +
	"- List ALL transactions in the attached statement.\n" +
	"- Output a JSON array of objects and nothing else.\n\n" +
	"Each object must have these fields:\n" +
	"- \"id\": string, the UPI transaction id or bank reference, \"\" if none\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DDTHH:MM:SS\"\n" +
	"- \"amount\": number, always positive\n" +
	"- \"merchant\": string, the payee or description\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// GeminiModel asks a Gemini model to read the statement.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates the genai client from the environment
// (GOOGLE_API_KEY or Vertex AI settings).
func NewGeminiModel(ctx context.Context, model string) (*GeminiModel, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiModel: create genai client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// ExtractRecords implements StatementModel.
func (m *GeminiModel) ExtractRecords(ctx context.Context, pdfBytes []byte) ([]RawRecord, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: statementPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdfBytes,
					},
				},
			},
		},
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("ExtractRecords: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ExtractRecords: empty response from model")
	}

	records, err := decodeModelRecords(cleanModelJSON(rawText))
	if err != nil {
		return nil, fmt.Errorf("ExtractRecords: %w", err)
	}
	return records, nil
}

// decodeModelRecords reads a JSON array of objects; non-object elements are
// dropped.
func decodeModelRecords(s string) ([]RawRecord, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			records = append(records, RawRecord(obj))
		}
	}
	return records, nil
}

// cleanModelJSON strips Markdown fences and any chatter around the array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
