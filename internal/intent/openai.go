package intent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hongyan1215/money/internal/core"
)

// OpenAIParser implements Parser over the OpenAI chat API. Text goes
// through a JSON-mode completion; receipt images go through the vision
// endpoint with the same output contract.
type OpenAIParser struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

func NewOpenAIParser(apiKey, model string) *OpenAIParser {
	return &OpenAIParser{
		client: openai.NewClient(apiKey),
		model:  model,
		now:    time.Now,
	}
}

func (p *OpenAIParser) ParseText(ctx context.Context, text string) (core.Intent, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("parse text: %w", err)
	}
	return p.decode(ctx, resp)
}

func (p *OpenAIParser) ParseReceipt(ctx context.Context, image []byte) (core.Intent, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(image),
		base64.StdEncoding.EncodeToString(image))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.systemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Extract the purchases on this receipt as a RECORD intent.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("parse receipt: %w", err)
	}
	return p.decode(ctx, resp)
}

func (p *OpenAIParser) decode(ctx context.Context, resp openai.ChatCompletionResponse) (core.Intent, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}
	raw := resp.Choices[0].Message.Content

	var w wireIntent
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("decode intent json: %w", err)
	}
	return toIntent(ctx, w, p.now())
}

func (p *OpenAIParser) systemPrompt() string {
	categories := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		categories = append(categories, string(c))
	}

	return fmt.Sprintf(`You convert a user's message about personal finances into one minified JSON object. No markdown. No commentary.

Today's date is %s.

RULES:
- "kind" MUST be exactly one of: RECORD, QUERY, LIST, TOP_EXPENSE, DELETE, MODIFY, BULK_DELETE, SET_BUDGET, CHECK_BUDGET.
- Categories MUST be one of: %s. Never invent new ones. SET_BUDGET additionally accepts "Total" for an overall limit.
- RECORD: "entries" is an array of {"item","amount","category","kind","date"}; entry kind is "expense" or "income"; amounts are positive numbers; omit "date" when the user gives none.
- QUERY/LIST/TOP_EXPENSE: optional "startDate"/"endDate" (format 2006-01-02) and optional "category" for QUERY; omit dates the user did not give.
- DELETE/MODIFY: identify the target with at most one of "targetItem" (words from the item), "targetAmount" (exact number), or "indexOffset" (0 = most recent, "the one before" = 1). MODIFY carries the changes in "newItem"/"newAmount"/"newCategory", only the fields the user wants changed.
- BULK_DELETE: "startDate" and "endDate"; never infer a boundary the user did not state.
- SET_BUDGET: "category" and "amount".
- One message, one intent. When nothing fits, still pick the closest kind rather than inventing a new one.

OUTPUT JSON SCHEMA:
{"kind":string,"entries":[...],"startDate":string,"endDate":string,"category":string,"targetItem":string,"targetAmount":number,"indexOffset":number,"newItem":string,"newAmount":number,"newCategory":string,"amount":number}`,
		p.now().Format("2006-01-02"),
		strings.Join(categories, ", "))
}
