package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/msandnes/invoiceagent/internal/model"
)

// OpenAIClient implements Extractor and Generator against the OpenAI chat
// completions API with JSON-mode responses.
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *logrus.Logger
}

var (
	_ Extractor = (*OpenAIClient)(nil)
	_ Generator = (*OpenAIClient)(nil)
)

// NewOpenAIClient constructs a client for the given API key and model name.
func NewOpenAIClient(apiKey, modelName string, log *logrus.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  modelName,
		log:    log,
	}, nil
}

func (c *OpenAIClient) Extract(ctx context.Context, image []byte, contentType, pdfText string) (*model.Invoice, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(image) > 0 {
		dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: extractUserPrompt(pdfText)},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		}
	} else {
		user.Content = extractUserPrompt(pdfText)
	}

	raw, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: extractSystemPrompt},
		user,
	})
	if err != nil {
		return nil, fmt.Errorf("extract invoice: %w", err)
	}
	var inv model.Invoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, fmt.Errorf("decode extracted invoice: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("extracted invoice failed validation: %w", err)
	}
	return &inv, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, inv model.Invoice, guidance, voucherID string) (*model.Voucher, error) {
	raw, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(generateSystemPrompt, voucherID, guidance)},
		{Role: openai.ChatMessageRoleUser, Content: generateUserPrompt(inv, voucherID)},
	})
	if err != nil {
		return nil, fmt.Errorf("generate voucher: %w", err)
	}
	var voucher model.Voucher
	if err := json.Unmarshal([]byte(raw), &voucher); err != nil {
		return nil, fmt.Errorf("decode generated voucher: %w", err)
	}
	return &voucher, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
