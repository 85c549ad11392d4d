package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/starford/thinkink/internal/apperr"
)

const visionPrompt = "Transcribe all handwritten and printed text in this image exactly as written. " +
	"Preserve line breaks. Output only the transcribed text with no commentary."

// Vision recognizes text with a vision-capable chat model.
type Vision struct {
	client openai.Client
	model  string
}

// NewVision creates a Vision recognizer.
func NewVision(apiKey, model, baseURL string, opts ...option.RequestOption) *Vision {
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, opts...)
	return &Vision{client: openai.NewClient(all...), model: model}
}

// Recognize implements Recognizer. Progress is reported at 0, 50 once the
// request has been sent and 100 on success.
func (v *Vision) Recognize(ctx context.Context, img Image, onProgress ProgressFunc) (string, error) {
	report(onProgress, 0)

	dataURL := "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(visionPrompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}

	report(onProgress, 50)
	resp, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(v.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	})
	if err != nil {
		return "", fmt.Errorf("ocr: vision: %w: %w", apperr.ErrOCRFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ocr: vision: %w: no choices returned", apperr.ErrOCRFailure)
	}

	report(onProgress, 100)
	return resp.Choices[0].Message.Content, nil
}
