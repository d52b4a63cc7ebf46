package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"fileforge/internal/config"
	"fileforge/internal/models"
)

// fallbackTags is substituted when the vision model is unreachable or
// no API key is configured, per spec §4.E.4's "do not fail the job" rule.
var fallbackTags = []string{"image", "photo", "unclassified"}

const aiTagPrompt = "Describe this image with 5 to 10 comma-separated descriptive tags. Respond with only the tag list."

// AITagHandlerFor implements AI_TAG (spec §4.E.4): hand the image bytes
// to a vision model, normalize the response to lowercase tags capped at
// 10, and upsert into FileMetadata.
func AITagHandlerFor(cfg *config.Config) HandlerFunc {
	return func(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
		tags := fallbackTags

		if cfg.AnthropicAPIKey != "" {
			if got, err := requestTags(ctx, cfg.AnthropicAPIKey, jc.InputPath); err != nil {
				tags = fallbackTags
			} else {
				tags = got
			}
		}

		existing, err := rt.Metadata.GetByFileID(ctx, jc.FileID)
		if err != nil {
			return nil, fmt.Errorf("ai_tag: load existing metadata: %w", err)
		}

		meta := existing
		if meta == nil {
			meta = &models.FileMetadata{ID: uuid.New(), FileID: jc.FileID}
		}
		meta.AITags = tags

		if err := rt.Metadata.Upsert(ctx, meta); err != nil {
			return nil, fmt.Errorf("ai_tag: upsert metadata: %w", err)
		}

		if err := rt.Jobs.Complete(ctx, nil, jc.JobID, nil); err != nil {
			return nil, fmt.Errorf("ai_tag: record completion: %w", err)
		}
		return nil, nil
	}
}

func requestTags(ctx context.Context, apiKey, imagePath string) ([]string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5SonnetLatest,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(detectImageMime(data), base64.StdEncoding.EncodeToString(data)),
				anthropic.NewTextBlock(aiTagPrompt),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision request: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return normalizeTags(text.String()), nil
}

func normalizeTags(raw string) []string {
	parts := strings.Split(raw, ",")
	var tags []string
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == 10 {
			break
		}
	}
	if len(tags) == 0 {
		return fallbackTags
	}
	return tags
}

func detectImageMime(data []byte) string {
	switch {
	case len(data) > 8 && string(data[1:4]) == "PNG":
		return "image/png"
	case len(data) > 3 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	default:
		return "image/jpeg"
	}
}
