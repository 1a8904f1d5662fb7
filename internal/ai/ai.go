package ai

import (
	"context"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/rfp-evaluator/internal/utils"
	"go.uber.org/zap"
)

// Generator is a stateless text-in, text-out reasoning provider.
// Its output is untrusted and must be validated before use.
type Generator interface {
	GenerateContent(ctx context.Context, systemInstruction, message string) (string, error)
	Model() string
}

const defaultMaxLogLength = 200

//go:embed prompts/extract_system.md
var extractSystemPrompt string

//go:embed prompts/score_system.md
var scoreSystemPrompt string

//go:embed prompts/score_request.md
var scoreRequestTemplate string

// call sends one request and logs bounded previews of both directions.
func call(ctx context.Context, generator Generator, logger *zap.Logger, maxLogLen int, system, message string, fields ...zap.Field) (string, error) {
	requestFields := append([]zap.Field{
		zap.Int("message_length", utf8.RuneCountInString(message)),
		zap.String("message_preview", utils.TruncateForLog(message, maxLogLen)),
	}, fields...)
	logger.Debug("generate content request", requestFields...)

	raw, err := generator.GenerateContent(ctx, system, message)
	if err != nil {
		return "", err
	}

	responseFields := append([]zap.Field{
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, maxLogLen)),
	}, fields...)
	logger.Debug("generate content response", responseFields...)

	return raw, nil
}
