package translate

import (
	"context"

	"captionkit/core"
)

// ITranslateService corrects a raw transcript and translates it in one call.
type ITranslateService interface {
	ID() string
	CorrectAndTranslate(ctx context.Context, req core.TranslationRequest) (core.TranslationResult, error)
}
