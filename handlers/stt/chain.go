package stt

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"captionkit/core"
	"captionkit/metrics"
)

// Chain tries transcription providers in priority order. Each provider gets
// its own timeout; an error, timeout or blank answer moves on to the next.
type Chain struct {
	providers []ISTTService
	config    STTConfig
	metrics   *metrics.Metrics
	logger    *core.Logger
}

func NewChain(providers []ISTTService, config STTConfig, m *metrics.Metrics, logger *core.Logger) *Chain {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Chain{providers: providers, config: config, metrics: m, logger: logger}
}

// Len returns the number of configured providers.
func (c *Chain) Len() int {
	return len(c.providers)
}

// Transcribe returns the first usable transcript. When every provider fails
// the error wraps core.ErrNotAvailable along with each provider's failure.
func (c *Chain) Transcribe(ctx context.Context, utt core.Utterance) (core.TranscriptionResult, error) {
	errs := []error{core.ErrNotAvailable}
	req := Request{Audio: utt.Audio, MimeType: utt.MimeType, Language: c.config.Language}

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return core.TranscriptionResult{}, err
		}
		text, err := c.call(ctx, p, req)
		if err == nil {
			return core.TranscriptionResult{OriginalText: text, ProviderID: p.ID()}, nil
		}
		c.logger.Warn("transcription provider failed", "provider", p.ID(), "utterance_id", utt.ID, "timeout", core.IsProviderTimeout(err), "error", err)
		errs = append(errs, err)
	}
	return core.TranscriptionResult{}, errors.Join(errs...)
}

type answer struct {
	text string
	err  error
}

// call runs one provider under its own deadline. The provider runs in its
// own goroutine so one that ignores ctx still cannot hold up the chain.
func (c *Chain) call(ctx context.Context, p ISTTService, req Request) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		c.metrics.ProviderCall("stt", p.ID(), time.Since(start).Seconds(), metrics.FailureCause(err))
	}()

	done := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("transcription provider panicked", "provider", p.ID(), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				done <- answer{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		t, err := p.Transcribe(ctx, req)
		done <- answer{text: t, err: err}
	}()

	var a answer
	select {
	case a = <-done:
	case <-ctx.Done():
		a.err = ctx.Err()
	}
	if a.err != nil {
		return "", core.NewProviderError(p.ID(), "transcribe", a.err)
	}
	text = strings.TrimSpace(a.text)
	if utf8.RuneCountInString(text) < c.config.MinTextLength {
		return "", core.NewProviderError(p.ID(), "transcribe", core.ErrEmptyResult)
	}
	return text, nil
}
