// Package ai turns caption requests into prompts and asks a language model to
// write the captions.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"captionkit/caption"
	"captionkit/logger"
)

// CaptionCount is how many captions each request asks for.
const CaptionCount = 3

// Prompt is a system/user prompt pair.
type Prompt struct {
	System string
	User   string
}

// Writer asks a model for captions.
type Writer interface {
	Name() string
	WriteCaptions(ctx context.Context, p Prompt) ([]caption.RemoteCaption, error)
}

// StatusError carries the HTTP status a provider answered with.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus lets caption.Classify see the status.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// BuildPrompt produces the prompts for req. req should already be normalized.
func BuildPrompt(req caption.Request) Prompt {
	system := fmt.Sprintf(`You are a social media copywriter. You write short, punchy captions that fit the platform's culture and length limits.

Write exactly %d distinct caption options.

IMPORTANT RULES:
1. Each option has a title (a hook of at most 8 words), a caption body, a call to action and tags
2. Match the requested tone and goal
3. Respect the platform: short for X, professional for LinkedIn, emoji-friendly for Instagram and TikTok
4. Tags are 3 to 8 lowercase hashtags separated by single spaces, for example "#coffee #morningroutine"
5. Never wrap the JSON in commentary

Respond ONLY with valid JSON in this exact format:
{"captions": [{"title": "...", "caption": "...", "cta": "...", "tags": "#one #two #three"}]}`, CaptionCount)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Platform: %s\n", req.Platform))
	sb.WriteString(fmt.Sprintf("Tone: %s\n", req.Tone))
	sb.WriteString(fmt.Sprintf("Niche: %s\n", req.Niche))
	sb.WriteString(fmt.Sprintf("Goal: %s\n", req.Goal))
	if req.PostIdea != "" {
		sb.WriteString(fmt.Sprintf("Post idea: %s\n", req.PostIdea))
	}
	return Prompt{System: system, User: sb.String()}
}

// wireCaption accepts tags as either a string or a list of strings.
type wireCaption struct {
	Title   string          `json:"title"`
	Caption string          `json:"caption"`
	CTA     string          `json:"cta"`
	Tags    json.RawMessage `json:"tags"`
}

func (w wireCaption) remote() caption.RemoteCaption {
	rc := caption.RemoteCaption{Title: w.Title, Caption: w.Caption, CTA: w.CTA}
	var s string
	if err := json.Unmarshal(w.Tags, &s); err == nil {
		rc.Tags = s
		return rc
	}
	var list []string
	if err := json.Unmarshal(w.Tags, &list); err == nil {
		rc.Tags = strings.Join(list, " ")
	}
	return rc
}

// ParseCaptions decodes a model reply. It tolerates markdown fences and a
// bare array in place of the {"captions": [...]} object.
func ParseCaptions(text string) ([]caption.RemoteCaption, error) {
	content := cleanJSONResponse(text)
	if content == "" {
		return nil, errors.New("empty response from model")
	}

	var wire []wireCaption
	var envelope struct {
		Captions []wireCaption `json:"captions"`
	}
	if err := json.Unmarshal([]byte(content), &envelope); err == nil {
		wire = envelope.Captions
	} else if arrErr := json.Unmarshal([]byte(content), &wire); arrErr != nil {
		return nil, fmt.Errorf("failed to parse model response: %w\nResponse was: %s", err, content)
	}

	out := make([]caption.RemoteCaption, 0, len(wire))
	for _, w := range wire {
		rc := w.remote()
		if strings.TrimSpace(rc.Title) == "" && strings.TrimSpace(rc.Caption) == "" {
			continue
		}
		out = append(out, rc)
	}
	if len(out) == 0 {
		return nil, errors.New("no captions in model response")
	}
	return out, nil
}

// cleanJSONResponse removes markdown code blocks if present
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Fallback tries each writer in order until one succeeds.
type Fallback struct {
	writers []Writer
	log     *logger.Logger
}

// NewFallback chains writers. The first is the primary.
func NewFallback(log *logger.Logger, writers ...Writer) *Fallback {
	return &Fallback{writers: writers, log: logger.OrNop(log)}
}

func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.writers))
	for _, w := range f.writers {
		names = append(names, w.Name())
	}
	return strings.Join(names, ">")
}

func (f *Fallback) WriteCaptions(ctx context.Context, p Prompt) ([]caption.RemoteCaption, error) {
	if len(f.writers) == 0 {
		return nil, errors.New("no caption writers configured")
	}
	var errs []error
	for i, w := range f.writers {
		captions, err := w.WriteCaptions(ctx, p)
		if err == nil {
			return captions, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(f.writers)-1 {
			f.log.Warn("caption writer failed, falling back", "writer", w.Name(), "next", f.writers[i+1].Name(), "error", err)
		}
	}
	return nil, errors.Join(errs...)
}
