// Package caption holds the caption data model, the error taxonomy shared by the
// pipeline stages, and the generator that requests captions from the remote endpoint.
package caption

import (
	"fmt"
	"strings"
)

// Caption is one generated caption. Tags never carry a leading '#'.
type Caption struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	CallToAction string   `json:"callToAction"`
	Tags         []string `json:"tags"`
}

// Hashtags renders the tags as "#a #b #c".
func (c Caption) Hashtags() string {
	if len(c.Tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		parts = append(parts, "#"+t)
	}
	return strings.Join(parts, " ")
}

// Format renders the caption as paste-ready share text. Empty sections are skipped.
func Format(c Caption) string {
	var sections []string
	for _, s := range []string{c.Title, c.Body, c.CallToAction, c.Hashtags()} {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}
	return strings.Join(sections, "\n\n")
}

// Request carries the wizard inputs for one generation call.
type Request struct {
	Platform string `json:"platform"`
	Tone     string `json:"tone"`
	Niche    string `json:"niche"`
	Goal     string `json:"goal"`
	PostIdea string `json:"postIdea,omitempty"`
}

// Normalize trims every field and defaults PostIdea to Niche.
func (r Request) Normalize() Request {
	out := Request{
		Platform: strings.TrimSpace(r.Platform),
		Tone:     strings.TrimSpace(r.Tone),
		Niche:    strings.TrimSpace(r.Niche),
		Goal:     strings.TrimSpace(r.Goal),
		PostIdea: strings.TrimSpace(r.PostIdea),
	}
	if out.PostIdea == "" {
		out.PostIdea = out.Niche
	}
	return out
}

// Validate reports the first missing required field.
func (r Request) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"platform", r.Platform},
		{"tone", r.Tone},
		{"niche", r.Niche},
		{"goal", r.Goal},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return nil
}

// RemoteCaption is a caption as the endpoint sends it: tags arrive as one
// whitespace-delimited string.
type RemoteCaption struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	CTA     string `json:"cta"`
	Tags    string `json:"tags"`
}

// Response is the endpoint payload.
type Response struct {
	Captions          []RemoteCaption `json:"captions"`
	RequestsRemaining int             `json:"requestsRemaining"`
}

// SplitTags splits a tag string on whitespace, drops empty tokens and strips
// leading '#' characters. Tokens that are only '#' are dropped too.
func SplitTags(s string) []string {
	fields := strings.Fields(s)
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimLeft(f, "#")
		if f == "" {
			continue
		}
		tags = append(tags, f)
	}
	return tags
}

// Shape converts the remote captions into Captions.
func Shape(remote []RemoteCaption) []Caption {
	out := make([]Caption, 0, len(remote))
	for _, rc := range remote {
		out = append(out, Caption{
			Title:        strings.TrimSpace(rc.Title),
			Body:         strings.TrimSpace(rc.Caption),
			CallToAction: strings.TrimSpace(rc.CTA),
			Tags:         SplitTags(rc.Tags),
		})
	}
	return out
}

// OverlayMode is where the caption goes relative to the media.
type OverlayMode string

const (
	ModeOverlay OverlayMode = "overlay"
	ModeBelow   OverlayMode = "below"
)

// Style is the caption typography.
type Style string

const (
	StyleStandard    Style = "standard"
	StyleHandwritten Style = "handwritten"
)
