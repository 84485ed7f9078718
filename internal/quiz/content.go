package quiz

import (
	"context"
	"strings"

	"golang.org/x/net/html"
)

// pluginFilePlaceholder marks references to files attached to question text.
const pluginFilePlaceholder = "@@PLUGINFILE@@"

// ContentValidator rejects question text a headless client cannot display:
// empty text, attached-file references and embedded images. Hyperlinks to
// images are allowed.
type ContentValidator struct {
	resolver *Resolver
}

func NewContentValidator(r *Resolver) *ContentValidator {
	return &ContentValidator{resolver: r}
}

// HasInvalidContent checks q, or for a random question every candidate it resolves to.
func (v *ContentValidator) HasInvalidContent(ctx context.Context, q Question) (bool, error) {
	if !q.IsRandom() {
		return InvalidText(q.Text), nil
	}
	candidates, err := v.resolver.ResolveRandom(ctx, q)
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		if InvalidText(c.Text) {
			return true, nil
		}
	}
	return false, nil
}

// InvalidText applies the content rules to one question text.
func InvalidText(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	if strings.Contains(text, pluginFilePlaceholder) {
		return true
	}
	return hasImageTag(text) || hasRawImageTag(text)
}

func hasImageTag(text string) bool {
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "img" {
				return true
			}
		}
	}
}

// hasRawImageTag finds "<img" anywhere in the source, including inside
// comments, raw-text elements such as noscript, and a tag left unclosed at
// the end of the text.
func hasRawImageTag(text string) bool {
	lower := strings.ToLower(text)
	for i := strings.Index(lower, "<img"); i >= 0; {
		end := i + len("<img")
		if end == len(lower) {
			return true
		}
		switch lower[end] {
		case ' ', '\t', '\n', '\r', '\f', '/', '>':
			return true
		}
		next := strings.Index(lower[end:], "<img")
		if next < 0 {
			return false
		}
		i = end + next
	}
	return false
}
