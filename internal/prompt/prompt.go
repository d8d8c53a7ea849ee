// Package prompt renders the translation prompt template and measures its
// fixed per-request overhead.
package prompt

import (
	"fmt"
	"os"
	"strings"
)

// Placeholders understood by the template.
const (
	placeholderSource = "{source_language}"
	placeholderTarget = "{target_language}"
	placeholderText   = "{text}"
)

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `You are a professional literary translator.
Translate the following text from {source_language} to {target_language}.
Preserve the paragraph structure: paragraphs are separated by blank lines and the translation must keep the same separation.
Do not add comments, notes, or explanations. Output only the translated text.

Text to translate:
{text}`

// Template is an immutable translation prompt template. WithNote returns
// a derived template rather than mutating the receiver, so one base
// template can serve providers with different prompt notes.
type Template struct {
	raw  string
	note string
}

// New creates a Template from raw template text.
func New(raw string) *Template {
	return &Template{raw: raw}
}

// Load reads a template from a file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt template: %w", err)
	}
	return New(string(data)), nil
}

// WithNote returns a copy of the template with a provider-specific
// instruction attached. The note is inserted just before the chunk text,
// so it is part of the fixed overhead repeated in every request.
func (t *Template) WithNote(note string) *Template {
	if note == "" {
		return t
	}
	return &Template{raw: t.raw, note: note}
}

// Render substitutes the language placeholders and the chunk text.
func (t *Template) Render(sourceLanguage, targetLanguage, text string) string {
	rendered := t.substituteLanguages(sourceLanguage, targetLanguage)

	if t.note != "" {
		// Insert the note on the line above the {text} placeholder so it
		// reads as the last instruction before the payload.
		lines := strings.Split(rendered, "\n")
		inserted := false
		for i, line := range lines {
			if strings.Contains(line, placeholderText) {
				lines = append(lines[:i], append([]string{t.note}, lines[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted {
			lines = append(lines, t.note)
		}
		rendered = strings.Join(lines, "\n")
	}

	return strings.ReplaceAll(rendered, placeholderText, text)
}

// Boilerplate returns the fixed per-request prompt text: the rendered
// template with every line containing the per-chunk {text} placeholder
// removed. This is what gets measured as prompt token overhead, since the
// payload varies per chunk.
func (t *Template) Boilerplate(sourceLanguage, targetLanguage string) string {
	rendered := t.substituteLanguages(sourceLanguage, targetLanguage)

	lines := strings.Split(rendered, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.Contains(line, placeholderText) {
			kept = append(kept, line)
		}
	}
	boilerplate := strings.Join(kept, "\n")

	if t.note != "" {
		boilerplate += "\n" + t.note
	}
	return boilerplate
}

func (t *Template) substituteLanguages(sourceLanguage, targetLanguage string) string {
	s := strings.ReplaceAll(t.raw, placeholderSource, sourceLanguage)
	return strings.ReplaceAll(s, placeholderTarget, targetLanguage)
}
