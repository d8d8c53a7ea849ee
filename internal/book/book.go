// Package book loads segmented book files and writes translated output.
package book

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bookpipe/internal/core"
)

// LoadSegmented reads a segmented book file: a JSON array of paragraphs,
// each with a paragraph ID and its sentences. Paragraph order in the file
// is document order and is preserved.
func LoadSegmented(path string) ([]core.Paragraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read segmented book: %w", err)
	}

	var paragraphs []core.Paragraph
	if err := json.Unmarshal(data, &paragraphs); err != nil {
		return nil, fmt.Errorf("failed to parse segmented book %s: %w", path, err)
	}
	return paragraphs, nil
}

// MergeParagraphs joins paragraph texts for the given IDs in order,
// separated by blank lines. IDs without a matching paragraph are skipped.
func MergeParagraphs(paragraphs []core.Paragraph, ids []int) string {
	byID := make(map[int]core.Paragraph, len(paragraphs))
	for _, p := range paragraphs {
		byID[p.ID] = p
	}

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			parts = append(parts, p.Text())
		}
	}
	return strings.Join(parts, "\n\n")
}

// OutputFilename derives the translated-output path from the segmented
// input path: the "_segmented" suffix is dropped and "_translated.txt"
// appended, in the same directory.
func OutputFilename(segmentedPath string) string {
	dir := filepath.Dir(segmentedPath)
	base := filepath.Base(segmentedPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, "_segmented")
	return filepath.Join(dir, base+"_translated.txt")
}

// WriteOutput writes the translated text, creating parent directories as
// needed.
func WriteOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write translated book: %w", err)
	}
	return nil
}
