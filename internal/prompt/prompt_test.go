package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tpl := New("Translate from {source_language} to {target_language}:\n{text}")
	got := tpl.Render("English", "Italian", "Hello.")
	assert.Equal(t, "Translate from English to Italian:\nHello.", got)
}

func TestRender_NoteInsertedAboveText(t *testing.T) {
	tpl := New("Header line.\n{text}\nFooter line.").WithNote("Do not add commentary.")
	got := tpl.Render("English", "Italian", "payload")

	lines := strings.Split(got, "\n")
	require.Equal(t, []string{"Header line.", "Do not add commentary.", "payload", "Footer line."}, lines)
}

func TestWithNote_DoesNotMutateBase(t *testing.T) {
	base := New("{text}")
	derived := base.WithNote("note")

	assert.NotContains(t, base.Render("a", "b", "x"), "note")
	assert.Contains(t, derived.Render("a", "b", "x"), "note")
}

func TestWithNote_EmptyReturnsSame(t *testing.T) {
	base := New("{text}")
	assert.Same(t, base, base.WithNote(""))
}

func TestBoilerplate_DropsPayloadLine(t *testing.T) {
	tpl := New("Translate from {source_language} to {target_language}.\nText:\n{text}")
	got := tpl.Boilerplate("English", "Italian")

	assert.Equal(t, "Translate from English to Italian.\nText:", got)
}

func TestBoilerplate_IncludesNote(t *testing.T) {
	tpl := New("Header.\n{text}").WithNote("Provider instruction.")
	got := tpl.Boilerplate("English", "Italian")

	assert.Contains(t, got, "Provider instruction.")
	assert.NotContains(t, got, "{text}")
}

func TestDefaultTemplate_HasAllPlaceholders(t *testing.T) {
	rendered := New(DefaultTemplate).Render("English", "Italian", "PAYLOAD")
	assert.Contains(t, rendered, "English")
	assert.Contains(t, rendered, "Italian")
	assert.Contains(t, rendered, "PAYLOAD")
	assert.NotContains(t, rendered, "{")
}
