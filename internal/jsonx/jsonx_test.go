package jsonx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject_PlainObject(t *testing.T) {
	raw, err := ExtractObject(`{"a":1,"b":"x"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, string(raw))
}

func TestExtractObject_LeadingCommentary(t *testing.T) {
	text := "Sure! Here is the classification you asked for:\n" +
		`{"intentType":"discovery","confidence":0.8}` + "\nLet me know if you need more."
	raw, err := ExtractObject(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"intentType":"discovery","confidence":0.8}`, string(raw))
}

func TestExtractObject_BracesInsideStrings(t *testing.T) {
	text := `{"html":"<div class=\"hero\">}{</div>","n":2}`
	raw, err := ExtractObject(text)
	require.NoError(t, err)
	var v struct {
		HTML string `json:"html"`
		N    int    `json:"n"`
	}
	require.NoError(t, Unmarshal(string(raw), &v))
	assert.Equal(t, `<div class="hero">}{</div>`, v.HTML)
}

func TestExtractObject_MarkdownFence(t *testing.T) {
	text := "```json\n{\"ok\":true}\n```"
	raw, err := ExtractObject(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestExtractObject_NoObject(t *testing.T) {
	_, err := ExtractObject("the model refused to answer")
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestExtractObject_Unbalanced(t *testing.T) {
	_, err := ExtractObject(`{"a": {"b": 1}`)
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestStripFences_LanguageTag(t *testing.T) {
	assert.Equal(t, "<div>hi</div>", StripFences("```html\n<div>hi</div>\n```"))
}

func TestStripFences_NoFence(t *testing.T) {
	assert.Equal(t, "plain", StripFences("plain"))
}

type fakeOut struct {
	Kind string `json:"kind"`
}

func TestParseOr_Success(t *testing.T) {
	p := ParseOr(`{"kind":"hero"}`, fakeOut{Kind: "fallback"}, nil)
	assert.False(t, p.Fallback)
	assert.Equal(t, "hero", p.Value.Kind)
}

func TestParseOr_FallbackOnGarbage(t *testing.T) {
	p := ParseOr(`not json at all`, fakeOut{Kind: "fallback"}, nil)
	assert.True(t, p.Fallback)
	assert.Equal(t, "fallback", p.Value.Kind)
	assert.NotEmpty(t, p.Reason)
}

func TestParseOr_FallbackOnValidation(t *testing.T) {
	p := ParseOr(`{"kind":""}`, fakeOut{Kind: "fallback"}, func(v fakeOut) error {
		if v.Kind == "" {
			return errors.New("kind required")
		}
		return nil
	})
	assert.True(t, p.Fallback)
	assert.Equal(t, "kind required", p.Reason)
}
