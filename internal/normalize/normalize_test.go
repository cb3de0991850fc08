package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain text", in: "  Soft   cotton tee ", want: "Soft cotton tee"},
		{name: "paragraphs", in: "<p>Soft cotton</p><p>Machine washable</p>", want: "Soft cotton Machine washable"},
		{name: "inline tags", in: "<p>Made in <strong>Portugal</strong></p>", want: "Made in Portugal"},
		{name: "entities", in: "<p>Salt &amp; pepper&nbsp;grinder</p>", want: "Salt & pepper grinder"},
		{name: "line breaks", in: "one<br>two<br/>three", want: "one two three"},
		{name: "script dropped", in: "<div>Visible<script>alert('x')</script></div>", want: "Visible"},
		{name: "list", in: "<ul><li>S</li><li>M</li></ul>", want: "S M"},
		{name: "unclosed", in: "<p>Broken <b>markup", want: "Broken markup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.in))
		})
	}
}

func TestPickLocalized(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{name: "nil", values: nil, want: ""},
		{name: "spanish first", values: map[string]string{"en": "Shirt", "es": "Camisa", "pt": "Camiseta"}, want: "Camisa"},
		{name: "portuguese before english", values: map[string]string{"en": "Shirt", "pt": "Camiseta"}, want: "Camiseta"},
		{name: "english", values: map[string]string{"en": "Shirt", "fr": "Chemise"}, want: "Shirt"},
		{name: "empty preferred skipped", values: map[string]string{"es": " ", "en": "Shirt"}, want: "Shirt"},
		{name: "lexical fallback", values: map[string]string{"it": "Camicia", "fr": "Chemise"}, want: "Chemise"},
		{name: "all empty", values: map[string]string{"es": "", "fr": ""}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PickLocalized(tt.values))
		})
	}
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, SplitTags(""))
	assert.Equal(t, []string{"summer", "sale"}, SplitTags("summer, sale,, "))
}
