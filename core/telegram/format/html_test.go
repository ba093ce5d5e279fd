package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;x&lt;/b&gt; &amp; \"y\"", EscapeHTML(`<b>x</b> & "y"`))
	assert.Equal(t, "plain", EscapeHTML("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3, "…"))
	assert.Equal(t, "ab…", Truncate("abc", 2, "…"))
	assert.Equal(t, "привет", Truncate("привет", 6, "…"))
	assert.Equal(t, "при…", Truncate("привет", 3, "…"))
	assert.Equal(t, "abc", Truncate("abc", 0, "…"))
	assert.Equal(t, "", Truncate("", 5, "…"))
}
