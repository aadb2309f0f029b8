package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternStar(t *testing.T) {
	p, err := compilePattern("*.log")
	require.NoError(t, err)

	assert.True(t, p.match("app.log"))
	assert.True(t, p.match("dir/app.log")) // * crosses /

	assert.False(t, p.match("app.log.bak"))
	assert.False(t, p.match("app.txt"))
}

func TestPatternDoubleStar(t *testing.T) {
	p, err := compilePattern("docs/**/*.md")
	require.NoError(t, err)

	assert.True(t, p.match("docs/a/b.md"))
	assert.True(t, p.match("docs/a/b/c.md"))
	assert.False(t, p.match("docs/b.txt"))
}

func TestPatternAnchoredWholeString(t *testing.T) {
	p, err := compilePattern("root.txt")
	require.NoError(t, err)

	assert.True(t, p.match("root.txt"))
	assert.False(t, p.match("sub/root.txt"))
	assert.False(t, p.match("root.txt.md"))
}

func TestPatternQuestion(t *testing.T) {
	p, err := compilePattern("file?.txt")
	require.NoError(t, err)

	assert.True(t, p.match("file1.txt"))
	assert.True(t, p.match("fileA.txt"))
	assert.False(t, p.match("file10.txt"))
	assert.False(t, p.match("file.txt"))
}

func TestPatternCharClass(t *testing.T) {
	p, err := compilePattern("ch[0-9].md")
	require.NoError(t, err)
	assert.True(t, p.match("ch3.md"))
	assert.False(t, p.match("chx.md"))

	neg, err := compilePattern("ch[!0-9].md")
	require.NoError(t, err)
	assert.False(t, neg.match("ch3.md"))
	assert.True(t, neg.match("chx.md"))

	caret, err := compilePattern("[^x].md")
	require.NoError(t, err)
	assert.True(t, caret.match("^.md"))
	assert.True(t, caret.match("x.md"))
	assert.False(t, caret.match("y.md"))
}

func TestPatternUnterminatedClassIsLiteral(t *testing.T) {
	p, err := compilePattern("a[b.md")
	require.NoError(t, err)
	assert.True(t, p.match("a[b.md"))
	assert.False(t, p.match("ab.md"))
}

func TestPatternEscapesRegexMeta(t *testing.T) {
	p, err := compilePattern("notes (v1)+.md")
	require.NoError(t, err)
	assert.True(t, p.match("notes (v1)+.md"))
	assert.False(t, p.match("notes v1.md"))
}

func TestPatternString(t *testing.T) {
	p, err := compilePattern("drafts/*")
	require.NoError(t, err)
	assert.Equal(t, "drafts/*", p.String())
}
