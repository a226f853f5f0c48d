package edit

import (
	"testing"

	"github.com/lingcode/agentcore/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEditBlock_ExtractsFirstFence(t *testing.T) {
	text := "Here is my plan.\n\n```json\n" +
		`{"edits":[{"file":"a.go","operation":"replace","range":{"startLine":1,"endLine":2},"content":["x","y"]}]}` +
		"\n```\nDone."

	edits, err := ParseEditBlock(text)
	require.NoError(t, err)
	require.Len(t, edits, 1)

	e := edits[0]
	assert.Equal(t, "a.go", e.File)
	assert.Equal(t, sdk.EditReplace, e.Operation)
	assert.Equal(t, &sdk.LineRange{Start: 1, End: 2}, e.Range)
	assert.Equal(t, []string{"x", "y"}, e.Content)
}

func TestParseEditBlock_DecodesAnchor(t *testing.T) {
	text := "```json\n" +
		`{"edits":[{"file":"a.go","operation":"insert","anchor":{"type":"function","name":"Foo","parent":"Bar","childIndex":1},"content":["z"]}]}` +
		"\n```"

	edits, err := ParseEditBlock(text)
	require.NoError(t, err)
	require.Len(t, edits, 1)

	a := edits[0].Anchor
	require.NotNil(t, a)
	assert.Equal(t, sdk.AnchorFunction, a.Kind)
	assert.Equal(t, "Foo", a.Name)
	assert.Equal(t, "Bar", a.Parent)
	assert.Equal(t, 1, a.ChildIndex)
	assert.True(t, a.HasChild)
}

func TestParseEditBlock_NoFence_Errors(t *testing.T) {
	_, err := ParseEditBlock("just plain text, no code fence here")
	require.Error(t, err)
}

func TestParseEditBlock_MultipleEdits(t *testing.T) {
	text := "```json\n" +
		`{"edits":[{"file":"a.go","operation":"delete","range":{"startLine":1,"endLine":1}},` +
		`{"file":"b.go","operation":"replace","content":["whole file"]}]}` +
		"\n```"

	edits, err := ParseEditBlock(text)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, "a.go", edits[0].File)
	assert.Equal(t, "b.go", edits[1].File)
}
