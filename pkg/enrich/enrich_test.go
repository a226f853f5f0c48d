package enrich

import (
	"context"
	"testing"

	"github.com/lingcode/agentcore/pkg/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	byName map[string][]index.Relationship
}

func (f *fakeFinder) FindRelated(ctx context.Context, name string, kinds []index.RelationKind) ([]index.Relationship, error) {
	return f.byName[name], nil
}

func TestEnrich_NoSymbolsExtractable_ReturnsRawErrors(t *testing.T) {
	errs := []string{"build failed: exit status 1"}
	got := Enrich(context.Background(), &fakeFinder{}, errs, "main.go")
	assert.Equal(t, "build failed: exit status 1", got)
}

func TestEnrich_SymbolFoundButNoRelationships_ReturnsRawErrors(t *testing.T) {
	errs := []string{`cannot find "Widget" in scope`}
	got := Enrich(context.Background(), &fakeFinder{byName: map[string][]index.Relationship{}}, errs, "main.go")
	assert.Equal(t, errs[0], got)
}

func TestEnrich_ComposesRelatedContext(t *testing.T) {
	errs := []string{`cannot find Widget`}
	finder := &fakeFinder{byName: map[string][]index.Relationship{
		"Widget": {
			{SourceFile: "widget.go", Kind: index.RelationInheritance},
			{SourceFile: "widget.go", Kind: index.RelationMethodCall},
			{SourceFile: "app.go", Kind: index.RelationTypeReference},
		},
	}}

	got := Enrich(context.Background(), finder, errs, "main.go")

	require.Contains(t, got, "cannot find Widget")
	assert.Contains(t, got, "Related context:")
	assert.Contains(t, got, "Widget: seen in widget.go, app.go")
	assert.Contains(t, got, "inheritance")
	assert.Contains(t, got, "method_call")
	assert.Contains(t, got, "type_reference")
}

func TestEnrich_ExcludesTheFileItselfFromRelatedFiles(t *testing.T) {
	errs := []string{`undefined: Helper`}
	finder := &fakeFinder{byName: map[string][]index.Relationship{
		"Helper": {{SourceFile: "main.go", Kind: index.RelationTypeReference}},
	}}

	got := Enrich(context.Background(), finder, errs, "main.go")
	assert.Equal(t, errs[0], got, "the only relationship was in the file under error, so no new context exists")
}

func TestExtractSymbols_MatchesMultiplePhrasings(t *testing.T) {
	errs := []string{
		`cannot find 'Foo' in scope`,
		`unresolved identifier 'Bar'`,
		`type T has no member Baz`,
		`undeclared name: Qux`,
	}
	names := extractSymbols(errs)
	assert.ElementsMatch(t, []string{"Foo", "Bar", "T", "Qux"}, names)
}
