// Package enrich implements the error enricher: it extracts symbol names
// from compiler/linter error text and composes an enriched message that
// points the next prompt at the related declarations, rather than letting
// the agent loop re-derive that context with extra read tools.
package enrich

import (
	"context"
	"regexp"
	"strings"

	"github.com/lingcode/agentcore/pkg/index"
)

// RelatedFinder is the subset of the Symbol Index the enricher needs.
type RelatedFinder interface {
	FindRelated(ctx context.Context, name string, kinds []index.RelationKind) ([]index.Relationship, error)
}

var allKinds = []index.RelationKind{
	index.RelationInheritance,
	index.RelationInstantiation,
	index.RelationMethodCall,
	index.RelationTypeReference,
}

// symbolPatterns extract a candidate identifier from common compiler and
// linter phrasings. Each must have exactly one capture group.
var symbolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)cannot find ['"]?(\w+)['"]?`),
	regexp.MustCompile(`(?i)unresolved identifier ['"]?(\w+)['"]?`),
	regexp.MustCompile(`(?i)undefined:?\s+['"]?(\w+)['"]?`),
	regexp.MustCompile(`(?i)type\s+\S*?(\w+)\s+has no (?:field or )?member`),
	regexp.MustCompile(`(?i)value of type\s+\S*?(\w+)\s+has no member`),
	regexp.MustCompile(`(?i)undeclared name:?\s+['"]?(\w+)['"]?`),
}

// Enrich implements enrich(errors, file, project) -> enriched_message.
// Returns the raw errors unchanged if no symbols were extractable or no
// relationships were found for any of them.
func Enrich(ctx context.Context, finder RelatedFinder, errors []string, file string) string {
	symbols := extractSymbols(errors)
	if len(symbols) == 0 || finder == nil {
		return strings.Join(errors, "\n")
	}

	type symbolReport struct {
		name      string
		files     []string
		relations map[index.RelationKind]bool
	}

	var reports []symbolReport
	for _, name := range symbols {
		related, err := finder.FindRelated(ctx, name, allKinds)
		if err != nil || len(related) == 0 {
			continue
		}
		r := symbolReport{name: name, relations: map[index.RelationKind]bool{}}
		seenFile := map[string]bool{}
		for _, rel := range related {
			if rel.SourceFile == file {
				continue
			}
			if !seenFile[rel.SourceFile] {
				seenFile[rel.SourceFile] = true
				r.files = append(r.files, rel.SourceFile)
			}
			r.relations[rel.Kind] = true
		}
		if len(r.files) > 0 {
			reports = append(reports, r)
		}
	}

	if len(reports) == 0 {
		return strings.Join(errors, "\n")
	}

	var sb stringBuilder
	for _, e := range errors {
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRelated context:\n")
	for _, r := range reports {
		sb.WriteString("- " + r.name + ": seen in " + strings.Join(r.files, ", "))
		sb.WriteString(" (" + strings.Join(kindNames(r.relations), ", ") + ")\n")
	}

	return sb.String()
}

// extractSymbols runs every pattern over every error line and returns the
// distinct candidate names in first-seen order.
func extractSymbols(errors []string) []string {
	seen := map[string]bool{}
	var names []string
	for _, e := range errors {
		for _, pat := range symbolPatterns {
			m := pat.FindStringSubmatch(e)
			if m == nil {
				continue
			}
			name := m[1]
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func kindNames(relations map[index.RelationKind]bool) []string {
	var names []string
	for _, k := range allKinds {
		if relations[k] {
			names = append(names, string(k))
		}
	}
	return names
}

type stringBuilder struct {
	data []byte
}

func (sb *stringBuilder) WriteString(s string) {
	sb.data = append(sb.data, s...)
}

func (sb *stringBuilder) String() string {
	return string(sb.data)
}
