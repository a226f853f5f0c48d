package index

import (
	"context"
	"regexp"
	"strings"
)

// RelationKind categorizes how one symbol relates to another.
type RelationKind string

const (
	RelationInheritance  RelationKind = "inheritance"
	RelationInstantiation RelationKind = "instantiation"
	RelationMethodCall   RelationKind = "method_call"
	RelationTypeReference RelationKind = "type_reference"
)

// Relationship is a single cross-file relation observed for a symbol.
type Relationship struct {
	SourceFile string
	Kind       RelationKind
}

var (
	inheritancePattern = regexp.MustCompile(`(?i)\b(?:extends|implements|embeds?)\s+` + "`" + `?(\w+)`)
)

// FindRelated scans indexed files for occurrences of name and classifies
// each occurrence into one of the requested relation kinds. It never fails
// with an empty index; callers must tolerate an empty result.
func (idx *MemoryIndex) FindRelated(ctx context.Context, name string, kinds []RelationKind) ([]Relationship, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed || name == "" {
		return nil, nil
	}

	wanted := make(map[RelationKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	if len(wanted) == 0 {
		wanted[RelationInheritance] = true
		wanted[RelationInstantiation] = true
		wanted[RelationMethodCall] = true
		wanted[RelationTypeReference] = true
	}

	instantiation := regexp.MustCompile(`\bNew` + regexp.QuoteMeta(name) + `\s*\(|\b` + regexp.QuoteMeta(name) + `\s*\{`)
	methodCall := regexp.MustCompile(`\.\s*` + regexp.QuoteMeta(name) + `\s*\(`)
	typeRef := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)

	seen := make(map[string]bool)
	var out []Relationship

	for path, file := range idx.files {
		content := file.Content
		if !strings.Contains(content, name) {
			continue
		}

		classify := func(kind RelationKind) {
			if !wanted[kind] {
				return
			}
			key := path + ":" + string(kind)
			if seen[key] {
				return
			}
			seen[key] = true
			out = append(out, Relationship{SourceFile: path, Kind: kind})
		}

		if m := inheritancePattern.FindStringSubmatch(content); m != nil && m[1] == name {
			classify(RelationInheritance)
		}
		if instantiation.MatchString(content) {
			classify(RelationInstantiation)
		}
		if methodCall.MatchString(content) {
			classify(RelationMethodCall)
		}
		if typeRef.MatchString(content) {
			classify(RelationTypeReference)
		}
	}

	return out, nil
}
