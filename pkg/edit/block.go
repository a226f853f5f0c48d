package edit

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/lingcode/agentcore/pkg/sdk"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

type rawBlock struct {
	Edits []rawEdit `json:"edits"`
}

type rawEdit struct {
	File      string     `json:"file"`
	Operation string     `json:"operation"`
	Range     *rawRange  `json:"range"`
	Anchor    *rawAnchor `json:"anchor"`
	Content   []string   `json:"content"`
}

type rawRange struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

type rawAnchor struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Parent     string `json:"parent"`
	ChildIndex int    `json:"childIndex"`
}

// ParseEditBlock extracts the first ```json fenced code block from model
// text and decodes it into a batch of structured Edits. It returns an error
// if no fence is found or the fenced content doesn't match the edit-batch
// schema.
func ParseEditBlock(text string) ([]sdk.Edit, error) {
	m := fencedJSON.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("no json code fence found")
	}

	var block rawBlock
	if err := json.Unmarshal([]byte(m[1]), &block); err != nil {
		return nil, fmt.Errorf("decode edit block: %w", err)
	}

	edits := make([]sdk.Edit, 0, len(block.Edits))
	for _, re := range block.Edits {
		edit := sdk.Edit{
			File:      re.File,
			Operation: sdk.EditOperation(re.Operation),
			Content:   re.Content,
		}
		if re.Range != nil {
			edit.Range = &sdk.LineRange{Start: re.Range.StartLine, End: re.Range.EndLine}
		}
		if re.Anchor != nil {
			edit.Anchor = &sdk.Anchor{
				Kind:       sdk.AnchorKind(re.Anchor.Type),
				Name:       re.Anchor.Name,
				Parent:     re.Anchor.Parent,
				ChildIndex: re.Anchor.ChildIndex,
				HasChild:   re.Anchor.ChildIndex > 0 || re.Anchor.Parent != "",
			}
		}
		edits = append(edits, edit)
	}
	return edits, nil
}
