package chunk

import (
	"context"
	"slices"
	"strings"
)

// Chunker splits source files into structural drafts. For the
// structurally supported language it emits one draft per function and
// class definition, nested definitions included, so a class draft and
// its method drafts overlap on purpose. Everything else degrades to a
// single whole-file draft.
//
// Chunking is a pure function of its inputs: no side effects, and
// identical text always yields an identical draft sequence.
type Chunker struct {
	parser   *Parser
	registry *LanguageRegistry
}

// NewChunker creates a chunker with the default language registry
func NewChunker() *Chunker {
	return &Chunker{
		parser:   NewParser(),
		registry: DefaultRegistry(),
	}
}

// Close releases parser resources
func (c *Chunker) Close() {
	c.parser.Close()
}

// Chunk splits fileText into drafts. It never returns an empty slice:
// unsupported languages and unparseable sources produce one draft of
// kind file, and parseable sources with no definitions produce one
// draft of kind module.
func (c *Chunker) Chunk(ctx context.Context, filePath, fileText, language string) []Draft {
	config, ok := c.registry.GetByName(language)
	if !ok || !c.parser.Supports(language) {
		return []Draft{wholeFileDraft(UnitKindFile, fileText)}
	}

	source := []byte(fileText)
	tree, err := c.parser.Parse(ctx, source, language)
	if err != nil {
		return []Draft{wholeFileDraft(UnitKindFile, fileText)}
	}

	// A syntax error anywhere in the file invalidates structural
	// chunking entirely, even when intact definitions remain around
	// the broken region.
	if tree.Root == nil || tree.Root.HasError {
		return []Draft{wholeFileDraft(UnitKindFile, fileText)}
	}

	lines := strings.Split(fileText, "\n")
	var drafts []Draft

	tree.Root.Walk(func(n *Node) bool {
		var kind UnitKind
		switch {
		case slices.Contains(config.FunctionTypes, n.Type):
			kind = UnitKindFunction
		case slices.Contains(config.ClassTypes, n.Type):
			kind = UnitKindClass
		default:
			return true
		}

		start, end := lineSpan(n)
		drafts = append(drafts, Draft{
			UnitName:  nodeName(n, config, source),
			UnitKind:  kind,
			Code:      sliceLines(lines, start, end),
			StartLine: start,
			EndLine:   end,
		})
		return true
	})

	if len(drafts) == 0 {
		return []Draft{wholeFileDraft(UnitKindModule, fileText)}
	}

	return drafts
}

func wholeFileDraft(kind UnitKind, fileText string) Draft {
	return Draft{
		UnitKind:  kind,
		Code:      fileText,
		StartLine: 1,
		EndLine:   len(strings.Split(fileText, "\n")),
	}
}

// lineSpan returns the 1-indexed inclusive line range of a node. When
// the parser supplies no end position the span falls back to a single
// line below the start.
func lineSpan(n *Node) (start, end int) {
	start = int(n.StartPoint.Row) + 1
	if !n.HasEnd {
		return start, start + 1
	}

	endRow := int(n.EndPoint.Row)
	// A node ending at column 0 stops before that row's first character.
	if n.EndPoint.Column == 0 && endRow > int(n.StartPoint.Row) {
		endRow--
	}
	end = endRow + 1
	if end < start {
		end = start
	}
	return start, end
}

// sliceLines joins the 1-indexed inclusive line range [start, end],
// clamped to the available lines.
func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) || end < start {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// nodeName extracts the definition's name identifier, if present
func nodeName(n *Node, config *LanguageConfig, source []byte) string {
	name := n.FindChildByType(config.NameField)
	if name == nil {
		return ""
	}
	return name.GetContent(source)
}
