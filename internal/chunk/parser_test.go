package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ParsePython(t *testing.T) {
	p := NewParser()
	defer p.Close()

	source := []byte("def hello():\n    return \"hi\"\n")
	tree, err := p.Parse(context.Background(), source, "python")
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	assert.Equal(t, "module", tree.Root.Type)

	fn := tree.Root.FindChildByType("function_definition")
	require.NotNil(t, fn)
	assert.Equal(t, uint32(0), fn.StartPoint.Row)
	assert.True(t, fn.HasEnd)

	name := fn.FindChildByType("identifier")
	require.NotNil(t, name)
	assert.Equal(t, "hello", name.GetContent(source))
}

func TestParser_UnsupportedLanguage(t *testing.T) {
	p := NewParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), []byte("x"), "cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
	assert.False(t, p.Supports("cobol"))
	assert.True(t, p.Supports("python"))
}

func TestWalk_VisitsNestedNodes(t *testing.T) {
	p := NewParser()
	defer p.Close()

	source := []byte("class A:\n    def m(self):\n        pass\n")
	tree, err := p.Parse(context.Background(), source, "python")
	require.NoError(t, err)

	var classes, functions int
	tree.Root.Walk(func(n *Node) bool {
		switch n.Type {
		case "class_definition":
			classes++
		case "function_definition":
			functions++
		}
		return true
	})

	assert.Equal(t, 1, classes)
	assert.Equal(t, 1, functions)
}

func TestWalk_StopDescent(t *testing.T) {
	root := &Node{
		Type: "module",
		Children: []*Node{
			{Type: "class_definition", Children: []*Node{
				{Type: "function_definition"},
			}},
		},
	}

	var visited []string
	root.Walk(func(n *Node) bool {
		visited = append(visited, n.Type)
		return n.Type != "class_definition"
	})

	assert.Equal(t, []string{"module", "class_definition"}, visited)
}
