// Package catalog extracts node templates from Python modules.
//
// A template describes one public function of a module as a call node an
// editor can place: its parameters become inputs and its return annotation
// becomes the single output. Modules are inspected statically with
// tree-sitter; nothing is imported or executed.
package catalog

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/Benny93/plexus-go/internal/graph"
	"github.com/Benny93/plexus-go/internal/pyast"
)

// NodeTypeCall is the node type of every template.
const NodeTypeCall = "call_function"

// NoDoc is the doc of a function without a docstring.
const NoDoc = "No documentation available."

// Template describes a node for one library function.
type Template struct {
	// NodeType is always NodeTypeCall.
	NodeType string `json:"node_type"`

	// DisplayName is module.func.
	DisplayName string `json:"display_name"`

	// FuncName is the bare function name.
	FuncName string `json:"func_name"`

	// Module is the dotted module name the function belongs to.
	Module string `json:"module"`

	// Doc is the cleaned docstring.
	Doc string `json:"doc"`

	Inputs  []Param  `json:"inputs"`
	Outputs []Output `json:"outputs"`

	// FilePath is the file the function was found in, when known.
	FilePath string `json:"file_path,omitempty"`

	// Line is the 1-based line of the def.
	Line int `json:"line,omitempty"`
}

// Param is a template input.
type Param struct {
	Name string `json:"name"`

	// TypeHint is the annotation source text, or nil without annotation.
	TypeHint *string `json:"type_hint"`

	// Required is false for parameters with a default.
	Required bool `json:"required"`
}

// Output is a template output.
type Output struct {
	Name     string `json:"name"`
	TypeHint string `json:"type_hint"`
}

// ID returns the key a template is stored under.
func (t *Template) ID() string {
	return t.DisplayName
}

// CallName is the function name a Call node built from t carries.
func (t *Template) CallName() string {
	if t.Module != "" && pyast.IsDottedName(t.Module) {
		return t.Module + "." + t.FuncName
	}
	return t.FuncName
}

// NewNode instantiates a Call node for t. Inputs are left for the caller to
// connect.
func (t *Template) NewNode(id string) *graph.Node {
	return &graph.Node{
		ID:     id,
		Kind:   graph.KindCall,
		Name:   t.CallName(),
		Inputs: []graph.Input{},
	}
}

var (
	pythonLanguage = tree_sitter.NewLanguage(tree_sitter_python.Language())

	errUnsupportedSignature = errors.New("unsupported signature")
)

// InspectModule returns the templates for the public top-level functions in
// src, sorted by function name. Functions with variadic or keyword-only
// parameters are skipped, and a skipped definition hides any earlier one of
// the same name.
func InspectModule(module string, src []byte) ([]Template, error) {
	p := tree_sitter.NewParser()
	defer p.Close()
	if err := p.SetLanguage(pythonLanguage); err != nil {
		return nil, fmt.Errorf("loading python grammar: %w", err)
	}

	tree := p.Parse(src, nil)
	if tree == nil {
		return nil, pyast.ErrSyntax
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, pyast.ErrSyntax
	}

	i := &inspector{src: src, module: module}
	byName := make(map[string]Template)
	for idx := uint(0); idx < root.NamedChildCount(); idx++ {
		def := functionDefinition(root.NamedChild(idx))
		if def == nil {
			continue
		}
		// A later definition rebinds the name, even when it is skipped.
		t, err := i.template(def)
		if err != nil {
			if name := def.ChildByFieldName("name"); name != nil {
				delete(byName, i.text(name))
			}
			continue
		}
		byName[t.FuncName] = t
	}

	out := make([]Template, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FuncName < out[b].FuncName })
	return out, nil
}

// ModuleName derives a dotted module name from a slash separated path
// relative to the source root.
func ModuleName(rel string) string {
	rel = strings.TrimSuffix(path.Clean(rel), ".py")
	rel = strings.TrimSuffix(rel, "/__init__")
	if rel == "__init__" || rel == "." {
		return ""
	}
	return strings.ReplaceAll(rel, "/", ".")
}

func functionDefinition(n *tree_sitter.Node) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "function_definition":
		return n
	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil && def.Kind() == "function_definition" {
			return def
		}
	}
	return nil
}

type inspector struct {
	src    []byte
	module string
}

func (i *inspector) text(n *tree_sitter.Node) string {
	return n.Utf8Text(i.src)
}

func (i *inspector) template(def *tree_sitter.Node) (Template, error) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return Template{}, errUnsupportedSignature
	}
	name := i.text(nameNode)
	if strings.HasPrefix(name, "_") {
		return Template{}, fmt.Errorf("%s: private", name)
	}

	inputs, err := i.params(def.ChildByFieldName("parameters"))
	if err != nil {
		return Template{}, fmt.Errorf("%s: %w", name, err)
	}

	outputs := []Output{}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		outputs = append(outputs, Output{Name: "return", TypeHint: i.text(ret)})
	}

	display := name
	if i.module != "" {
		display = i.module + "." + name
	}

	return Template{
		NodeType:    NodeTypeCall,
		DisplayName: display,
		FuncName:    name,
		Module:      i.module,
		Doc:         i.docstring(def.ChildByFieldName("body")),
		Inputs:      inputs,
		Outputs:     outputs,
		Line:        int(def.StartPosition().Row) + 1,
	}, nil
}

func (i *inspector) params(list *tree_sitter.Node) ([]Param, error) {
	out := []Param{}
	if list == nil {
		return out, nil
	}

	for idx := uint(0); idx < list.NamedChildCount(); idx++ {
		p := list.NamedChild(idx)
		switch p.Kind() {
		case "comment", "positional_separator":
			continue
		case "identifier":
			out = append(out, Param{Name: i.text(p), Required: true})
		case "typed_parameter":
			first := p.NamedChild(0)
			if first == nil || first.Kind() != "identifier" {
				return nil, errUnsupportedSignature
			}
			out = append(out, Param{Name: i.text(first), TypeHint: i.hint(p), Required: true})
		case "default_parameter", "typed_default_parameter":
			nameNode := p.ChildByFieldName("name")
			if nameNode == nil || nameNode.Kind() != "identifier" {
				return nil, errUnsupportedSignature
			}
			out = append(out, Param{Name: i.text(nameNode), TypeHint: i.hint(p), Required: false})
		default:
			// *args, **kwargs and the bare * before keyword-only parameters.
			return nil, errUnsupportedSignature
		}
	}
	return out, nil
}

func (i *inspector) hint(p *tree_sitter.Node) *string {
	t := p.ChildByFieldName("type")
	if t == nil {
		return nil
	}
	s := i.text(t)
	return &s
}

func (i *inspector) docstring(body *tree_sitter.Node) string {
	if body == nil {
		return NoDoc
	}

	var first *tree_sitter.Node
	for idx := uint(0); idx < body.NamedChildCount(); idx++ {
		if c := body.NamedChild(idx); c.Kind() != "comment" {
			first = c
			break
		}
	}
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() != 1 {
		return NoDoc
	}

	lit := first.NamedChild(0)
	var parts []*tree_sitter.Node
	switch lit.Kind() {
	case "string":
		parts = []*tree_sitter.Node{lit}
	case "concatenated_string":
		for idx := uint(0); idx < lit.NamedChildCount(); idx++ {
			parts = append(parts, lit.NamedChild(idx))
		}
	default:
		return NoDoc
	}

	var sb strings.Builder
	for _, part := range parts {
		v, err := pyast.DecodeString(i.text(part))
		if err != nil {
			return NoDoc
		}
		sb.WriteString(v)
	}

	if doc := CleanDoc(sb.String()); doc != "" {
		return doc
	}
	return NoDoc
}

// CleanDoc removes the uniform indentation of a docstring's continuation
// lines along with leading and trailing blank lines.
func CleanDoc(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "        "), "\n")

	margin := -1
	for _, l := range lines[1:] {
		content := strings.TrimLeft(l, " ")
		if content == "" {
			continue
		}
		if indent := len(l) - len(content); margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimSpace(lines[0])
	for idx := 1; idx < len(lines); idx++ {
		l := lines[idx]
		if margin > 0 {
			if len(l) >= margin {
				l = l[margin:]
			} else {
				l = strings.TrimLeft(l, " ")
			}
		}
		lines[idx] = strings.TrimRight(l, " ")
	}

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}
