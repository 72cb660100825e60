package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"
)

// Format is a serialized form of the Graph IR.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks a format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown graph format %q (want json or yaml)", s)
}

// DetectFormat sniffs a document: JSON objects start with '{', anything else
// is read as YAML.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// wireInput is the serialized form of Input.
type wireInput struct {
	Name  string  `json:"name" yaml:"name"`
	Link  *string `json:"link,omitempty" yaml:"link,omitempty"`
	Value *string `json:"value,omitempty" yaml:"value,omitempty"`
}

// wireNode is the serialized form of Node. Field names are part of the IR
// contract.
type wireNode struct {
	ID             string      `json:"id,omitempty" yaml:"id,omitempty"`
	Type           string      `json:"type,omitempty" yaml:"type,omitempty"`
	Value          string      `json:"value,omitempty" yaml:"value,omitempty"`
	FuncName       string      `json:"func_name,omitempty" yaml:"func_name,omitempty"`
	TargetVariable string      `json:"target_variable,omitempty" yaml:"target_variable,omitempty"`
	Inputs         []wireInput `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Body           []*Node     `json:"body,omitempty" yaml:"body,omitempty"`
	Orelse         []*Node     `json:"orelse,omitempty" yaml:"orelse,omitempty"`
}

// document is the serialized form of Graph. Connections are reserved: always
// written empty and ignored on read.
type document struct {
	Nodes       *[]*Node `json:"nodes" yaml:"nodes"`
	Connections []any    `json:"connections" yaml:"connections"`
}

func (n *Node) toWire() wireNode {
	w := wireNode{
		ID:     n.ID,
		Type:   string(n.Kind),
		Body:   n.Body,
		Orelse: n.Orelse,
	}

	switch n.Kind {
	case KindVariableAssign:
		w.Value = n.Name
	case KindBinaryOp:
		w.Value = n.Operator
	case KindCall:
		w.FuncName = n.Name
	case KindFor:
		w.TargetVariable = n.Name
	}

	w.Inputs = make([]wireInput, 0, len(n.Inputs))
	for _, in := range n.Inputs {
		in := in
		wi := wireInput{Name: in.Name}
		if in.IsLink() {
			wi.Link = &in.Link
		} else {
			wi.Value = &in.Literal
		}
		w.Inputs = append(w.Inputs, wi)
	}
	return w
}

func (n *Node) fromWire(w wireNode) {
	*n = Node{
		ID:     w.ID,
		Kind:   Kind(w.Type),
		Body:   w.Body,
		Orelse: w.Orelse,
	}

	switch n.Kind {
	case KindVariableAssign:
		n.Name = w.Value
	case KindBinaryOp:
		n.Operator = w.Value
	case KindCall:
		n.Name = w.FuncName
	case KindFor:
		n.Name = w.TargetVariable
	}

	for _, wi := range w.Inputs {
		in := Input{Name: wi.Name}
		switch {
		case wi.Link != nil:
			in.Link = *wi.Link
		case wi.Value != nil:
			in.Literal = *wi.Value
		}
		n.Inputs = append(n.Inputs, in)
	}
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.toWire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	n.fromWire(w)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (n *Node) MarshalYAML() (any, error) {
	return n.toWire(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var w wireNode
	if err := value.Decode(&w); err != nil {
		return err
	}
	n.fromWire(w)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.document())
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return g.fromDocument(doc)
}

func (g *Graph) document() document {
	nodes := g.Nodes
	if nodes == nil {
		nodes = []*Node{}
	}
	return document{Nodes: &nodes, Connections: []any{}}
}

func (g *Graph) fromDocument(doc document) error {
	if doc.Nodes == nil {
		return MissingNodesError()
	}
	g.Nodes = *doc.Nodes
	return nil
}

// DecodeOptions tunes Decode.
type DecodeOptions struct {
	// Repair retries a failed JSON decode after repairing the document
	// (trailing commas, single quotes, unquoted keys and similar).
	Repair bool
}

// Decode parses a serialized graph. A document without a nodes list is a
// malformed-graph error; node-level validation is left to the compiler.
func Decode(data []byte, format Format, opts DecodeOptions) (*Graph, error) {
	var doc document

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding yaml graph: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, &doc); err != nil {
			if !opts.Repair {
				return nil, fmt.Errorf("decoding json graph: %w", err)
			}
			repaired, repairErr := jsonrepair.JSONRepair(string(data))
			if repairErr != nil {
				return nil, fmt.Errorf("decoding json graph: %w (repair failed: %v)", err, repairErr)
			}
			doc = document{}
			if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
				return nil, fmt.Errorf("decoding repaired json graph: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unknown graph format %q", format)
	}

	g := &Graph{}
	if err := g.fromDocument(doc); err != nil {
		return nil, err
	}
	return g, nil
}

// Encode serializes a graph. JSON output is indented with two spaces.
func Encode(g *Graph, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(g.document()); err != nil {
			return nil, fmt.Errorf("encoding yaml graph: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding yaml graph: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(g.document(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding json graph: %w", err)
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unknown graph format %q", format)
}
