package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for malformed graphs.
var (
	// ErrMalformedGraph is returned for any structural problem in a graph:
	// a missing nodes list, node id, type or required input, or a dangling
	// link.
	ErrMalformedGraph = errors.New("malformed graph")

	// ErrUnsupportedOperator is returned when a binary_op node carries a
	// symbol that is neither an arithmetic nor a comparison operator.
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// NodeError pinpoints a malformed construct in a graph.
type NodeError struct {
	// NodeID is the offending node, empty when the node has no id.
	NodeID string

	// Kind is the node kind, when known.
	Kind Kind

	// Field is the missing or invalid field or input name.
	Field string

	// Reason is the human readable description.
	Reason string

	// Err is the sentinel the error matches.
	Err error

	// Cause is the underlying failure, if any.
	Cause error
}

func (e *NodeError) Error() string {
	return e.Reason
}

func (e *NodeError) Unwrap() []error {
	sentinel := e.Err
	if sentinel == nil {
		sentinel = ErrMalformedGraph
	}
	if e.Cause != nil {
		return []error{sentinel, e.Cause}
	}
	return []error{sentinel}
}

// MissingNodesError reports a document without a nodes list.
func MissingNodesError() error {
	return &NodeError{Field: "nodes", Reason: "graph is missing a 'nodes' list"}
}

// MissingIDError reports a node without an id. position is the node's index
// in its enclosing list.
func MissingIDError(position int, kind Kind) error {
	return &NodeError{
		Kind:   kind,
		Field:  "id",
		Reason: fmt.Sprintf("node at position %d is missing a required 'id' field", position),
	}
}

// NullNodeError reports a null entry in a node list.
func NullNodeError(position int) error {
	return &NodeError{Reason: fmt.Sprintf("node at position %d is null", position)}
}

// DuplicateIDError reports two nodes sharing an id.
func DuplicateIDError(id string) error {
	return &NodeError{NodeID: id, Field: "id", Reason: fmt.Sprintf("node id '%s' is used more than once", id)}
}

// MissingKindError reports a node without a type.
func MissingKindError(id string) error {
	return &NodeError{NodeID: id, Field: "type", Reason: fmt.Sprintf("node '%s' is missing a 'type' field", id)}
}

// UnknownKindError reports a node with a type outside the known kinds.
func UnknownKindError(id string, kind Kind) error {
	return &NodeError{
		NodeID: id,
		Kind:   kind,
		Field:  "type",
		Reason: fmt.Sprintf("node '%s' has unknown type '%s'", id, kind),
	}
}

// MissingInputError reports a node lacking a required named input.
func MissingInputError(n *Node, input string) error {
	return &NodeError{
		NodeID: n.ID,
		Kind:   n.Kind,
		Field:  input,
		Reason: fmt.Sprintf("node '%s' of type '%s' is missing required input: '%s'", n.ID, n.Kind, input),
	}
}

// MissingFieldError reports a node lacking a kind-specific field.
func MissingFieldError(n *Node, field string) error {
	return &NodeError{
		NodeID: n.ID,
		Kind:   n.Kind,
		Field:  field,
		Reason: fmt.Sprintf("node '%s' of type '%s' is missing required field: '%s'", n.ID, n.Kind, field),
	}
}

// DanglingLinkError reports a link to an id absent from the graph.
func DanglingLinkError(from *Node, input, target string) error {
	return &NodeError{
		NodeID: from.ID,
		Kind:   from.Kind,
		Field:  input,
		Reason: fmt.Sprintf("node link '%s' not found in graph", target),
	}
}

// NotAValueError reports a link to a node that produces no value.
func NotAValueError(target *Node) error {
	return &NodeError{
		NodeID: target.ID,
		Kind:   target.Kind,
		Reason: fmt.Sprintf("node '%s' of type '%s' produces no value and cannot be linked", target.ID, target.Kind),
	}
}

// InvalidLiteralError reports literal text that is not a literal expression.
func InvalidLiteralError(n *Node, input string, cause error) error {
	return &NodeError{
		NodeID: n.ID,
		Kind:   n.Kind,
		Field:  input,
		Reason: fmt.Sprintf("node '%s' input '%s': %v", n.ID, input, cause),
		Cause:  cause,
	}
}

// InvalidNameError reports a kind-specific name that is not a valid
// identifier.
func InvalidNameError(n *Node, field, name string) error {
	return &NodeError{
		NodeID: n.ID,
		Kind:   n.Kind,
		Field:  field,
		Reason: fmt.Sprintf("node '%s' field '%s': '%s' is not a valid identifier", n.ID, field, name),
	}
}

// CycleError reports a chain of links that leads back to its start.
func CycleError(n *Node) error {
	return &NodeError{
		NodeID: n.ID,
		Kind:   n.Kind,
		Reason: fmt.Sprintf("node '%s' depends on its own value through a link cycle", n.ID),
	}
}

// UnsupportedOperatorError reports an operator symbol outside both tables.
func UnsupportedOperatorError(n *Node) error {
	return &NodeError{
		NodeID: n.ID,
		Kind:   n.Kind,
		Field:  "value",
		Reason: fmt.Sprintf("operator '%s' of node '%s' is not implemented", n.Operator, n.ID),
		Err:    ErrUnsupportedOperator,
	}
}
