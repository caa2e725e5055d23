package wire

import (
	"fmt"

	"github.com/mickamy/gobolt/internal/packstream"
)

// Node is the domain-native form of a TagNode structure. ElementID is
// empty on protocol versions before 5.0, where the server sends only the
// legacy numeric ID.
type Node struct {
	ID         int64
	Labels     []string
	Properties map[string]packstream.Value
	ElementID  string
}

// Relationship is the domain-native form of a TagRelationship structure.
type Relationship struct {
	ID                 int64
	StartID            int64
	EndID              int64
	Type               string
	Properties         map[string]packstream.Value
	ElementID          string
	StartElementID     string
	EndElementID       string
}

// UnboundRelationship is the domain-native form of a TagUnboundRelationship
// structure, as carried inside a Path before its endpoints are resolved.
type UnboundRelationship struct {
	ID         int64
	Type       string
	Properties map[string]packstream.Value
	ElementID  string
}

// Path is the domain-native form of a TagPath structure: an alternating
// sequence of nodes and relationships, reconstructed from the compact
// nodes/rels/indices encoding the server sends.
type Path struct {
	Nodes         []Node
	Relationships []UnboundRelationship
	// Indices alternates relationship-index (1-based, negated to mean
	// "traversed in reverse") and node-index (0-based) pairs, exactly as
	// received; Segments() below walks it into a usable form.
	Indices []int64
}

// Segment is one node-relationship-node step of a Path.
type Segment struct {
	Start Node
	Rel   UnboundRelationship
	Rev   bool
	End   Node
}

// Segments decodes Path.Indices into an ordered list of Segments.
func (p Path) Segments() ([]Segment, error) {
	if len(p.Indices)%2 != 0 {
		return nil, fmt.Errorf("wire: path: odd number of indices (%d)", len(p.Indices))
	}
	segments := make([]Segment, 0, len(p.Indices)/2)
	current := p.Nodes[0]
	for i := 0; i < len(p.Indices); i += 2 {
		relIdx := p.Indices[i]
		nodeIdx := p.Indices[i+1]

		rev := relIdx < 0
		if rev {
			relIdx = -relIdx
		}
		if relIdx < 1 || int(relIdx) > len(p.Relationships) {
			return nil, fmt.Errorf("wire: path: relationship index %d out of range", relIdx)
		}
		rel := p.Relationships[relIdx-1]

		if nodeIdx < 0 || int(nodeIdx) >= len(p.Nodes) {
			return nil, fmt.Errorf("wire: path: node index %d out of range", nodeIdx)
		}
		next := p.Nodes[nodeIdx]

		segments = append(segments, Segment{Start: current, Rel: rel, Rev: rev, End: next})
		current = next
	}
	return segments, nil
}

func propsOf(v packstream.Value) map[string]packstream.Value {
	entries, _ := v.AsDict()
	out := make(map[string]packstream.Value, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}

func stringsOf(v packstream.Value) []string {
	items, _ := v.AsList()
	out := make([]string, len(items))
	for i, item := range items {
		s, _ := item.AsString()
		out[i] = s
	}
	return out
}

func intOf(v packstream.Value) int64 {
	i, _ := v.AsInt()
	return i
}

func stringOf(v packstream.Value) string {
	s, _ := v.AsString()
	return s
}

func nodeFactory(fields []packstream.Value) (any, error) {
	if len(fields) != 3 && len(fields) != 4 {
		return nil, &InvalidMessageError{Tag: TagNode, Reason: fmt.Sprintf("expected 3 or 4 fields, got %d", len(fields))}
	}
	n := Node{
		ID:         intOf(fields[0]),
		Labels:     stringsOf(fields[1]),
		Properties: propsOf(fields[2]),
	}
	if len(fields) == 4 {
		n.ElementID = stringOf(fields[3])
	}
	return n, nil
}

func relationshipFactory(fields []packstream.Value) (any, error) {
	if len(fields) != 5 && len(fields) != 8 {
		return nil, &InvalidMessageError{Tag: TagRelationship, Reason: fmt.Sprintf("expected 5 or 8 fields, got %d", len(fields))}
	}
	r := Relationship{
		ID:         intOf(fields[0]),
		StartID:    intOf(fields[1]),
		EndID:      intOf(fields[2]),
		Type:       stringOf(fields[3]),
		Properties: propsOf(fields[4]),
	}
	if len(fields) == 8 {
		r.ElementID = stringOf(fields[5])
		r.StartElementID = stringOf(fields[6])
		r.EndElementID = stringOf(fields[7])
	}
	return r, nil
}

func unboundRelationshipFactory(fields []packstream.Value) (any, error) {
	if len(fields) != 3 && len(fields) != 4 {
		return nil, &InvalidMessageError{Tag: TagUnboundRelationship, Reason: fmt.Sprintf("expected 3 or 4 fields, got %d", len(fields))}
	}
	r := UnboundRelationship{
		ID:         intOf(fields[0]),
		Type:       stringOf(fields[1]),
		Properties: propsOf(fields[2]),
	}
	if len(fields) == 4 {
		r.ElementID = stringOf(fields[3])
	}
	return r, nil
}

func pathFactory(fields []packstream.Value) (any, error) {
	if len(fields) != 3 {
		return nil, &InvalidMessageError{Tag: TagPath, Reason: fmt.Sprintf("expected 3 fields, got %d", len(fields))}
	}
	nodeVals, _ := fields[0].AsList()
	nodes := make([]Node, len(nodeVals))
	for i, v := range nodeVals {
		s, ok := v.AsStructure()
		if !ok {
			return nil, &InvalidMessageError{Tag: TagPath, Reason: "node list element is not a Structure"}
		}
		n, err := nodeFactory(s.Fields)
		if err != nil {
			return nil, err
		}
		nodes[i] = n.(Node)
	}

	relVals, _ := fields[1].AsList()
	rels := make([]UnboundRelationship, len(relVals))
	for i, v := range relVals {
		s, ok := v.AsStructure()
		if !ok {
			return nil, &InvalidMessageError{Tag: TagPath, Reason: "relationship list element is not a Structure"}
		}
		r, err := unboundRelationshipFactory(s.Fields)
		if err != nil {
			return nil, err
		}
		rels[i] = r.(UnboundRelationship)
	}

	idxVals, _ := fields[2].AsList()
	indices := make([]int64, len(idxVals))
	for i, v := range idxVals {
		indices[i] = intOf(v)
	}

	return Path{Nodes: nodes, Relationships: rels, Indices: indices}, nil
}

// NewGraphRegistry returns a packstream.Registry with factories for Node,
// Relationship, UnboundRelationship, and Path installed. Temporal and
// spatial structures (Date, Time, Duration, Point2D, Point3D, ...) are
// intentionally left undecoded here: callers that need them register their
// own factories, since decoding them is not required to run a query and
// read back graph-shaped results.
func NewGraphRegistry() *packstream.Registry {
	reg := packstream.NewRegistry()
	reg.Register(TagNode, nodeFactory)
	reg.Register(TagRelationship, relationshipFactory)
	reg.Register(TagUnboundRelationship, unboundRelationshipFactory)
	reg.Register(TagPath, pathFactory)
	return reg
}
