// Package drawio renders a Graph IR as a draw.io diagram.
//
// The layout follows blueprint editors: statements run top to bottom, the
// expressions they consume sit to their left and the bodies of branches and
// loops open to their right. White execution edges connect statements; thin
// blue data edges follow links.
package drawio

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/Benny93/plexus-go/internal/graph"
)

const (
	nodeWidth = 220
	xSpacing  = 300
	ySpacing  = 60

	nodeStyle     = "shape=plain;html=1;verticalAlign=top;align=left;spacing=4;fillColor=#282828;strokeColor=#000000;fontColor=#FFFFFF;rounded=1;"
	execEdgeStyle = "edgeStyle=orthogonalEdgeStyle;rounded=0;orthogonalLoop=1;jettySize=auto;html=1;strokeColor=#FFFFFF;strokeWidth=3;"
	dataEdgeStyle = "edgeStyle=orthogonalEdgeStyle;rounded=0;orthogonalLoop=1;jettySize=auto;html=1;strokeColor=#6296C0;strokeWidth=1.5;"
)

var headerColors = map[graph.Kind]string{
	graph.KindVariableAssign: "#005c91",
	graph.KindCall:           "#007d6b",
	graph.KindPrint:          "#007d6b",
	graph.KindIf:             "#9a2424",
	graph.KindFor:            "#8213a1",
	graph.KindBinaryOp:       "#4e6482",
}

const defaultHeaderColor = "#3F3F3F"

// MxFile is the draw.io document.
type MxFile struct {
	XMLName xml.Name  `xml:"mxfile"`
	Host    string    `xml:"host,attr"`
	Agent   string    `xml:"agent,attr"`
	Type    string    `xml:"type,attr"`
	Diagram MxDiagram `xml:"diagram"`
}

// MxDiagram holds the compressed graph model.
type MxDiagram struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
	Data string `xml:",chardata"`
}

// MxGraphModel is the uncompressed diagram content.
type MxGraphModel struct {
	XMLName  xml.Name `xml:"mxGraphModel"`
	Grid     int      `xml:"grid,attr"`
	GridSize int      `xml:"gridSize,attr"`
	Guides   int      `xml:"guides,attr"`
	Tooltips int      `xml:"tooltips,attr"`
	Connect  int      `xml:"connect,attr"`
	Arrows   int      `xml:"arrows,attr"`
	Root     MxRoot   `xml:"root"`
}

// MxRoot lists the cells of a model.
type MxRoot struct {
	Cells []MxCell `xml:"mxCell"`
}

// MxCell is a vertex or an edge.
type MxCell struct {
	ID       string      `xml:"id,attr"`
	Value    string      `xml:"value,attr,omitempty"`
	Style    string      `xml:"style,attr,omitempty"`
	Vertex   string      `xml:"vertex,attr,omitempty"`
	Edge     string      `xml:"edge,attr,omitempty"`
	Parent   string      `xml:"parent,attr,omitempty"`
	Source   string      `xml:"source,attr,omitempty"`
	Target   string      `xml:"target,attr,omitempty"`
	Geometry *MxGeometry `xml:"mxGeometry,omitempty"`
}

// MxGeometry places a cell.
type MxGeometry struct {
	X        int    `xml:"x,attr"`
	Y        int    `xml:"y,attr"`
	Width    int    `xml:"width,attr,omitempty"`
	Height   int    `xml:"height,attr,omitempty"`
	Relative string `xml:"relative,attr,omitempty"`
	As       string `xml:"as,attr"`
}

// Render lays out g and returns the draw.io document.
func Render(g *graph.Graph) ([]byte, error) {
	model, err := Layout(g)
	if err != nil {
		return nil, err
	}

	raw, err := xml.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("encoding graph model: %w", err)
	}
	data, err := Compress(raw)
	if err != nil {
		return nil, err
	}

	doc := MxFile{
		Host:  "plexus",
		Agent: "plexus-go",
		Type:  "device",
		Diagram: MxDiagram{
			ID:   "diagram-1",
			Name: "Plexus Blueprint",
			Data: data,
		},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding diagram: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// Compress encodes a model the way draw.io stores diagrams: raw deflate,
// then base64, then URL escaping.
func Compress(model []byte) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(model); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return url.QueryEscape(base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// Decompress reverses Compress.
func Decompress(data string) ([]byte, error) {
	unescaped, err := url.QueryUnescape(strings.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("unescaping diagram: %w", err)
	}
	compressed, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return nil, fmt.Errorf("decoding diagram: %w", err)
	}
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	return io.ReadAll(r)
}

// Layout computes the graph model for g without compressing it.
func Layout(g *graph.Graph) (*MxGraphModel, error) {
	idx, err := graph.NewIndex(g)
	if err != nil {
		return nil, err
	}

	l := &layout{
		idx:       idx,
		positions: make(map[string]point),
		heights:   make(map[string]int),
	}
	for _, n := range idx.Nodes() {
		l.heights[n.ID] = l.height(n)
	}
	bottom := l.flow(idx.Roots(g.Nodes), 0, 0)

	// Values nothing consumes are parked below the flow.
	for _, n := range idx.Nodes() {
		if _, ok := l.positions[n.ID]; !ok {
			l.positions[n.ID] = point{0, bottom}
			bottom += l.heights[n.ID] + ySpacing
		}
	}

	model := &MxGraphModel{Grid: 1, GridSize: 10, Guides: 1, Tooltips: 1, Connect: 1, Arrows: 1}
	model.Root.Cells = append(model.Root.Cells, MxCell{ID: "0"}, MxCell{ID: "1", Parent: "0"})

	for _, n := range idx.Nodes() {
		p := l.positions[n.ID]
		model.Root.Cells = append(model.Root.Cells, MxCell{
			ID:     n.ID,
			Value:  l.label(n),
			Style:  nodeStyle,
			Vertex: "1",
			Parent: "1",
			Geometry: &MxGeometry{
				X: p.x, Y: p.y, Width: nodeWidth, Height: l.heights[n.ID], As: "geometry",
			},
		})
	}

	for _, n := range idx.Nodes() {
		for i, in := range n.Inputs {
			if !in.IsLink() || idx.Node(in.Link) == nil {
				continue
			}
			model.Root.Cells = append(model.Root.Cells, edge(fmt.Sprintf("data-edge-%s-%s-%d", in.Link, n.ID, i), dataEdgeStyle, in.Link, n.ID))
		}
	}

	for i, e := range l.execEdges(g.Nodes, nil) {
		model.Root.Cells = append(model.Root.Cells, edge(fmt.Sprintf("exec-edge-%d", i), execEdgeStyle, e[0], e[1]))
	}
	return model, nil
}

func edge(id, style, source, target string) MxCell {
	return MxCell{
		ID:       id,
		Style:    style,
		Edge:     "1",
		Parent:   "1",
		Source:   source,
		Target:   target,
		Geometry: &MxGeometry{Relative: "1", As: "geometry"},
	}
}

type point struct{ x, y int }

type layout struct {
	idx       *graph.Index
	positions map[string]point
	heights   map[string]int
}

func (l *layout) height(n *graph.Node) int {
	inputs := len(n.Inputs)
	if l.idx.IsStatement(n) {
		inputs++
	}
	outputs := 1
	if n.Kind == graph.KindIf || n.Kind == graph.KindFor {
		outputs = 2
	}
	return 50 + max(inputs, outputs)*20
}

// flow places a statement list downwards from (x, y) and returns the lowest
// y it used.
func (l *layout) flow(stmts []*graph.Node, x, y int) int {
	cur := y
	lowest := y
	for _, n := range stmts {
		if _, ok := l.positions[n.ID]; ok {
			continue
		}
		l.positions[n.ID] = point{x, cur}
		l.dependencies(n, x, cur)

		switch n.Kind {
		case graph.KindIf:
			trueEnd := l.flow(l.idx.Roots(n.Body), x+xSpacing, cur)
			lowest = max(lowest, l.flow(l.idx.Roots(n.Orelse), x+xSpacing, trueEnd))
		case graph.KindFor:
			lowest = max(lowest, l.flow(l.idx.Roots(n.Body), x+xSpacing, cur))
		}

		cur += l.heights[n.ID] + ySpacing
		lowest = max(lowest, cur)
	}
	return lowest
}

// dependencies places the producers n reads to its left.
func (l *layout) dependencies(n *graph.Node, x, y int) {
	cur := y
	for _, in := range n.Inputs {
		if !in.IsLink() {
			continue
		}
		if _, ok := l.positions[in.Link]; ok {
			continue
		}
		dep := l.idx.Node(in.Link)
		if dep == nil {
			continue
		}
		l.positions[dep.ID] = point{x - xSpacing, cur}
		l.dependencies(dep, x-xSpacing, cur)
		cur += l.heights[dep.ID] + ySpacing
	}
}

// execEdges connects consecutive statements of a list and opens the bodies
// of branches and loops.
func (l *layout) execEdges(nodes []*graph.Node, acc [][2]string) [][2]string {
	stmts := l.idx.Roots(nodes)
	for i, n := range stmts {
		switch n.Kind {
		case graph.KindIf:
			if body := l.idx.Roots(n.Body); len(body) > 0 {
				acc = append(acc, [2]string{n.ID, body[0].ID})
			}
			if orelse := l.idx.Roots(n.Orelse); len(orelse) > 0 {
				acc = append(acc, [2]string{n.ID, orelse[0].ID})
			}
		case graph.KindFor:
			if body := l.idx.Roots(n.Body); len(body) > 0 {
				acc = append(acc, [2]string{n.ID, body[0].ID})
			}
		}
		if i+1 < len(stmts) {
			acc = append(acc, [2]string{n.ID, stmts[i+1].ID})
		}
		acc = l.execEdges(n.Body, acc)
		acc = l.execEdges(n.Orelse, acc)
	}
	return acc
}

func header(n *graph.Node) string {
	switch n.Kind {
	case graph.KindIf:
		return "Branch"
	case graph.KindFor:
		return "For Each Loop"
	}
	if n.Name != "" {
		return n.Name
	}
	if n.Operator != "" {
		return n.Operator
	}
	return n.Kind.Title()
}

func outputName(k graph.Kind) string {
	switch k {
	case graph.KindCall, graph.KindPrint:
		return "return"
	case graph.KindFor:
		return "Array Element"
	case graph.KindVariableAssign, graph.KindBinaryOp:
		return "value"
	}
	return ""
}

const (
	execPort = `<tr><td align="right">%s</td><td port="%s" align="right" style="padding:0 5px;">&#9654;</td></tr>`
	dataPort = `<tr><td align="right">%s</td><td port="out_data" align="right" style="padding:0 5px;">&#9679;</td></tr>`
)

func (l *layout) label(n *graph.Node) string {
	color, ok := headerColors[n.Kind]
	if !ok {
		color = defaultHeaderColor
	}

	var in, out strings.Builder
	if l.idx.IsStatement(n) {
		in.WriteString(`<tr><td port="in_exec" align="left">&#9654;</td><td align="left" style="padding:0 5px;"></td></tr>`)
		switch n.Kind {
		case graph.KindIf:
			fmt.Fprintf(&out, execPort, "True", "out_exec_true")
			fmt.Fprintf(&out, execPort, "False", "out_exec_false")
		case graph.KindFor:
			fmt.Fprintf(&out, execPort, "Loop Body", "out_exec_loop")
			fmt.Fprintf(&out, execPort, "Completed", "out_exec_completed")
		default:
			fmt.Fprintf(&out, execPort, " ", "out_exec")
		}
	}
	for _, input := range n.Inputs {
		name := html.EscapeString(input.Name)
		fmt.Fprintf(&in, `<tr><td port="in_%s" align="left">&#9679;</td><td align="left" style="padding:0 5px;">%s</td></tr>`, name, name)
	}
	if name := outputName(n.Kind); name != "" {
		fmt.Fprintf(&out, dataPort, name)
	}

	return fmt.Sprintf(`<table style="width:100%%;border-collapse:collapse;">`+
		`<td colspan="3" style="padding:8px;text-align:left;background-color:%s;border-bottom:1px solid #000000;"><font color="#ffffff"><b>&#9654; %s</b></font></td>`+
		`<tr><td valign="top"><table cellpadding="2" style="font-size:11px;color:#C0C0C0;">%s</table></td><td></td>`+
		`<td valign="top"><table cellpadding="2" style="font-size:11px;color:#C0C0C0;">%s</table></td></tr></table>`,
		color, html.EscapeString(header(n)), in.String(), out.String())
}
