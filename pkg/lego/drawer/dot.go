// Package drawer renders the graph of a run.
// Attached as a trainer option, it records the phases a run goes through and
// writes a DOT file once the run finishes. When a measure is attached too,
// vertices carry average compute durations and edges are coloured from blue
// to red by how long the phase waited on its source.
package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-lego/internal/store"
	"github.com/askiada/go-lego/pkg/lego/measure"
)

// DOTDrawer is a drawer that creates a DOT file with the run graph.
type DOTDrawer struct {
	graph       graph.Graph[string, string]
	store       *store.Memory[string, string]
	phases      map[string]struct{}
	options     []func(*description)
	dotFileName string
}

// NewDOTDrawer creates a new DOT drawer writing to the given file. Graph
// level attributes can be set with GraphAttribute options.
func NewDOTDrawer(dotFileName string, options ...func(*description)) *DOTDrawer {
	st := store.NewMemory[string, string]()

	return &DOTDrawer{
		dotFileName: dotFileName,
		store:       st,
		graph:       graph.NewWithStore(graph.StringHash, st, graph.Directed()),
		phases:      make(map[string]struct{}),
		options:     options,
	}
}

// AddPhase adds a phase to the run graph. Adding the same phase twice is a
// no-op, phases sharing a source keep a single source vertex.
func (d *DOTDrawer) AddPhase(name string) error {
	err := d.graph.AddVertex(name)
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrap(err, "unable to add vertex")
	}

	d.phases[name] = struct{}{}

	return nil
}

// AddLink adds a link between a source and the phase consuming it.
func (d *DOTDrawer) AddLink(sourceName, phaseName string) error {
	err := d.graph.AddEdge(sourceName, phaseName)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", sourceName, phaseName)
	}

	return nil
}

// Draw creates a DOT file with the run graph.
func (d *DOTDrawer) Draw() error {
	file, err := os.Create(d.dotFileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.dotFileName)
	}
	defer file.Close()

	err = d.dot(file, d.options...)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", d.dotFileName)
	}

	return nil
}

// SetTotalTime sets the elapsed time since startTime on the phase.
func (d *DOTDrawer) SetTotalTime(phaseName string, startTime time.Time) error {
	if _, ok := d.phases[phaseName]; !ok {
		return errors.Wrap(graph.ErrVertexNotFound, phaseName)
	}

	d.store.UpdateVertex(phaseName, func(properties *graph.VertexProperties) {
		properties.Attributes["xlabel"] = time.Since(startTime).String()
	})

	return nil
}

const maxRGB = 240

// AddMeasure adds measure to drawer.
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	allWaitElapsed := make(map[time.Duration]string)
	sortedAllWaitElapsed := []time.Duration{}

	for _, metric := range msr.AllMetrics() {
		for _, info := range metric.AVGWaitDuration() {
			if info.Elapsed == 0 {
				continue
			}

			if _, ok := allWaitElapsed[info.Elapsed]; ok {
				continue
			}

			allWaitElapsed[info.Elapsed] = ""

			sortedAllWaitElapsed = append(sortedAllWaitElapsed, info.Elapsed)
		}
	}

	if len(sortedAllWaitElapsed) == 0 {
		return d.updateMetrics(msr, allWaitElapsed)
	}

	sort.Slice(sortedAllWaitElapsed, func(i, j int) bool {
		return sortedAllWaitElapsed[i] > sortedAllWaitElapsed[j]
	})

	maxValue := sortedAllWaitElapsed[0]
	minValue := sortedAllWaitElapsed[len(sortedAllWaitElapsed)-1]

	for curr := range allWaitElapsed {
		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(curr-minValue) / float64(maxValue-minValue)
		}

		red := uint8(maxRGB * fraction)
		blue := uint8(maxRGB - maxRGB*fraction)

		waitColor, err := colors.RGB(red, 0, blue) //nolint
		if err != nil {
			return errors.Wrap(err, "unable to get colour")
		}

		allWaitElapsed[curr] = waitColor.ToHEX().String()
	}

	return d.updateMetrics(msr, allWaitElapsed)
}

func (d *DOTDrawer) updateMetrics(msr measure.Measure, allWaitElapsed map[time.Duration]string) error {
	for name, metric := range msr.AllMetrics() {
		// Skip metrics for phases that were never drawn.
		if _, ok := d.phases[name]; !ok {
			continue
		}

		xlabel := ""

		if avg := metric.AVGComputeDuration(); avg != 0 {
			xlabel = avg.String()
		}

		if total := metric.GetTotalDuration(); total > 0 {
			xlabel += ", end: " + total.String()
		}

		if xlabel != "" {
			d.store.UpdateVertex(name, func(properties *graph.VertexProperties) {
				properties.Attributes["xlabel"] = xlabel
			})
		}

		for sourceName, info := range metric.AVGWaitDuration() {
			if info.Elapsed == 0 {
				continue
			}

			err := d.graph.UpdateEdge(sourceName, name,
				graph.EdgeAttribute("label", info.Elapsed.String()),
				graph.EdgeAttribute("fontcolor", "blue"),
				graph.EdgeAttribute("color", allWaitElapsed[info.Elapsed]), //nolint
			)
			if err != nil {
				return errors.Wrap(err, "unable to update edge")
			}
		}
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func (d *DOTDrawer) dot(wrt io.Writer, options ...func(*description)) error {
	desc, err := d.generateDOT(options...)
	if err != nil {
		return fmt.Errorf("failed to generate DOT description: %w", err)
	}

	return renderDOT(wrt, desc)
}

// GraphAttribute is a functional option setting a graph level attribute on
// the rendered DOT output.
func GraphAttribute(key, value string) func(*description) {
	return func(d *description) {
		d.Attributes[key] = value
	}
}

func (d *DOTDrawer) generateDOT(options ...func(*description)) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   make(map[string]string),
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	for _, option := range options {
		option(&desc)
	}

	if d.graph.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := d.graph.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	// Vertices and edges are emitted in insertion order, so drawing the same
	// run twice produces the same file.
	order := d.store.Order()

	for _, vertex := range order {
		_, sourceProperties, err := d.graph.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		htmlAttributes := make(map[string]string)
		sourceAttributes := make(map[string]string, len(sourceProperties.Attributes))

		for k, v := range sourceProperties.Attributes {
			if k == "xlabel" {
				htmlAttributes["label"] = fmt.Sprintf(`<%+v <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, vertex, v)

				continue
			}

			sourceAttributes[k] = v
		}

		stmt := statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: sourceAttributes,
			HTMLAttributes:   htmlAttributes,
		}
		desc.Statements = append(desc.Statements, stmt)

		adjacencies := adjacencyMap[vertex]

		for _, target := range order {
			edge, ok := adjacencies[target]
			if !ok {
				continue
			}

			stmt := statement{
				Source:         vertex,
				Target:         target,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			}
			desc.Statements = append(desc.Statements, stmt)
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
