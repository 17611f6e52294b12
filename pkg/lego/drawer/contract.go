package drawer

import (
	"time"

	"github.com/askiada/go-lego/pkg/lego/measure"
)

// Drawer is an interface that defines the methods for drawing a run.
type Drawer interface {
	// AddPhase adds a phase to the run drawer.
	AddPhase(phaseName string) error
	// AddLink adds a link between a source phase and the phase consuming it.
	AddLink(sourceName, phaseName string) error
	// Draw creates a file with the run graph.
	Draw() error
	// SetTotalTime sets the total run time on the phase.
	SetTotalTime(phaseName string, startTime time.Time) error
	// AddMeasure adds a measure to the run drawer.
	AddMeasure(measure measure.Measure) error
}
