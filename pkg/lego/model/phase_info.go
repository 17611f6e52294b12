package model

type PhaseType string

const (
	SourcePhaseType    PhaseType = "source"
	TrainPhaseType     PhaseType = "train"
	EvaluatePhaseType  PhaseType = "evaluate"
	VisualizePhaseType PhaseType = "visualize"
)

type PhaseInfo struct {
	Type       PhaseType
	Name       string
	Split      string
	Concurrent int
	BufferSize int
}

var (
	StartPhase = &PhaseInfo{Name: "start"}
	EndPhase   = &PhaseInfo{Name: "end"}
)
