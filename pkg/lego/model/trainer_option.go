package model

import "time"

// TrainerOption defines the interface for trainer options.
type TrainerOption interface {
	// New initialises the trainer option.
	New() error

	trainerPhaseOption
	trainerReportOption
	trainerCheckpointOption

	// Finish runs after the trainer is finished.
	Finish() error
}

// trainerPhaseOption defines the interface for phase hooks at the trainer level.
type trainerPhaseOption interface {
	// PreparePhase runs before the phase is executed.
	PreparePhase(source, phase *PhaseInfo) error
	// OnBatch runs everytime the phase consumes a batch from its source.
	OnBatch(source, phase *PhaseInfo, waitDuration, computeDuration time.Duration) error
	// AfterPhase runs after the phase is executed.
	AfterPhase(phase *PhaseInfo, report Report, totalDuration time.Duration) error
}

// trainerReportOption defines the interface for report hooks at the trainer level.
type trainerReportOption interface {
	// OnReport runs everytime the trainer emits an aggregated report.
	OnReport(phase *PhaseInfo, step int64, report Report) error
}

// trainerCheckpointOption defines the interface for checkpoint hooks at the trainer level.
type trainerCheckpointOption interface {
	// AfterCheckpoint runs after a checkpoint is persisted.
	AfterCheckpoint(step int64, path string) error
}
