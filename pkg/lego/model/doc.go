// Package model provides the data structures shared between the lego package
// and its options.
// It defines the phases a run goes through, the reports produced by models,
// and the TrainerOption interface implemented by the measure, drawer and
// summary packages.
package model
