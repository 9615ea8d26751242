// Package stats turns variant counters into a results summary: conversion
// rates, relative lift against the control, and a needs-more-data flag.
//
// The flag is a fixed minimum-sample gate (domain.NeedsMoreDataThreshold
// total participants). It is not a significance test and says nothing about
// whether an observed lift is real.
package stats

import (
	"context"
	"fmt"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
	"github.com/emiliopalmerini/lostfound-admin/internal/ports"
)

// Summarize derives the results summary for exp from its counters. Variants
// appear in declared order; variants missing from snap count as zero.
func Summarize(exp *domain.Experiment, snap domain.Snapshot) domain.ResultsSummary {
	summary := domain.ResultsSummary{
		ExperimentID: exp.ID,
		Name:         exp.Name,
		Status:       exp.Status,
		Variants:     make([]domain.VariantResult, 0, len(exp.Variants)),
		Comparisons:  []domain.Comparison{},
	}

	rates := make(map[string]float64, len(exp.Variants))
	for _, v := range exp.Variants {
		c := snap[v.Name]
		rate := domain.ConversionRate(c.Conversions, c.Participants)
		rates[v.Name] = rate
		summary.TotalParticipants += c.Participants
		summary.Variants = append(summary.Variants, domain.VariantResult{
			Name:           v.Name,
			Participants:   c.Participants,
			Conversions:    c.Conversions,
			ConversionRate: rate,
		})
	}

	if len(exp.Variants) < 2 {
		return summary
	}

	needsMoreData := domain.NeedsMoreData(summary.TotalParticipants)
	control := exp.ControlVariant()
	controlRate := rates[control.Name]
	for _, t := range exp.TreatmentVariants() {
		treatmentRate := rates[t.Name]
		summary.Comparisons = append(summary.Comparisons, domain.Comparison{
			ControlVariant:          control.Name,
			TreatmentVariant:        t.Name,
			ControlConversionRate:   controlRate,
			TreatmentConversionRate: treatmentRate,
			RelativeLift:            domain.RelativeLift(controlRate, treatmentRate),
			NeedsMoreData:           needsMoreData,
		})
	}
	if len(summary.Comparisons) > 0 {
		first := summary.Comparisons[0]
		summary.Comparison = &first
	}
	return summary
}

// CounterSource is the read side of the results aggregator.
type CounterSource interface {
	Snapshot(ctx context.Context, experimentID string) (domain.Snapshot, error)
}

// Engine computes summaries on read. Nothing it produces is persisted.
type Engine struct {
	experiments ports.ExperimentRepository
	counters    CounterSource
}

func NewEngine(er ports.ExperimentRepository, counters CounterSource) *Engine {
	return &Engine{experiments: er, counters: counters}
}

func (e *Engine) Summarize(ctx context.Context, experimentID string) (*domain.ResultsSummary, error) {
	exp, err := e.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	if exp == nil {
		return nil, domain.NotFoundf("experiment %s not found", experimentID)
	}

	snap, err := e.counters.Snapshot(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	summary := Summarize(exp, snap)
	return &summary, nil
}
