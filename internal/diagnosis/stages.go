package diagnosis

import (
	"context"
	"fmt"
)

// Stage is one step of a diagnostic run.
type Stage string

const (
	StageCollectWells       Stage = "COLLECT_WELLS"
	StageAnalyzeGroups      Stage = "ANALYZE_GROUPS"
	StageRunTests           Stage = "RUN_TESTS"
	StageDetermineDiagnosis Stage = "DETERMINE_DIAGNOSIS"
	StageDone               Stage = "DONE"
)

var stageOrder = []Stage{
	StageCollectWells,
	StageAnalyzeGroups,
	StageRunTests,
	StageDetermineDiagnosis,
	StageDone,
}

// StageObserver is notified as a run enters each stage.
type StageObserver func(ctx context.Context, stage Stage)

// stageMachine enforces the fixed stage order of a run.
type stageMachine struct {
	visited  []string
	observer StageObserver
}

func (m *stageMachine) enter(ctx context.Context, s Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next := len(m.visited)
	if next >= len(stageOrder) || stageOrder[next] != s {
		return fmt.Errorf("illegal stage transition to %s after %v", s, m.visited)
	}
	m.visited = append(m.visited, string(s))
	if m.observer != nil {
		m.observer(ctx, s)
	}
	return nil
}
