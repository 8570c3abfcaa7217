package flow

import (
	"context"
	"fmt"
)

// State is the value bag handed from stage to stage.
type State map[string]any

// StageFunc executes one stage and returns the updated state.
type StageFunc func(context.Context, State) (State, error)

// GateFunc inspects the state and returns a route label.
type GateFunc func(context.Context, State) (string, error)

// Stage is a single step in a flow. A stage either runs work (Run set,
// Next names the following stage) or routes (Gate set, Routes maps gate
// labels to stage names), never both.
type Stage struct {
	Name   string
	Run    StageFunc
	Gate   GateFunc
	Next   string            // for run stages; empty ends the flow
	Routes map[string]string // for gates: gate label -> next stage
}

// Flow is a chain of stages with condition gates. Execution is strictly
// sequential; a per-stage visit bound stops runaway routing loops.
type Flow struct {
	stages    map[string]*Stage
	start     string
	maxVisits int
}

// NewFlow creates an empty flow.
func NewFlow() *Flow {
	return &Flow{
		stages:    make(map[string]*Stage),
		maxVisits: 10,
	}
}

func (f *Flow) validateStage(stage *Stage) {
	if stage.Name == "" {
		panic("stage name cannot be empty")
	}

	if stage.Run == nil && stage.Gate == nil {
		panic(fmt.Sprintf("stage %s must have a Run or Gate function", stage.Name))
	}
	if stage.Run != nil && stage.Gate != nil {
		panic(fmt.Sprintf("stage %s cannot have both Run and Gate functions", stage.Name))
	}
}

// AddStage adds a stage to the flow. The first stage added becomes the
// start stage unless SetStart overrides it.
func (f *Flow) AddStage(stage *Stage) {
	if _, exists := f.stages[stage.Name]; exists {
		panic(fmt.Sprintf("stage %s already exists", stage.Name))
	}

	f.validateStage(stage)

	f.stages[stage.Name] = stage

	if f.start == "" {
		f.start = stage.Name
	}
}

// SetStart sets the start stage.
func (f *Flow) SetStart(name string) {
	if _, exists := f.stages[name]; !exists {
		panic(fmt.Sprintf("stage %s not found", name))
	}
	f.start = name
}

// SetMaxVisits sets the maximum number of visits to a single stage.
func (f *Flow) SetMaxVisits(maxVisits int) {
	f.maxVisits = maxVisits
}

// GetStage returns a stage by name.
func (f *Flow) GetStage(name string) (*Stage, error) {
	stage, exists := f.stages[name]
	if !exists {
		return nil, fmt.Errorf("stage %s not found", name)
	}
	return stage, nil
}

// Execute runs the flow from the start stage. Run stages hand their state
// to the stage named by Next; gates pick the next stage from their route
// table. Execution ends when a run stage has an empty Next. Revisits are
// legal (an improvement loop re-enters its checking stage) up to maxVisits
// per stage.
func (f *Flow) Execute(ctx context.Context, initial State) (State, error) {
	if f.start == "" {
		return nil, fmt.Errorf("start stage not set")
	}

	state := initial
	if state == nil {
		state = make(State)
	}

	visited := make(map[string]int)
	current := f.start

	for current != "" {
		stage, exists := f.stages[current]
		if !exists {
			return nil, fmt.Errorf("stage %s not found", current)
		}

		visited[current]++
		if visited[current] > f.maxVisits {
			return nil, fmt.Errorf("loop detected at stage %s", current)
		}

		if stage.Gate != nil {
			label, err := stage.Gate(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("error evaluating gate at stage %s: %w", current, err)
			}
			next, ok := stage.Routes[label]
			if !ok {
				return nil, fmt.Errorf("no route %q from stage %s", label, current)
			}
			current = next
			continue
		}

		var err error
		state, err = stage.Run(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("error executing stage %s: %w", current, err)
		}
		current = stage.Next
	}

	return state, nil
}

// Builder helps build flows fluently.
type Builder struct {
	flow *Flow
}

// NewBuilder creates a new flow builder.
func NewBuilder() *Builder {
	return &Builder{
		flow: NewFlow(),
	}
}

// AddStage adds a run stage; next names the stage that follows it.
func (b *Builder) AddStage(name string, run StageFunc, next string) *Builder {
	b.flow.AddStage(&Stage{
		Name: name,
		Run:  run,
		Next: next,
	})
	return b
}

// AddGate adds a routing stage.
func (b *Builder) AddGate(name string, gate GateFunc, routes map[string]string) *Builder {
	b.flow.AddStage(&Stage{
		Name:   name,
		Gate:   gate,
		Routes: routes,
	})
	return b
}

// SetStart sets the start stage.
func (b *Builder) SetStart(name string) *Builder {
	b.flow.SetStart(name)
	return b
}

// SetMaxVisits sets the maximum number of visits to a single stage.
func (b *Builder) SetMaxVisits(maxVisits int) *Builder {
	b.flow.SetMaxVisits(maxVisits)
	return b
}

// Build returns the assembled flow.
func (b *Builder) Build() *Flow {
	return b.flow
}
