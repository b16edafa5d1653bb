package model

import (
	"fmt"
	"time"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// TransitionAction is what a matching transition does with the flow.
type TransitionAction string

const (
	// ActionNext continues at the element named by Transition.To.
	ActionNext TransitionAction = "next"
	// ActionEnd ends the job as COMPLETED.
	ActionEnd TransitionAction = "end"
	// ActionFail ends the job as FAILED.
	ActionFail TransitionAction = "fail"
	// ActionStop ends the job as STOPPED; a restart resumes at Transition.RestartAt.
	ActionStop TransitionAction = "stop"
)

// CheckpointPolicyItem and CheckpointPolicyCustom select how chunk boundaries are decided.
const (
	CheckpointPolicyItem   = "item"
	CheckpointPolicyCustom = "custom"
)

// DefaultItemCount is the chunk size used when none is configured.
const DefaultItemCount = 10

// Transition maps an exit status pattern to a flow action. On accepts '*' and '?' wildcards.
type Transition struct {
	On         string           `json:"on"`
	Action     TransitionAction `json:"action"`
	To         string           `json:"to,omitempty"`
	ExitStatus string           `json:"exit_status,omitempty"`
	RestartAt  string           `json:"restart_at,omitempty"`
}

// ExceptionFilter lists error classes included in and excluded from a policy.
type ExceptionFilter struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// IsEmpty reports whether the filter matches nothing.
func (f ExceptionFilter) IsEmpty() bool {
	return len(f.Include) == 0
}

// ChunkDefinition configures a chunk-oriented step.
type ChunkDefinition struct {
	ReaderRef              string          `json:"reader"`
	ProcessorRef           string          `json:"processor,omitempty"`
	WriterRef              string          `json:"writer"`
	CheckpointPolicy       string          `json:"checkpoint_policy,omitempty"`
	ItemCount              int             `json:"item_count,omitempty"`
	TimeLimit              time.Duration   `json:"time_limit,omitempty"`
	CheckpointAlgorithmRef string          `json:"checkpoint_algorithm,omitempty"`
	SkipLimit              int             `json:"skip_limit,omitempty"`
	RetryLimit             int             `json:"retry_limit,omitempty"`
	Skippable              ExceptionFilter `json:"skippable,omitempty"`
	Retryable              ExceptionFilter `json:"retryable,omitempty"`
	NoRollback             ExceptionFilter `json:"no_rollback,omitempty"`
	ExceptionMapperRef     string          `json:"exception_mapper,omitempty"`
}

// EffectiveItemCount returns ItemCount, or DefaultItemCount when it is not positive.
func (c *ChunkDefinition) EffectiveItemCount() int {
	if c.ItemCount <= 0 {
		return DefaultItemCount
	}
	return c.ItemCount
}

// PartitionPlan is the static description of how a step is partitioned.
// Properties[i] is handed to partition i.
type PartitionPlan struct {
	Partitions int                 `json:"partitions"`
	Threads    int                 `json:"threads,omitempty"`
	Override   bool                `json:"override,omitempty"`
	Properties []map[string]string `json:"properties,omitempty"`
}

// EffectiveThreads returns Threads, or the partition count when it is not positive.
func (p *PartitionPlan) EffectiveThreads() int {
	if p.Threads <= 0 {
		return p.Partitions
	}
	return p.Threads
}

// PartitionProperties returns the properties of partition index, never nil.
func (p *PartitionPlan) PartitionProperties(index int) map[string]string {
	if index < 0 || index >= len(p.Properties) || p.Properties[index] == nil {
		return map[string]string{}
	}
	return p.Properties[index]
}

// PartitionDefinition configures a partitioned step.
// A mapper, when set, produces the plan at run time instead of Plan.
type PartitionDefinition struct {
	MapperRef     string         `json:"mapper,omitempty"`
	Plan          *PartitionPlan `json:"plan,omitempty"`
	CollectorRef  string         `json:"collector,omitempty"`
	AnalyzerRef   string         `json:"analyzer,omitempty"`
	ReducerRef    string         `json:"reducer,omitempty"`
	AllowFailures bool           `json:"allow_failures,omitempty"`
}

// StepDefinition configures one step. Exactly one of Chunk and TaskletRef is set.
type StepDefinition struct {
	Name                 string               `json:"name"`
	Next                 string               `json:"next,omitempty"`
	Transitions          []Transition         `json:"transitions,omitempty"`
	Restartable          *bool                `json:"restartable,omitempty"`
	AllowStartIfComplete bool                 `json:"allow_start_if_complete,omitempty"`
	StartLimit           int                  `json:"start_limit,omitempty"`
	Properties           map[string]string    `json:"properties,omitempty"`
	Listeners            []string             `json:"listeners,omitempty"`
	Chunk                *ChunkDefinition     `json:"chunk,omitempty"`
	TaskletRef           string               `json:"tasklet,omitempty"`
	Partition            *PartitionDefinition `json:"partition,omitempty"`
}

// IsRestartable returns the declared restartability, true when unset.
func (s *StepDefinition) IsRestartable() bool {
	return s.Restartable == nil || *s.Restartable
}

// FlowDefinition is a named sequence of elements.
type FlowDefinition struct {
	ID          string       `json:"id"`
	Elements    []Element    `json:"elements"`
	Next        string       `json:"next,omitempty"`
	Transitions []Transition `json:"transitions,omitempty"`
}

// SplitDefinition runs its flows concurrently.
type SplitDefinition struct {
	ID    string           `json:"id"`
	Flows []FlowDefinition `json:"flows"`
	Next  string           `json:"next,omitempty"`
}

// DecisionDefinition routes the flow using a decider artifact.
type DecisionDefinition struct {
	ID          string            `json:"id"`
	DeciderRef  string            `json:"decider"`
	Properties  map[string]string `json:"properties,omitempty"`
	Transitions []Transition      `json:"transitions,omitempty"`
}

// Element is one node of a job graph. Exactly one field is set.
type Element struct {
	Step     *StepDefinition     `json:"step,omitempty"`
	Flow     *FlowDefinition     `json:"flow,omitempty"`
	Split    *SplitDefinition    `json:"split,omitempty"`
	Decision *DecisionDefinition `json:"decision,omitempty"`
}

// ID returns the element identifier.
func (e Element) ID() string {
	switch {
	case e.Step != nil:
		return e.Step.Name
	case e.Flow != nil:
		return e.Flow.ID
	case e.Split != nil:
		return e.Split.ID
	case e.Decision != nil:
		return e.Decision.ID
	default:
		return ""
	}
}

// NextID returns the unconditional successor, if any.
func (e Element) NextID() string {
	switch {
	case e.Step != nil:
		return e.Step.Next
	case e.Flow != nil:
		return e.Flow.Next
	case e.Split != nil:
		return e.Split.Next
	default:
		return ""
	}
}

// ElementTransitions returns the conditional transitions of the element.
func (e Element) ElementTransitions() []Transition {
	switch {
	case e.Step != nil:
		return e.Step.Transitions
	case e.Flow != nil:
		return e.Flow.Transitions
	case e.Decision != nil:
		return e.Decision.Transitions
	default:
		return nil
	}
}

func (e Element) kinds() int {
	n := 0
	for _, set := range []bool{e.Step != nil, e.Flow != nil, e.Split != nil, e.Decision != nil} {
		if set {
			n++
		}
	}
	return n
}

// ContainsStep reports whether the element is, or encloses, the step named stepName.
func (e Element) ContainsStep(stepName string) bool {
	found := false
	walkElement(e, func(s *StepDefinition) bool {
		if s.Name == stepName {
			found = true
			return false
		}
		return true
	})
	return found
}

// JobDefinition is a resolved job graph.
type JobDefinition struct {
	Name        string            `json:"name"`
	Restartable *bool             `json:"restartable,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	Listeners   []string          `json:"listeners,omitempty"`
	Elements    []Element         `json:"elements"`
}

// IsRestartable returns the declared restartability, true when unset.
func (d *JobDefinition) IsRestartable() bool {
	return d.Restartable == nil || *d.Restartable
}

// Bool returns a pointer to b, for the optional flags of definitions.
func Bool(b bool) *bool { return &b }

// FindStep returns the step named name anywhere in the graph.
func (d *JobDefinition) FindStep(name string) (*StepDefinition, bool) {
	var found *StepDefinition
	d.WalkSteps(func(s *StepDefinition) bool {
		if s.Name == name {
			found = s
			return false
		}
		return true
	})
	return found, found != nil
}

// WalkSteps calls fn for every step in definition order until fn returns false.
func (d *JobDefinition) WalkSteps(fn func(*StepDefinition) bool) {
	for _, e := range d.Elements {
		if !walkElement(e, fn) {
			return
		}
	}
}

// StepNames lists every step name in definition order.
func (d *JobDefinition) StepNames() []string {
	var names []string
	d.WalkSteps(func(s *StepDefinition) bool {
		names = append(names, s.Name)
		return true
	})
	return names
}

// TopLevelElementOf returns the id of the top-level element that is or encloses the given element or step id.
func (d *JobDefinition) TopLevelElementOf(id string) (string, bool) {
	for _, e := range d.Elements {
		if e.ID() == id || containsElementID(e, id) {
			return e.ID(), true
		}
	}
	return "", false
}

func walkElement(e Element, fn func(*StepDefinition) bool) bool {
	switch {
	case e.Step != nil:
		return fn(e.Step)
	case e.Flow != nil:
		for _, child := range e.Flow.Elements {
			if !walkElement(child, fn) {
				return false
			}
		}
	case e.Split != nil:
		for i := range e.Split.Flows {
			if !walkElement(Element{Flow: &e.Split.Flows[i]}, fn) {
				return false
			}
		}
	}
	return true
}

func containsElementID(e Element, id string) bool {
	var children []Element
	switch {
	case e.Flow != nil:
		children = e.Flow.Elements
	case e.Split != nil:
		for i := range e.Split.Flows {
			children = append(children, Element{Flow: &e.Split.Flows[i]})
		}
	}
	for _, child := range children {
		if child.ID() == id || containsElementID(child, id) {
			return true
		}
	}
	return false
}

// Validate checks the graph for structural errors and returns a ValidationFailure describing the first one.
func (d *JobDefinition) Validate() error {
	if d.Name == "" {
		return exception.NewValidationError("JobDefinition", "job name is empty", nil)
	}
	if len(d.Elements) == 0 {
		return exception.NewValidationError("JobDefinition", fmt.Sprintf("job '%s' has no elements", d.Name), nil)
	}
	seen := make(map[string]bool)
	if err := validateElements(d.Name, d.Elements, seen); err != nil {
		return err
	}
	return nil
}

func validateElements(scope string, elements []Element, seen map[string]bool) error {
	siblings := make(map[string]bool, len(elements))
	for _, e := range elements {
		if e.kinds() != 1 {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("element in '%s' must define exactly one of step, flow, split or decision", scope), nil)
		}
		id := e.ID()
		if id == "" {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("element in '%s' has no id", scope), nil)
		}
		if seen[id] {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("duplicate element id '%s'", id), nil)
		}
		seen[id] = true
		siblings[id] = true
	}

	for _, e := range elements {
		id := e.ID()
		if next := e.NextID(); next != "" && !siblings[next] {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("element '%s' refers to unknown next element '%s'", id, next), nil)
		}
		for _, t := range e.ElementTransitions() {
			if err := validateTransition(id, t, siblings); err != nil {
				return err
			}
		}

		switch {
		case e.Step != nil:
			if err := validateStep(e.Step); err != nil {
				return err
			}
		case e.Flow != nil:
			if len(e.Flow.Elements) == 0 {
				return exception.NewValidationError("JobDefinition", fmt.Sprintf("flow '%s' has no elements", id), nil)
			}
			if err := validateElements(id, e.Flow.Elements, seen); err != nil {
				return err
			}
		case e.Split != nil:
			if len(e.Split.Flows) == 0 {
				return exception.NewValidationError("JobDefinition", fmt.Sprintf("split '%s' has no flows", id), nil)
			}
			flows := make([]Element, len(e.Split.Flows))
			for i := range e.Split.Flows {
				flows[i] = Element{Flow: &e.Split.Flows[i]}
			}
			// Flows of a split branch independently; their next pointers are not siblings.
			for _, f := range flows {
				if f.Flow.Next != "" {
					return exception.NewValidationError("JobDefinition", fmt.Sprintf("flow '%s' inside split '%s' must not declare next", f.ID(), id), nil)
				}
			}
			if err := validateElements(id, flows, seen); err != nil {
				return err
			}
		case e.Decision != nil:
			if e.Decision.DeciderRef == "" {
				return exception.NewValidationError("JobDefinition", fmt.Sprintf("decision '%s' has no decider", id), nil)
			}
		}
	}
	return nil
}

func validateTransition(id string, t Transition, siblings map[string]bool) error {
	if t.On == "" {
		return exception.NewValidationError("JobDefinition", fmt.Sprintf("transition of '%s' has an empty 'on' pattern", id), nil)
	}
	switch t.Action {
	case ActionNext:
		if !siblings[t.To] {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("transition of '%s' refers to unknown element '%s'", id, t.To), nil)
		}
	case ActionStop:
		if t.RestartAt != "" && !siblings[t.RestartAt] {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("stop transition of '%s' restarts at unknown element '%s'", id, t.RestartAt), nil)
		}
	case ActionEnd, ActionFail:
	default:
		return exception.NewValidationError("JobDefinition", fmt.Sprintf("transition of '%s' has unknown action '%s'", id, t.Action), nil)
	}
	return nil
}

func validateStep(s *StepDefinition) error {
	hasChunk := s.Chunk != nil
	hasTasklet := s.TaskletRef != ""
	if hasChunk == hasTasklet {
		return exception.NewValidationError("JobDefinition", fmt.Sprintf("step '%s' must define exactly one of chunk or tasklet", s.Name), nil)
	}
	if s.StartLimit < 0 {
		return exception.NewValidationError("JobDefinition", fmt.Sprintf("step '%s' has a negative start limit", s.Name), nil)
	}
	if c := s.Chunk; c != nil {
		if c.ReaderRef == "" || c.WriterRef == "" {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("chunk step '%s' requires a reader and a writer", s.Name), nil)
		}
		switch c.CheckpointPolicy {
		case "", CheckpointPolicyItem:
		case CheckpointPolicyCustom:
			if c.CheckpointAlgorithmRef == "" {
				return exception.NewValidationError("JobDefinition", fmt.Sprintf("chunk step '%s' uses a custom checkpoint policy without a checkpoint algorithm", s.Name), nil)
			}
		default:
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("chunk step '%s' has unknown checkpoint policy '%s'", s.Name, c.CheckpointPolicy), nil)
		}
		if c.TimeLimit < 0 {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("chunk step '%s' has a negative time limit", s.Name), nil)
		}
	}
	if p := s.Partition; p != nil {
		if p.MapperRef == "" {
			if p.Plan == nil || p.Plan.Partitions <= 0 {
				return exception.NewValidationError("JobDefinition", fmt.Sprintf("partitioned step '%s' has no partitions", s.Name), nil)
			}
		}
		if p.Plan != nil && len(p.Plan.Properties) > p.Plan.Partitions && p.MapperRef == "" {
			return exception.NewValidationError("JobDefinition", fmt.Sprintf("partitioned step '%s' declares properties for %d partitions but only %d partitions", s.Name, len(p.Plan.Properties), p.Plan.Partitions), nil)
		}
	}
	return nil
}
