// Package variables implements state cells, their merge policies, and the
// Intent type a reaction uses to propose a write that the scheduler's
// resolve phase later merges into a single committed value per tick.
package variables

import (
	"fmt"
	"sort"

	"github.com/regelum-go/regelum/value"
)

// Intent is a single reaction's proposed write to a Variable during one
// tick, tagged with the identity of its producing node so LWWPolicy can
// break ties by priority and ErrorPolicy can name the offending producers.
type Intent struct {
	Variable *Variable
	Producer string // node identifier
	Value    value.Value
}

// WritePolicy is the merge rule for a variable's collected intents. It
// also exposes the three predicates the compiler's static passes consult:
// IsMonotone, AllowsMultiwriter, HeightBound.
type WritePolicy interface {
	// Merge combines one tick's intents into the variable's new committed
	// value. Called only with len(intents) >= 1.
	Merge(intents []Intent) (value.Value, error)
	// IsMonotone reports whether repeated merges of a growing intent set
	// only ever move the committed value up the policy's own height order
	// — required for a variable to participate in a constructive SCC.
	IsMonotone() bool
	// AllowsMultiwriter reports whether more than one reaction may write
	// this variable in the same tick without it being a compile error.
	AllowsMultiwriter() bool
	// HeightBound returns the ascending-chain bound of the policy's join,
	// or (0, false) if unbounded.
	HeightBound() (int, bool)
}

// ConflictError is returned by ErrorPolicy when two or more reactions
// write the same tick.
type ConflictError struct {
	Variable  string
	Producers []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("variables: multiple writers for %q with ErrorPolicy: %v", e.Variable, e.Producers)
}

// ErrorPolicyT allows exactly one writer per tick; two or more is a
// runtime error. Declared monotone with height bound 1 (it only ever
// moves from "no intent" to "exactly one value").
type ErrorPolicyT struct{}

// ErrorPolicy constructs the single-writer policy.
func ErrorPolicy() WritePolicy { return ErrorPolicyT{} }

func (ErrorPolicyT) Merge(intents []Intent) (value.Value, error) {
	if len(intents) == 0 {
		return nil, fmt.Errorf("variables: no intents to merge")
	}
	if len(intents) > 1 {
		producers := make([]string, 0, len(intents))
		for _, it := range intents {
			producers = append(producers, it.Producer)
		}
		return nil, &ConflictError{Variable: intents[0].Variable.Name, Producers: producers}
	}
	return intents[0].Value, nil
}

func (ErrorPolicyT) IsMonotone() bool               { return true }
func (ErrorPolicyT) AllowsMultiwriter() bool        { return false }
func (ErrorPolicyT) HeightBound() (int, bool)       { return 1, true }

// SumPolicyT sums all intents. Commutative, associative, monotone, and
// explicitly multi-writer safe; it has no finite ascending-chain bound in
// general (an unbounded number of writers can keep raising the sum), so
// callers must supply a non-Zeno rank for any cycle through a sum
// variable.
type SumPolicyT struct{}

// SumPolicy constructs the commutative-sum policy.
func SumPolicy() WritePolicy { return SumPolicyT{} }

func (SumPolicyT) Merge(intents []Intent) (value.Value, error) {
	if len(intents) == 0 {
		return nil, fmt.Errorf("variables: no intents to merge")
	}
	allAbsent := true
	sum := 0.0
	isInt := true
	for _, it := range intents {
		if value.IsAbsent(it.Value) {
			continue
		}
		allAbsent = false
		switch n := it.Value.(type) {
		case int:
			sum += float64(n)
		case int64:
			sum += float64(n)
		case float64:
			sum += n
			isInt = false
		case float32:
			sum += float64(n)
			isInt = false
		default:
			return nil, fmt.Errorf("variables: SumPolicy requires numeric intents, got %T", it.Value)
		}
	}
	if allAbsent {
		return value.Absent, nil
	}
	if isInt {
		return int(sum), nil
	}
	return sum, nil
}

func (SumPolicyT) IsMonotone() bool        { return true }
func (SumPolicyT) AllowsMultiwriter() bool { return true }
func (SumPolicyT) HeightBound() (int, bool) { return 0, false }

// LWWPolicyT picks the intent whose producer has the highest priority in a
// declared order. It is not safe for constructive analysis as a
// multi-writer (the result depends on which producer fired, not on a
// monotone combination of values), so AllowsMultiwriter is false: the
// compiler flags additional writers under WriteConflictPass instead of
// silently accepting them as it does for SumPolicy.
type LWWPolicyT struct {
	priority map[string]int
}

// LWWPolicy constructs a last-writer-wins policy; order lists node
// identifiers from lowest to highest priority.
func LWWPolicy(order []string) WritePolicy {
	p := make(map[string]int, len(order))
	for i, id := range order {
		p[id] = i
	}
	return LWWPolicyT{priority: p}
}

func (l LWWPolicyT) Merge(intents []Intent) (value.Value, error) {
	if len(intents) == 0 {
		return nil, fmt.Errorf("variables: no intents to merge")
	}
	best := intents[0]
	bestPrio := l.prio(best.Producer)
	for _, it := range intents[1:] {
		if p := l.prio(it.Producer); p > bestPrio {
			best, bestPrio = it, p
		}
	}
	return best.Value, nil
}

func (l LWWPolicyT) prio(producer string) int {
	if p, ok := l.priority[producer]; ok {
		return p
	}
	return -1
}

func (LWWPolicyT) IsMonotone() bool         { return false }
func (LWWPolicyT) AllowsMultiwriter() bool  { return false }
func (LWWPolicyT) HeightBound() (int, bool) { return 0, false }

// Variable is a globally unique named state cell.
type Variable struct {
	Name   string
	Init   value.Value
	Policy WritePolicy

	// HasInit distinguishes "initialized to Absent" from "never given an
	// initial value" — InitPass in strict mode errors on the latter.
	HasInit bool

	// IsDelayBuffer marks this variable as the backing store of a lowered
	// Delay expression: its value is read at the start of a tick
	// (prefill) and written at the end (commit), and delay reads never
	// participate in the same-tick causality graph.
	IsDelayBuffer bool
}

// NewVariable constructs an initialized Variable.
func NewVariable(name string, init value.Value, policy WritePolicy) *Variable {
	return &Variable{Name: name, Init: init, Policy: policy, HasInit: true}
}

// NewUninitVariable constructs a Variable with no declared initial value
// (init is reported as Absent at read time, but HasInit stays false so
// InitPass can flag it under strict mode).
func NewUninitVariable(name string, policy WritePolicy) *Variable {
	return &Variable{Name: name, Init: value.Absent, Policy: policy, HasInit: false}
}

// SortIntents returns intents ordered by producer identifier, giving
// deterministic iteration for policies (e.g. SumPolicy) whose merge would
// otherwise depend on caller-supplied ordering.
func SortIntents(intents []Intent) []Intent {
	out := make([]Intent, len(intents))
	copy(out, intents)
	sort.Slice(out, func(i, j int) bool { return out[i].Producer < out[j].Producer })
	return out
}
