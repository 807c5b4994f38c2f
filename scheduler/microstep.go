package scheduler

import (
	"github.com/regelum-go/regelum/internal/rerrors"
	"github.com/regelum-go/regelum/value"
	"github.com/regelum-go/regelum/variables"
)

// runMicrostep drives one schedule block that forms an instant-dependency
// cycle to a fixed point. It maintains a working copy of the member
// nodes' variables (seeded from the committed store) and a running
// snapshot of their output ports (rt.portState, shared with the rest of
// the tick), re-running every member node once per iteration until
// neither changes. The last iteration's intents are returned for the
// tick's global resolve phase; intermediate iterations only feed the
// working copy used for convergence, never the committed store directly.
func (rt *Runtime) runMicrostep(correlationID string, block Block) ([]variables.Intent, error) {
	members := block.Members
	working := make(map[string]value.Value)
	for _, id := range members {
		for _, v := range rt.g.Nodes[id].Vars {
			if _, seen := working[v.Name]; seen {
				continue
			}
			if cv, ok := rt.committed[v.Name]; ok {
				working[v.Name] = cv
			} else {
				working[v.Name] = v.Init
			}
		}
	}

	limit := microstepLimit(rt.g, members)
	rt.log.SCCEntered(correlationID, members, limit)

	var lastIntents []variables.Intent
	prevPorts := rt.snapshotMemberPorts(members)

	for iter := 1; iter <= limit; iter++ {
		var iterIntents []variables.Intent
		for _, id := range members {
			c := &nodeCtx{rt: rt, nodeID: id, vars: working, intents: &iterIntents}
			if err := rt.step(id, c); err != nil {
				return nil, err
			}
		}

		updates, err := resolveStep(iterIntents)
		if err != nil {
			return nil, err
		}
		varsChanged := false
		for name, v := range updates {
			if old, ok := working[name]; !ok || !value.Equal(old, v) {
				varsChanged = true
			}
			working[name] = v
		}

		curPorts := rt.snapshotMemberPorts(members)
		portsChanged := !portsEqual(prevPorts, curPorts)
		prevPorts = curPorts
		lastIntents = iterIntents

		if !varsChanged && !portsChanged {
			rt.log.SCCConverged(correlationID, members, iter)
			return lastIntents, nil
		}
	}

	rt.log.ZenoGuardTripped(correlationID, members, limit)
	return nil, &rerrors.ZenoRuntimeError{Members: members, Limit: limit}
}

// snapshotMemberPorts copies the current port-state entries for every
// output port owned by members, for the microstep loop's change-detection.
func (rt *Runtime) snapshotMemberPorts(members []string) map[string]value.Value {
	out := make(map[string]value.Value)
	for _, id := range members {
		for pname := range rt.g.Nodes[id].Outputs {
			portID := id + "." + pname
			if v, ok := rt.portState[portID]; ok {
				out[portID] = v
			}
		}
	}
	return out
}

func portsEqual(a, b map[string]value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || !value.Equal(v, bv) {
			return false
		}
	}
	return true
}
