package workflow

import (
	"fmt"

	"spockctl/internal/endpoint"
	"spockctl/internal/spock"
)

// BuildError reports malformed or insufficient topology input at workflow
// construction time. It is returned before any external dispatch, so a
// failed build never leaves partial cluster state behind.
type BuildError struct {
	Operation string
	Reason    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("cannot build %s workflow: %s", e.Operation, e.Reason)
}

// builder accumulates steps, assigning contiguous 1-based sequence numbers.
type builder struct {
	op    string
	steps []Step
}

// add appends a step and returns its sequence position.
func (b *builder) add(desc string, ep endpoint.Endpoint, command string, ignorable bool) int {
	seq := len(b.steps) + 1
	b.steps = append(b.steps, Step{
		Seq:         seq,
		Description: desc,
		Endpoint:    ep,
		Command:     command,
		Ignorable:   ignorable,
	})
	return seq
}

func (b *builder) workflow() *Workflow {
	return &Workflow{Operation: b.op, Steps: b.steps}
}

// CrossWireAll wires every endpoint to every other endpoint: one node-create
// per endpoint, one subscription per ordered (provider, subscriber) pair of
// distinct endpoints (created on the subscriber), and one replication set
// per endpoint. Phase order matters; within a phase, input order is kept
// and pairs enumerate provider-major.
func CrossWireAll(endpoints []endpoint.Endpoint) (*Workflow, error) {
	if err := endpoint.Validate(endpoints); err != nil {
		return nil, &BuildError{Operation: "cross-wire", Reason: err.Error()}
	}

	b := &builder{op: "cross-wire"}

	for _, ep := range endpoints {
		b.add(fmt.Sprintf("Create spock node %s", ep.Name), ep,
			spock.NodeCreate(ep.Name, ep.DSN, ep.Location, ep.Country), false)
	}

	for _, provider := range endpoints {
		for _, sub := range endpoints {
			if provider.Name == sub.Name {
				continue
			}
			name := spock.SubName(provider.Name, sub.Name)
			b.add(fmt.Sprintf("Create subscription %s (%s->%s)", name, provider.Name, sub.Name),
				sub, spock.SubCreate(spock.NewSubOptions(name, provider.DSN)), false)
		}
	}

	for _, ep := range endpoints {
		name := spock.RepsetName(ep.Name)
		b.add(fmt.Sprintf("Create replication set %s for %s", name, ep.Name), ep,
			spock.RepsetCreate(name), false)
	}

	return b.workflow(), nil
}

// UncrossWireAll tears down what [CrossWireAll] built: every subscription
// pair is dropped, then every node. All steps are best-effort since
// "already absent" is an acceptable outcome during teardown.
func UncrossWireAll(endpoints []endpoint.Endpoint) (*Workflow, error) {
	if err := endpoint.Validate(endpoints); err != nil {
		return nil, &BuildError{Operation: "uncross-wire", Reason: err.Error()}
	}

	b := &builder{op: "uncross-wire"}

	for _, provider := range endpoints {
		for _, sub := range endpoints {
			if provider.Name == sub.Name {
				continue
			}
			name := spock.SubName(provider.Name, sub.Name)
			b.add(fmt.Sprintf("Drop subscription %s from %s", name, sub.Name),
				sub, spock.SubDrop(name), true)
		}
	}

	for _, ep := range endpoints {
		b.add(fmt.Sprintf("Drop node %s", ep.Name), ep, spock.NodeDrop(ep.Name), true)
	}

	return b.workflow(), nil
}

// AddNode joins newNode to a running cluster of existing endpoints.
//
// Phases, in order: create the new node; create a subscription from the
// new node on each existing endpoint; wait for the last subscription's
// apply worker; create a disabled, sync-skipped subscription back to the
// new node for each existing endpoint; create the replication slot each
// disabled subscription will use; for Source-flagged endpoints, trigger a
// sync event and wait for the new node to observe its LSN; finally poll
// server-side until replication lag from every existing endpoint drops
// under the threshold.
func AddNode(existing []endpoint.Endpoint, newNode endpoint.Endpoint) (*Workflow, error) {
	if err := endpoint.Validate(existing); err != nil {
		return nil, &BuildError{Operation: "add-node", Reason: err.Error()}
	}
	if newNode.Name == "" {
		return nil, &BuildError{Operation: "add-node", Reason: "no new endpoint designated"}
	}

	b := &builder{op: "add-node"}

	b.add(fmt.Sprintf("Create node %s in the cluster", newNode.Name), newNode,
		spock.NodeCreate(newNode.Name, newNode.DSN, newNode.Location, newNode.Country), false)

	// Subscriptions from the new node to each existing endpoint. The
	// apply-worker wait references the last one's captured subscription id.
	lastSub := 0
	for _, ep := range existing {
		name := spock.SubName(newNode.Name, ep.Name)
		lastSub = b.add(fmt.Sprintf("Create a subscription (%s)", name), ep,
			spock.SubCreate(spock.NewSubOptions(name, newNode.DSN)), false)
	}

	lastExisting := existing[len(existing)-1]
	b.add("Wait for the apply worker", lastExisting,
		spock.WaitForApplyWorker(fmt.Sprintf("$%d", lastSub), spock.ApplyWorkerTimeout), true)

	for _, ep := range existing {
		name := spock.SubName(ep.Name, newNode.Name)
		opts := spock.SubOptions{Name: name, ProviderDSN: ep.DSN}
		b.add(fmt.Sprintf("Create subscription (%s) [disabled]", name), newNode,
			spock.SubCreate(opts), false)
	}

	for _, ep := range existing {
		slot := spock.SlotName(newNode.Database(), ep.Name, newNode.Name)
		b.add(fmt.Sprintf("Create replication slot %s", slot), newNode,
			spock.CreateReplicationSlot(slot), false)
	}

	for _, ep := range existing {
		if !ep.Source {
			continue
		}
		trigger := b.add(fmt.Sprintf("Trigger a synchronization event on %s", ep.Name), ep,
			spock.SyncEvent(), false)
		b.add(fmt.Sprintf("Wait for the synchronization event triggered by %s to complete", ep.Name),
			newNode,
			spock.WaitForSyncEvent(ep.Name, fmt.Sprintf("$%d", trigger), spock.SyncEventTimeout),
			true)
	}

	origins := make([]string, len(existing))
	for i, ep := range existing {
		origins[i] = ep.Name
	}
	b.add("Check the replication lags between nodes", newNode,
		spock.LagCheck(origins, newNode.Name, spock.LagThresholdSeconds), false)

	return b.workflow(), nil
}

// RemoveNode drops every subscription between target and each existing
// endpoint in both directions, then drops the target node. Every step is
// best-effort so a partially wired node can still be torn down.
func RemoveNode(existing []endpoint.Endpoint, target endpoint.Endpoint) (*Workflow, error) {
	if err := endpoint.Validate(existing); err != nil {
		return nil, &BuildError{Operation: "remove-node", Reason: err.Error()}
	}
	if target.Name == "" {
		return nil, &BuildError{Operation: "remove-node", Reason: "no target endpoint designated"}
	}

	b := &builder{op: "remove-node"}

	for _, ep := range existing {
		name := spock.SubName(ep.Name, target.Name)
		b.add(fmt.Sprintf("Drop subscription (%s)", name), target, spock.SubDrop(name), true)
	}
	for _, ep := range existing {
		name := spock.SubName(target.Name, ep.Name)
		b.add(fmt.Sprintf("Drop subscription (%s)", name), ep, spock.SubDrop(name), true)
	}
	b.add(fmt.Sprintf("Drop node %s", target.Name), target, spock.NodeDrop(target.Name), true)

	return b.workflow(), nil
}

// MarkAllIgnorable flags every step in w best-effort. The cluster commands
// use it for the --ignore-errors toggle on destructive operations.
func MarkAllIgnorable(w *Workflow) {
	for i := range w.Steps {
		w.Steps[i].Ignorable = true
	}
}
