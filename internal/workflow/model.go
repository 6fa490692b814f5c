// Package workflow implements the workflow graph model and the engine that
// interprets it: node and edge types, registration-time invariant
// validation, and execution of the per-node-kind state machine (START,
// TASK, CONDITION, LOOP, PARALLEL, END).
package workflow

import (
	"time"

	"agentflow/internal/errs"
)

// NodeKind is the execution semantics of a Node.
type NodeKind string

const (
	NodeStart     NodeKind = "START"
	NodeEnd       NodeKind = "END"
	NodeTask      NodeKind = "TASK"
	NodeCondition NodeKind = "CONDITION"
	NodeLoop      NodeKind = "LOOP"
	NodeParallel  NodeKind = "PARALLEL"
)

// NodeStatus is a node's position in its execution state machine:
// PENDING -> RUNNING -> {COMPLETED | FAILED | SKIPPED}. No state may
// revisit RUNNING.
type NodeStatus string

const (
	StatusPending   NodeStatus = "PENDING"
	StatusRunning   NodeStatus = "RUNNING"
	StatusCompleted NodeStatus = "COMPLETED"
	StatusFailed    NodeStatus = "FAILED"
	StatusSkipped   NodeStatus = "SKIPPED"
)

// RunStatus is a workflow execution's overall status.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// Node is one vertex of a workflow graph. Kind-specific fields are only
// meaningful for their corresponding kind.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Kind NodeKind `json:"type" yaml:"type"`

	// TASK
	ToolName   string         `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	ToolParams map[string]any `json:"tool_params,omitempty" yaml:"tool_params,omitempty"`

	// CONDITION
	ConditionExpr string `json:"condition_expr,omitempty" yaml:"condition_expr,omitempty"`

	// LOOP
	LoopVar   string `json:"loop_var,omitempty" yaml:"loop_var,omitempty"`
	LoopItems string `json:"loop_items,omitempty" yaml:"loop_items,omitempty"` // expression yielding an ordered sequence

	// PARALLEL: each inner slice is one branch's ordered node-id sequence.
	ParallelBranches [][]string `json:"parallel_branches,omitempty" yaml:"parallel_branches,omitempty"`

	// execution state, reset at the start of each run
	Status      NodeStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Result      any        `json:"result,omitempty" yaml:"result,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   *time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	CompletedAt *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// Edge connects two nodes. Condition is only consulted when the source is
// a CONDITION node; an empty Condition marks the default (else) edge.
type Edge struct {
	From      string `json:"source" yaml:"source"`
	To        string `json:"target" yaml:"target"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Workflow is an immutable graph plus a mutable execution snapshot. The
// graph (Nodes, Edges) does not change after Register; Status,
// CurrentNodeID, and Variables mutate across a run.
type Workflow struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`

	Status        RunStatus      `json:"status,omitempty" yaml:"status,omitempty"`
	CurrentNodeID string         `json:"current_node_id,omitempty" yaml:"current_node_id,omitempty"`
	Variables     map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
}

func (w *Workflow) nodeByID(id string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

func (w *Workflow) outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the invariants from the data model: exactly one START,
// at least one END reachable from START, unique node ids, edges referencing
// existing nodes, CONDITION nodes with >=2 outgoing edges (at least one
// conditioned), PARALLEL branches referencing only in-graph nodes, and
// every LOOP node having a body edge, an exit edge and a back-edge from its
// body (the loop-body boundary convention described at loopEdgeBody below).
func (w *Workflow) Validate() error {
	seen := make(map[string]bool, len(w.Nodes))
	starts := 0
	for _, n := range w.Nodes {
		if seen[n.ID] {
			return errs.Newf(errs.KindValidation, "duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		if n.Kind == NodeStart {
			starts++
		}
	}
	if starts != 1 {
		return errs.Newf(errs.KindValidation, "workflow must have exactly one START node, found %d", starts)
	}

	for _, e := range w.Edges {
		if !seen[e.From] {
			return errs.Newf(errs.KindValidation, "edge references unknown source node %q", e.From)
		}
		if !seen[e.To] {
			return errs.Newf(errs.KindValidation, "edge references unknown target node %q", e.To)
		}
	}

	for _, n := range w.Nodes {
		switch n.Kind {
		case NodeCondition:
			out := w.outgoing(n.ID)
			if len(out) < 2 {
				return errs.Newf(errs.KindValidation, "condition node %q must have >=2 outgoing edges", n.ID)
			}
			hasConditioned := false
			for _, e := range out {
				if e.Condition != "" {
					hasConditioned = true
				}
			}
			if !hasConditioned {
				return errs.Newf(errs.KindValidation, "condition node %q has no conditioned edge", n.ID)
			}
		case NodeParallel:
			for _, branch := range n.ParallelBranches {
				for _, id := range branch {
					if !seen[id] {
						return errs.Newf(errs.KindValidation, "parallel node %q references unknown node %q", n.ID, id)
					}
				}
			}
		case NodeLoop:
			body, hasBody := w.loopEdge(n.ID, loopEdgeBody)
			_, hasExit := w.loopEdge(n.ID, loopEdgeExit)
			if !hasBody || !hasExit {
				return errs.Newf(errs.KindValidation, "loop node %q must have one %q and one %q outgoing edge", n.ID, loopEdgeBody, loopEdgeExit)
			}
			if _, ok := w.loopBackEdge(n.ID); !ok {
				return errs.Newf(errs.KindValidation, "loop node %q body (starting at %q) has no back-edge to the loop node", n.ID, body)
			}
		}
	}

	if !w.hasReachableEnd() {
		return errs.New(errs.KindValidation, "no END node reachable from START")
	}

	return nil
}

func (w *Workflow) hasReachableEnd() bool {
	start := ""
	for _, n := range w.Nodes {
		if n.Kind == NodeStart {
			start = n.ID
		}
	}
	if start == "" {
		return false
	}
	visited := map[string]bool{}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		if n, ok := w.nodeByID(id); ok && n.Kind == NodeEnd {
			return true
		}
		for _, e := range w.outgoing(id) {
			queue = append(queue, e.To)
		}
	}
	return false
}

// LOOP body-boundary convention: a LOOP node has exactly two outgoing
// edges distinguished by Condition — loopEdgeBody to the first node of
// the loop body, loopEdgeExit to the node executed once the loop's items
// are exhausted. At least one edge from a node of the body must point back
// to the LOOP node itself; the first such edge in edge order is the
// back-edge closing the body, and its source is the body's last node.
const (
	loopEdgeBody = "body"
	loopEdgeExit = "exit"
)

func (w *Workflow) loopEdge(loopID, condition string) (string, bool) {
	for _, e := range w.outgoing(loopID) {
		if e.Condition == condition {
			return e.To, true
		}
	}
	return "", false
}

// loopBackEdge returns the source of the first edge into loopID from a node
// reachable from the body entry without passing through the LOOP node.
func (w *Workflow) loopBackEdge(loopID string) (string, bool) {
	body, _ := w.loopEdge(loopID, loopEdgeBody)
	inBody := map[string]bool{}
	for pending := []string{body}; len(pending) > 0; {
		id := pending[0]
		pending = pending[1:]
		if id == "" || id == loopID || inBody[id] {
			continue
		}
		inBody[id] = true
		for _, e := range w.outgoing(id) {
			pending = append(pending, e.To)
		}
	}
	for _, e := range w.Edges {
		if e.To == loopID && inBody[e.From] {
			return e.From, true
		}
	}
	return "", false
}
