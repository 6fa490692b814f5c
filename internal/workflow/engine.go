package workflow

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"agentflow/internal/errs"
	"agentflow/internal/telemetry"
)

// ToolInvoker dispatches a named tool call with its arguments. TASK nodes
// and PARALLEL branches execute through this seam so the engine never
// depends on a concrete tool implementation.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// maxSteps bounds how many nodes a single execution may visit, guarding
// against a graph whose LOOP back-edge never reaches its exit condition.
const maxSteps = 10000

// Engine registers workflow definitions and executes them. A registered
// Workflow's graph (Nodes, Edges) is never mutated by execution; each
// Execute call runs against a private copy of the execution-state fields.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	tools     ToolInvoker
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	now func() time.Time
}

// NewEngine constructs an Engine. tools resolves TASK/PARALLEL tool calls.
func NewEngine(tools ToolInvoker, logger telemetry.Logger, metrics telemetry.Metrics) *Engine {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Engine{
		workflows: make(map[string]*Workflow),
		tools:     tools,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Register validates wf and adds it to the registry. Registering a second
// workflow under an id already present is a Conflict — this implementation
// deliberately rejects duplicate registration rather than silently
// overwriting the previous definition (see the redesign decision recorded
// alongside this package).
func (e *Engine) Register(wf *Workflow) error {
	if wf.ID == "" {
		return errs.New(errs.KindValidation, "workflow id is required")
	}
	if err := wf.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.workflows[wf.ID]; exists {
		return errs.Newf(errs.KindConflict, "workflow %q is already registered", wf.ID)
	}
	wf.Status = RunPending
	e.workflows[wf.ID] = wf
	e.logger.Info(context.Background(), "workflow registered", "workflow_id", wf.ID, "name", wf.Name)
	return nil
}

// Get returns the registered workflow by id.
func (e *Engine) Get(id string) (*Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[id]
	return wf, ok
}

// List returns every registered workflow, ordered by id for deterministic
// output.
func (e *Engine) List() []*Workflow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Workflow, 0, len(e.workflows))
	for _, wf := range e.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Search returns registered workflows whose name or description contains
// keyword (case-insensitive substring match; only ASCII letters are
// case-folded).
func (e *Engine) Search(keyword string) []*Workflow {
	all := e.List()
	if keyword == "" {
		return all
	}
	var out []*Workflow
	for _, wf := range all {
		if containsFold(wf.Name, keyword) || containsFold(wf.Description, keyword) {
			out = append(out, wf)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	hl, nl := []rune(haystack), []rune(needle)
	toLower := func(rs []rune) []rune {
		out := make([]rune, len(rs))
		for i, r := range rs {
			if r >= 'A' && r <= 'Z' {
				r += 'a' - 'A'
			}
			out[i] = r
		}
		return out
	}
	hl, nl = toLower(hl), toLower(nl)
	if len(nl) == 0 {
		return true
	}
	for i := 0; i+len(nl) <= len(hl); i++ {
		match := true
		for j := range nl {
			if hl[i+j] != nl[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// run is a private, mutable execution of a registered workflow's graph.
// Running the same workflow id concurrently is safe: each Execute deep
// copies Nodes/Variables into a fresh run before touching any state.
type run struct {
	wf    *Workflow
	nodes map[string]*Node
}

// Execute runs workflowID's graph to completion (an END node) or until ctx
// is cancelled/times out or maxSteps is exceeded. initialVars seeds the
// run's variable namespace; the workflow's own id/name/version/description
// are untouched. The returned *Workflow is a private execution snapshot,
// not the registered definition.
func (e *Engine) Execute(ctx context.Context, workflowID string, initialVars map[string]any) (*Workflow, error) {
	e.mu.RLock()
	def, ok := e.workflows[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "workflow %q not found", workflowID)
	}

	r := &run{wf: cloneWorkflow(def), nodes: map[string]*Node{}}
	for i := range r.wf.Nodes {
		r.nodes[r.wf.Nodes[i].ID] = &r.wf.Nodes[i]
	}
	r.wf.Variables = map[string]any{}
	for k, v := range initialVars {
		r.wf.Variables[k] = v
	}

	started := e.now()
	r.wf.Status = RunRunning
	r.wf.StartedAt = &started

	startID := ""
	for _, n := range r.wf.Nodes {
		if n.Kind == NodeStart {
			startID = n.ID
		}
	}

	err := e.runFrom(ctx, r, startID)

	completed := e.now()
	r.wf.CompletedAt = &completed
	if err != nil {
		r.wf.Status = RunFailed
		r.wf.FailureReason = err.Error()
		e.metrics.IncCounter("workflow.failed", 1, "workflow_id", workflowID)
		return r.wf, err
	}
	r.wf.Status = RunCompleted
	e.metrics.IncCounter("workflow.completed", 1, "workflow_id", workflowID)
	return r.wf, nil
}

func (e *Engine) runFrom(ctx context.Context, r *run, nodeID string) error {
	steps := 0
	current := nodeID
	for current != "" {
		steps++
		if steps > maxSteps {
			return errs.Newf(errs.KindInternal, "workflow exceeded %d steps, likely non-terminating loop", maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.KindTimeout, "workflow execution interrupted", err)
		}

		node, ok := r.nodes[current]
		if !ok {
			return errs.Newf(errs.KindInternal, "unknown node %q", current)
		}
		r.wf.CurrentNodeID = current

		next, err := e.step(ctx, r, node)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// step executes one node and returns the id of the next node to run, or
// "" when execution has reached an END node.
func (e *Engine) step(ctx context.Context, r *run, node *Node) (string, error) {
	now := e.now()
	node.StartedAt = &now
	node.Status = StatusRunning

	switch node.Kind {
	case NodeStart:
		node.Status = StatusCompleted
		return e.firstOutgoing(r, node.ID)

	case NodeEnd:
		node.Status = StatusCompleted
		completed := e.now()
		node.CompletedAt = &completed
		return "", nil

	case NodeTask:
		params := renderParams(node.ToolParams, r.wf.Variables)
		result, err := e.invokeTool(ctx, node.ToolName, params)
		completed := e.now()
		node.CompletedAt = &completed
		if err != nil {
			node.Status = StatusFailed
			node.Error = err.Error()
			return "", errs.Wrapf(errs.KindUpstream, err, "task node %q (tool %q) failed", node.ID, node.ToolName)
		}
		node.Status = StatusCompleted
		node.Result = result
		r.wf.Variables[node.ID] = result
		return e.firstOutgoing(r, node.ID)

	case NodeCondition:
		next, err := e.resolveCondition(r, node)
		if err != nil {
			node.Status = StatusFailed
			node.Error = err.Error()
			return "", err
		}
		node.Status = StatusCompleted
		return next, nil

	case NodeLoop:
		return e.runLoop(ctx, r, node)

	case NodeParallel:
		if err := e.runParallel(ctx, r, node); err != nil {
			node.Status = StatusFailed
			node.Error = err.Error()
			return "", err
		}
		node.Status = StatusCompleted
		return e.firstOutgoing(r, node.ID)

	default:
		return "", errs.Newf(errs.KindValidation, "unknown node kind %q", node.Kind)
	}
}

func (e *Engine) invokeTool(ctx context.Context, name string, params map[string]any) (any, error) {
	if e.tools == nil {
		return nil, errs.Newf(errs.KindInternal, "no tool invoker configured, cannot invoke %q", name)
	}
	return e.tools.Invoke(ctx, name, params)
}

// firstOutgoing returns the target of the node's first outgoing edge in
// edge order, ignoring any Condition, or "" when the node has no outgoing
// edge. Used for node kinds (START, TASK, PARALLEL) whose successor is
// unambiguous.
func (e *Engine) firstOutgoing(r *run, nodeID string) (string, error) {
	out := r.wf.outgoing(nodeID)
	if len(out) == 0 {
		return "", nil
	}
	return out[0].To, nil
}

// resolveCondition evaluates each conditioned outgoing edge in
// registration order and takes the first whose expression is true; the
// single edge with an empty Condition is the default (else) branch, tried
// last — this is the tie-break decision recorded for this engine.
func (e *Engine) resolveCondition(r *run, node *Node) (string, error) {
	out := r.wf.outgoing(node.ID)
	var fallback string
	hasFallback := false
	for _, edge := range out {
		if edge.Condition == "" {
			fallback, hasFallback = edge.To, true
			continue
		}
		ok, err := evalBool(edge.Condition, r.wf.Variables)
		if err != nil {
			return "", errs.Wrapf(errs.KindValidation, err, "condition node %q", node.ID)
		}
		if ok {
			return edge.To, nil
		}
	}
	if hasFallback {
		return fallback, nil
	}
	return "", errs.Newf(errs.KindValidation, "condition node %q: no branch matched and no default edge", node.ID)
}

// runLoop evaluates LoopItems once, then for each item binds LoopVar in
// Variables and runs the body subgraph (from the body-entry node up to,
// but not including, the back-edge into the loop node) before continuing
// with the next item. Once items are exhausted it follows the exit edge.
func (e *Engine) runLoop(ctx context.Context, r *run, node *Node) (string, error) {
	itemsVal, err := evalExpr(node.LoopItems, r.wf.Variables)
	if err != nil {
		return "", errs.Wrapf(errs.KindValidation, err, "loop node %q items expression", node.ID)
	}
	items, ok := itemsVal.([]any)
	if !ok {
		return "", errs.Newf(errs.KindValidation, "loop node %q items expression must yield a list", node.ID)
	}

	bodyStart, _ := r.wf.loopEdge(node.ID, loopEdgeBody)
	backFrom, _ := r.wf.loopBackEdge(node.ID)
	exit, _ := r.wf.loopEdge(node.ID, loopEdgeExit)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return "", errs.Wrap(errs.KindTimeout, "loop interrupted", err)
		}
		if node.LoopVar != "" {
			r.wf.Variables[node.LoopVar] = item
		}
		if err := e.runBody(ctx, r, bodyStart, backFrom); err != nil {
			return "", err
		}
	}

	node.Status = StatusCompleted
	return exit, nil
}

// runBody executes the node chain starting at nodeID, stopping once a node
// whose successor would be backEdgeSource (i.e. nodeID == backEdgeSource
// itself, after it runs) is reached: the body is everything from bodyStart
// through backEdgeSource inclusive.
func (e *Engine) runBody(ctx context.Context, r *run, bodyStart, backEdgeSource string) error {
	current := bodyStart
	steps := 0
	for current != "" {
		steps++
		if steps > maxSteps {
			return errs.New(errs.KindInternal, "loop body exceeded step budget")
		}
		node, ok := r.nodes[current]
		if !ok {
			return errs.Newf(errs.KindInternal, "unknown node %q in loop body", current)
		}
		isLast := current == backEdgeSource
		next, err := e.step(ctx, r, node)
		if err != nil {
			return err
		}
		if isLast {
			return nil
		}
		current = next
	}
	return nil
}

// runParallel runs each branch's node sequence concurrently; a branch is
// an ordered list of node ids executed independently of the main edge
// graph. The slowest branch determines wall-clock time; the first error
// from any branch is returned once all branches have finished.
//
// Each branch gets its own clone of the variables mapping so concurrent
// branches never read or write the same map (a bare shared map would
// race: one goroutine's node.ID write colliding with another's tool-param
// render). Once every branch has finished, wg.Wait() is the
// synchronization barrier that makes the subsequent merge safe without a
// separate lock: branch outputs are folded back into r.wf.Variables in
// branch-index order, so a key multiple branches wrote resolves to the
// highest-indexed branch's value. A key whose value in a branch's copy is
// still equal to its pre-fork value is not folded back from that branch.
func (e *Engine) runParallel(ctx context.Context, r *run, node *Node) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(node.ParallelBranches))
	branchVars := make([]map[string]any, len(node.ParallelBranches))

	for i, branch := range node.ParallelBranches {
		i, branch := i, branch
		branchVars[i] = cloneVariables(r.wf.Variables)
		branchRun := &run{
			wf:    &Workflow{Edges: r.wf.Edges, Variables: branchVars[i]},
			nodes: r.nodes,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, nodeID := range branch {
				n, ok := r.nodes[nodeID]
				if !ok {
					errCh <- errs.Newf(errs.KindInternal, "unknown node %q in parallel branch", nodeID)
					return
				}
				if _, err := e.step(ctx, branchRun, n); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}

	base := cloneVariables(r.wf.Variables)
	for _, vars := range branchVars {
		for k, v := range vars {
			if old, existed := base[k]; existed && reflect.DeepEqual(old, v) {
				continue
			}
			r.wf.Variables[k] = v
		}
	}
	return nil
}

// cloneVariables returns a shallow top-level copy of vars, isolating the
// mapping itself (not its values) so a branch's writes never touch the
// caller's map.
func cloneVariables(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// renderParams substitutes "{var}" placeholders in string values with the
// stringified value of vars[var], leaving non-string and unmatched values
// untouched. This is plain templating, not expression evaluation — tool
// arguments are data, not code.
func renderParams(params map[string]any, vars map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = substitute(s, vars)
			continue
		}
		out[k] = v
	}
	return out
}

func substitute(s string, vars map[string]any) string {
	out := make([]rune, 0, len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '{' {
			j := i + 1
			for j < len(runes) && runes[j] != '}' {
				j++
			}
			if j < len(runes) {
				name := string(runes[i+1 : j])
				if v, ok := vars[name]; ok {
					out = append(out, []rune(fmt.Sprintf("%v", v))...)
					i = j
					continue
				}
			}
		}
		out = append(out, runes[i])
	}
	return string(out)
}

func cloneWorkflow(wf *Workflow) *Workflow {
	clone := *wf
	clone.Nodes = make([]Node, len(wf.Nodes))
	copy(clone.Nodes, wf.Nodes)
	clone.Edges = make([]Edge, len(wf.Edges))
	copy(clone.Edges, wf.Edges)
	return &clone
}
