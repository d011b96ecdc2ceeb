package engine

// ChangeKind describes a registry mutation.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// arena owns live objects keyed by generated ids, in insertion order.
// It is mutated only from the engine goroutine.
type arena[T any] struct {
	items map[string]T
	order []string
	gen   func() (string, error)
}

func newArena[T any]() *arena[T] {
	return &arena[T]{
		items: make(map[string]T),
		gen:   newID,
	}
}

// insert stores item under a fresh id.
func (a *arena[T]) insert(item T) (string, error) {
	id, err := uniqueID(a.gen, func(id string) bool {
		_, taken := a.items[id]
		return taken
	})
	if err != nil {
		return "", err
	}
	a.items[id] = item
	a.order = append(a.order, id)
	return id, nil
}

func (a *arena[T]) get(id string) (T, bool) {
	item, ok := a.items[id]
	return item, ok
}

func (a *arena[T]) remove(id string) bool {
	if _, ok := a.items[id]; !ok {
		return false
	}
	delete(a.items, id)
	for i, cur := range a.order {
		if cur == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

// list returns items in insertion order, optionally filtered.
func (a *arena[T]) list(keep func(T) bool) []T {
	out := make([]T, 0, len(a.order))
	for _, id := range a.order {
		item := a.items[id]
		if keep == nil || keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (a *arena[T]) len() int {
	return len(a.items)
}

// RunChange is delivered to run listeners.
type RunChange struct {
	Kind ChangeKind `json:"kind"`
	Run  RunInfo    `json:"run"`
}

// ReactionChange is delivered to reaction listeners.
type ReactionChange struct {
	Kind     ChangeKind   `json:"kind"`
	Reaction ReactionInfo `json:"reaction"`
}

// RunRegistry holds every live run, queued or running.
type RunRegistry struct {
	arena     *arena[*WorkflowRun]
	listeners []func(RunChange)
}

func newRunRegistry() *RunRegistry {
	return &RunRegistry{arena: newArena[*WorkflowRun]()}
}

// Listen registers fn for every change. Listeners run on the engine goroutine.
func (r *RunRegistry) Listen(fn func(RunChange)) {
	r.listeners = append(r.listeners, fn)
}

func (r *RunRegistry) register(run *WorkflowRun) error {
	id, err := r.arena.insert(run)
	if err != nil {
		return err
	}
	run.ID = id
	r.fire(ChangeAdded, run)
	return nil
}

func (r *RunRegistry) updated(run *WorkflowRun) {
	if _, ok := r.arena.get(run.ID); ok {
		r.fire(ChangeUpdated, run)
	}
}

func (r *RunRegistry) remove(run *WorkflowRun) {
	if r.arena.remove(run.ID) {
		r.fire(ChangeRemoved, run)
	}
}

func (r *RunRegistry) fire(kind ChangeKind, run *WorkflowRun) {
	if len(r.listeners) == 0 {
		return
	}
	change := RunChange{Kind: kind, Run: run.Info()}
	for _, fn := range r.listeners {
		fn(change)
	}
}

// Get returns the run with id.
func (r *RunRegistry) Get(id string) (*WorkflowRun, bool) {
	return r.arena.get(id)
}

// All returns every live run in creation order.
func (r *RunRegistry) All() []*WorkflowRun {
	return r.arena.list(nil)
}

// ByWorkflow returns the live runs of one workflow in creation order.
func (r *RunRegistry) ByWorkflow(workflowID string) []*WorkflowRun {
	return r.arena.list(func(run *WorkflowRun) bool { return run.WorkflowID() == workflowID })
}

// Len returns the number of live runs.
func (r *RunRegistry) Len() int {
	return r.arena.len()
}

// ReactionRegistry holds every live reaction.
type ReactionRegistry struct {
	arena     *arena[*Reaction]
	listeners []func(ReactionChange)
}

func newReactionRegistry() *ReactionRegistry {
	return &ReactionRegistry{arena: newArena[*Reaction]()}
}

// Listen registers fn for every change. Listeners run on the engine goroutine.
func (r *ReactionRegistry) Listen(fn func(ReactionChange)) {
	r.listeners = append(r.listeners, fn)
}

// register stores a reaction. With overwrite, live reactions of the same
// workflow and reactor are stopped first.
func (r *ReactionRegistry) register(re *Reaction, overwrite bool) error {
	if overwrite {
		for _, old := range r.ByReactor(re.WorkflowID(), re.ReactorID()) {
			if old != re {
				old.Stop()
			}
		}
	}

	id, err := r.arena.insert(re)
	if err != nil {
		return err
	}
	re.ID = id
	r.fire(ChangeAdded, re)
	return nil
}

func (r *ReactionRegistry) updated(re *Reaction) {
	if _, ok := r.arena.get(re.ID); ok {
		r.fire(ChangeUpdated, re)
	}
}

func (r *ReactionRegistry) remove(re *Reaction) {
	if r.arena.remove(re.ID) {
		r.fire(ChangeRemoved, re)
	}
}

func (r *ReactionRegistry) fire(kind ChangeKind, re *Reaction) {
	if len(r.listeners) == 0 {
		return
	}
	change := ReactionChange{Kind: kind, Reaction: re.Info()}
	for _, fn := range r.listeners {
		fn(change)
	}
}

// Get returns the reaction with id.
func (r *ReactionRegistry) Get(id string) (*Reaction, bool) {
	return r.arena.get(id)
}

// All returns every live reaction in creation order.
func (r *ReactionRegistry) All() []*Reaction {
	return r.arena.list(nil)
}

// ByRun returns the live reactions of one run.
func (r *ReactionRegistry) ByRun(runID string) []*Reaction {
	return r.arena.list(func(re *Reaction) bool { return re.RunID() == runID })
}

// ByReactor returns the live reactions of one workflow reactor.
func (r *ReactionRegistry) ByReactor(workflowID, reactorID string) []*Reaction {
	return r.arena.list(func(re *Reaction) bool {
		return re.WorkflowID() == workflowID && re.ReactorID() == reactorID
	})
}

// Len returns the number of live reactions.
func (r *ReactionRegistry) Len() int {
	return r.arena.len()
}
