// Package loopguard implements the agent loop's stall/repetition detector:
// it admits, warns on, or blocks a proposed Decision based on the task's
// action history, and drives dynamic tool filtering when the model stalls.
package loopguard

import (
	"strings"

	"github.com/lingcode/agentcore/pkg/sdk"
)

// Verdict is the outcome of admitting a Decision.
type Verdict string

const (
	Admit Verdict = "admit"
	Warn  Verdict = "warn"
	Block Verdict = "block"
)

// Result carries the verdict and, for Block/Warn, a human-readable reason.
type Result struct {
	Verdict Verdict
	Reason  string
}

// ringSize is the recent-actions window used by rules 4-6.
const ringSize = 5

// Guard tracks one task's action history and evaluates admit/warn/block
// rules in the order the contract specifies — first match wins.
type Guard struct {
	ring     []string // most recent action hashes, newest last, capped at ringSize
	observed map[string]bool
	failed   map[string]bool

	pendingVerification map[string]bool // paths written, awaiting a read-back
	knownReads          map[string]bool // paths already read and not since rewritten
	searches            []string        // lowercased queries issued so far

	progress          int            // monotonic counter, bumped on write or successful command
	lastOccurrenceAt  map[string]int // hash -> progress value when it last occurred

	iteration    int
	filesRead    bool
	filesWritten bool
}

// New creates an empty Guard for a fresh task.
func New() *Guard {
	return &Guard{
		observed:            map[string]bool{},
		failed:              map[string]bool{},
		pendingVerification: map[string]bool{},
		knownReads:          map[string]bool{},
		lastOccurrenceAt:    map[string]int{},
	}
}

// Admit evaluates decision against the accumulated history and returns a
// verdict. It does not itself record the decision as having occurred —
// call RecordAdmitted after acting on an Admit/Warn verdict.
func (g *Guard) Admit(d sdk.Decision) Result {
	hash := sdk.HashForDecision(d)

	// Rule 1: previously failed identical action.
	if g.failed[hash] {
		return Result{Block, "action repeated after failure"}
	}

	// Rule 2: verification exception — reading back a file just written.
	if d.Kind == sdk.DecisionReadFile && g.pendingVerification[d.Path] {
		delete(g.pendingVerification, d.Path)
		return Result{Admit, ""}
	}

	// Rule 3: reading a file already read and not since rewritten.
	if d.Kind == sdk.DecisionReadFile && g.knownReads[d.Path] {
		return Result{Block, "content already in history"}
	}

	// Rule 4: consecutive repetition — last three actions identical.
	if len(g.ring) >= 3 {
		last3 := g.ring[len(g.ring)-3:]
		if last3[0] == hash && last3[1] == hash && last3[2] == hash {
			return Result{Block, "consecutive repetition"}
		}
	}

	// Rules 5/6: threshold exceeded in the recent ring, with/without progress.
	if count := countIn(g.ring, hash); count >= 2 {
		if g.progress == g.lastOccurrenceAt[hash] {
			return Result{Block, "no progress since repeated action"}
		}
		return Result{Warn, "repeated action, but progress detected"}
	}

	// Rule 7: repeated search — case-insensitive substring containment.
	if d.Kind == sdk.DecisionSearch {
		q := strings.ToLower(strings.TrimSpace(d.Query))
		matches := 0
		for _, prior := range g.searches {
			if strings.Contains(prior, q) || strings.Contains(q, prior) {
				matches++
			}
		}
		if matches >= 2 {
			return Result{Block, "repeated search"}
		}
	}

	return Result{Admit, ""}
}

// RecordAdmitted updates the history after a Decision was allowed to
// proceed (Admit or Warn verdict).
func (g *Guard) RecordAdmitted(d sdk.Decision) {
	hash := sdk.HashForDecision(d)

	g.lastOccurrenceAt[hash] = g.progress
	g.observed[hash] = true
	g.ring = append(g.ring, hash)
	if len(g.ring) > ringSize {
		g.ring = g.ring[len(g.ring)-ringSize:]
	}

	switch d.Kind {
	case sdk.DecisionWriteFile:
		g.filesWritten = true
		g.pendingVerification[d.Path] = true
		delete(g.knownReads, d.Path)
		g.progress++
	case sdk.DecisionReadFile:
		g.filesRead = true
		g.knownReads[d.Path] = true
	case sdk.DecisionSearch:
		g.searches = append(g.searches, strings.ToLower(strings.TrimSpace(d.Query)))
	}
}

// RecordFailure marks an action's hash as failed, so future identical
// attempts are blocked by rule 1.
func (g *Guard) RecordFailure(d sdk.Decision) {
	g.failed[sdk.HashForDecision(d)] = true
}

// RecordSuccessfulCommand marks a terminal command's success as progress,
// same as a write, for rules 5/6.
func (g *Guard) RecordSuccessfulCommand() {
	g.progress++
}

// AdvanceIteration increments the iteration counter used by tool-filtering
// decisions. Call once per agent loop iteration.
func (g *Guard) AdvanceIteration() {
	g.iteration++
}

// ToolFilter describes how the next prompt's tool list should be adjusted.
type ToolFilter struct {
	RemoveReadSearch bool
	ForceWriteFile   bool
}

// Filter computes the dynamic tool-filtering decision: after iteration 3
// with reads but no writes on a modification task, strip read/search tools;
// at iteration 8 with still no writes, force write_file.
func (g *Guard) Filter(taskRequiresModification bool) ToolFilter {
	if !taskRequiresModification || g.filesWritten {
		return ToolFilter{}
	}
	var f ToolFilter
	if g.iteration > 3 && g.filesRead {
		f.RemoveReadSearch = true
	}
	if g.iteration >= 8 {
		f.ForceWriteFile = true
	}
	return f
}

func countIn(ring []string, hash string) int {
	n := 0
	for _, h := range ring {
		if h == hash {
			n++
		}
	}
	return n
}
