// Package evidence accumulates the machine-readable record of one run.
//
// A Store belongs to a single run and grows monotonically: records are
// appended, never rewritten. The CLI presenter, the status reporter, and
// automation callers all consume this structure; the core never renders it.
package evidence

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/imamik/ekstack/internal/controlplane"
)

// PhaseStatus is the terminal outcome of one phase within a run.
type PhaseStatus string

const (
	// StatusSkip means everything the phase owns already existed healthy.
	StatusSkip PhaseStatus = "skip"
	// StatusCreated means the phase created its resources and they gated healthy.
	StatusCreated PhaseStatus = "created"
	// StatusRepaired means the phase repaired a degraded resource once and it gated healthy.
	StatusRepaired PhaseStatus = "repaired"
	// StatusBlocked means a prerequisite phase's resource is absent or unhealthy.
	StatusBlocked PhaseStatus = "blocked"
	// StatusFailed means the phase itself failed with no automatic remedy.
	StatusFailed PhaseStatus = "failed"
)

// Advances reports whether the pipeline may proceed past a phase with this status.
func (s PhaseStatus) Advances() bool {
	return s == StatusSkip || s == StatusCreated || s == StatusRepaired
}

// BlockerClass separates retry-after-fixing-an-earlier-phase from
// this-phase-is-broken. Assigned at creation time, never re-derived.
type BlockerClass string

const (
	ClassDependencyUnmet BlockerClass = "dependency-unmet"
	ClassFatal           BlockerClass = "fatal"
)

// Blocker is a classified reason a phase could not complete.
type Blocker struct {
	Code        string       `json:"code"`
	Class       BlockerClass `json:"class"`
	Message     string       `json:"message"`
	// Phase names the earlier phase to fix for dependency-unmet blockers.
	Phase string `json:"phase,omitempty"`
	// Remediation is the exact next action for the operator.
	Remediation string `json:"remediation,omitempty"`
}

// DependencyUnmet builds a blocker pointing at an earlier phase.
func DependencyUnmet(code, earlierPhase, message string) Blocker {
	return Blocker{
		Code:        code,
		Class:       ClassDependencyUnmet,
		Message:     message,
		Phase:       earlierPhase,
		Remediation: "re-run after the " + earlierPhase + " phase is healthy",
	}
}

// Fatal builds a blocker with no automatic remedy.
func Fatal(code, message, remediation string) Blocker {
	return Blocker{
		Code:        code,
		Class:       ClassFatal,
		Message:     message,
		Remediation: remediation,
	}
}

// Phase is the evidence record for one phase of a run.
type Phase struct {
	Name    string      `json:"name"`
	Ordinal int         `json:"ordinal"`
	Status  PhaseStatus `json:"status"`

	Existed  bool `json:"existed"`
	Created  bool `json:"created"`
	Repaired bool `json:"repaired"`
	Ready    bool `json:"ready"`

	Observations []controlplane.ResourceObservation `json:"observations,omitempty"`
	Releases     []controlplane.ReleaseObservation  `json:"releases,omitempty"`
	Blockers     []Blocker                          `json:"blockers,omitempty"`
	Diagnostics  *controlplane.Diagnostics          `json:"diagnostics,omitempty"`

	// Reason explains a non-advancing status in one sentence.
	Reason string `json:"reason,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Observe appends a freshly fetched observation to the record.
func (p *Phase) Observe(obs controlplane.ResourceObservation) {
	p.Observations = append(p.Observations, obs)
}

// ObserveRelease appends a freshly fetched release observation to the record.
func (p *Phase) ObserveRelease(obs controlplane.ReleaseObservation) {
	p.Releases = append(p.Releases, obs)
}

// Block records a blocker and sets the phase status from its class.
func (p *Phase) Block(b Blocker) {
	p.Blockers = append(p.Blockers, b)
	if b.Class == ClassDependencyUnmet {
		p.Status = StatusBlocked
	} else {
		p.Status = StatusFailed
	}
	p.Reason = b.Message
}

// Store is the append-only evidence of a single run.
type Store struct {
	mu        sync.Mutex
	startedAt time.Time
	phases    []*Phase
}

// NewStore creates an empty evidence store for one run.
func NewStore() *Store {
	return &Store{startedAt: time.Now()}
}

// Begin opens the record for a phase and returns it for the phase to fill.
// The record is owned by the running phase until Finish is called.
func (s *Store) Begin(name string) *Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Phase{
		Name:      name,
		Ordinal:   len(s.phases) + 1,
		StartedAt: time.Now(),
	}
	s.phases = append(s.phases, p)
	return p
}

// Finish stamps the record's end time.
func (s *Store) Finish(p *Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.FinishedAt = time.Now()
}

// Phases returns the recorded phases in run order.
func (s *Store) Phases() []*Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

// Summary maps phase name to its terminal status.
func (s *Store) Summary() map[string]PhaseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PhaseStatus, len(s.phases))
	for _, p := range s.phases {
		out[p.Name] = p.Status
	}
	return out
}

// MarshalJSON encodes the full run record.
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(struct {
		StartedAt time.Time `json:"startedAt"`
		Phases    []*Phase  `json:"phases"`
	}{s.startedAt, s.phases})
}
