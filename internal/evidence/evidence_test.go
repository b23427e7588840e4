package evidence

import (
	"encoding/json"
	"testing"

	"github.com/imamik/ekstack/internal/controlplane"
)

func TestStore_AppendOnlyOrdering(t *testing.T) {
	s := NewStore()

	a := s.Begin("network")
	a.Status = StatusCreated
	s.Finish(a)

	b := s.Begin("cluster")
	b.Status = StatusSkip
	s.Finish(b)

	phases := s.Phases()
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(phases))
	}
	if phases[0].Name != "network" || phases[0].Ordinal != 1 {
		t.Errorf("unexpected first phase: %+v", phases[0])
	}
	if phases[1].Name != "cluster" || phases[1].Ordinal != 2 {
		t.Errorf("unexpected second phase: %+v", phases[1])
	}
	if phases[0].FinishedAt.IsZero() {
		t.Error("expected finish timestamp to be set")
	}
}

func TestPhase_BlockSetsStatusFromClass(t *testing.T) {
	p := &Phase{Name: "cluster"}
	p.Block(DependencyUnmet("NETWORK_ABSENT", "network", "network stack not found"))

	if p.Status != StatusBlocked {
		t.Errorf("expected blocked, got %s", p.Status)
	}
	if p.Blockers[0].Phase != "network" {
		t.Errorf("expected blocker to name the network phase, got %q", p.Blockers[0].Phase)
	}
	if p.Blockers[0].Remediation == "" {
		t.Error("dependency blocker must carry a remediation")
	}

	p2 := &Phase{Name: "workloads"}
	p2.Block(Fatal("RELEASE_FAILED", "release api failed after repair", "helm status api -n apps"))
	if p2.Status != StatusFailed {
		t.Errorf("expected failed, got %s", p2.Status)
	}
}

func TestPhaseStatus_Advances(t *testing.T) {
	for status, want := range map[PhaseStatus]bool{
		StatusSkip:     true,
		StatusCreated:  true,
		StatusRepaired: true,
		StatusBlocked:  false,
		StatusFailed:   false,
	} {
		if status.Advances() != want {
			t.Errorf("Advances(%s) = %v, want %v", status, status.Advances(), want)
		}
	}
}

func TestStore_Summary(t *testing.T) {
	s := NewStore()
	p := s.Begin("storage")
	p.Status = StatusCreated
	s.Finish(p)

	sum := s.Summary()
	if sum["storage"] != StatusCreated {
		t.Errorf("expected created, got %s", sum["storage"])
	}
}

func TestStore_MarshalJSON(t *testing.T) {
	s := NewStore()
	p := s.Begin("network")
	p.Observe(controlplane.ResourceObservation{Kind: "stack", ID: "demo-network", Exists: true, Status: controlplane.StatusActive})
	p.Status = StatusSkip
	p.Existed = true
	p.Ready = true
	s.Finish(p)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		Phases []struct {
			Name    string `json:"name"`
			Status  string `json:"status"`
			Existed bool   `json:"existed"`
		} `json:"phases"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if len(decoded.Phases) != 1 || decoded.Phases[0].Status != "skip" || !decoded.Phases[0].Existed {
		t.Errorf("unexpected encoding: %s", data)
	}
}
