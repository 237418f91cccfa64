package job

import (
	"context"
	"testing"
	"time"

	"github.com/taxlien-works/harvest/pkg/models"
)

func controllerFixture() (*Controller, *fakeNav) {
	nav := &fakeNav{pages: []*models.ResultsPage{{DetailURLs: []string{"u1"}}}}
	parser := &fakeParser{records: map[string]*models.Record{"u1": structuredRecord("1")}}
	runner := func(ctx context.Context) (*Orchestrator, func(), error) {
		o := NewOrchestrator(testCfg(), nav, parser, &fakeRecognizer{}, &fakeRenderer{}, &fakeExporter{})
		return o, func() {}, nil
	}
	return NewController(runner), nav
}

func TestStartJob_RunsToCompletion(t *testing.T) {
	c, _ := controllerFixture()

	id := c.StartJob(context.Background(), models.SearchCriterion{SearchName: "SMITH"})
	if id == "" {
		t.Fatal("StartJob returned empty id")
	}

	state, err := c.Wait(id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if state.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed (%s)", state.Status, state.Error)
	}
	if state.Criterion.SearchName != "SMITH" {
		t.Errorf("criterion not carried into state: %+v", state.Criterion)
	}
}

func TestGetJobState_UnknownJob(t *testing.T) {
	c, _ := controllerFixture()
	if _, err := c.GetJobState("nope"); err == nil {
		t.Error("GetJobState accepted an unknown id")
	}
	if err := c.CancelJob("nope"); err == nil {
		t.Error("CancelJob accepted an unknown id")
	}
}

func TestStartJob_SnapshotsWhileRunning(t *testing.T) {
	c, _ := controllerFixture()
	id := c.StartJob(context.Background(), models.SearchCriterion{})

	// The snapshot must be readable at any point, terminal or not.
	deadline := time.After(5 * time.Second)
	for {
		state, err := c.GetJobState(id)
		if err != nil {
			t.Fatalf("GetJobState failed: %v", err)
		}
		if state.Status.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never reached a terminal state")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCancelJob_MarksCancelled(t *testing.T) {
	// A runner that blocks until cancelled exercises the cooperative path.
	started := make(chan struct{})
	nav := &fakeNav{pages: func() []*models.ResultsPage {
		var p []*models.ResultsPage
		for i := 0; i < 1000; i++ {
			p = append(p, &models.ResultsPage{DetailURLs: []string{"u1"}})
		}
		return p
	}()}
	parser := &fakeParser{records: map[string]*models.Record{"u1": structuredRecord("1")}}
	runner := func(ctx context.Context) (*Orchestrator, func(), error) {
		close(started)
		cfg := testCfg()
		cfg.PageBudget = 1000
		o := NewOrchestrator(cfg, nav, parser, &fakeRecognizer{}, &fakeRenderer{}, &fakeExporter{})
		return o, func() {}, nil
	}

	c := NewController(runner)
	id := c.StartJob(context.Background(), models.SearchCriterion{})
	<-started
	if err := c.CancelJob(id); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}

	state, err := c.Wait(id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if state.Status != models.StatusCancelled && state.Status != models.StatusCompleted {
		t.Errorf("status = %s, want cancelled (or completed if the job outran the cancel)", state.Status)
	}
}
