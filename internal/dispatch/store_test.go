package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/fentz26/easel/internal/models"
)

func TestCreateTaskRejectsBlankPrompt(t *testing.T) {
	d := New(testConfig())

	for _, prompt := range []string{"", "   ", "\t\n"} {
		if _, err := d.CreateTask(prompt, "a", 0); !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("Prompt %q: expected ErrEmptyPrompt, got %v", prompt, err)
		}
	}
	if got := d.Status().TotalTasks; got != 0 {
		t.Errorf("Expected no tasks after rejected creates, got %d", got)
	}
}

func TestCreateTaskDefaultsTimeout(t *testing.T) {
	cfg := testConfig()
	d := New(cfg)

	task, err := d.CreateTask("a whale", "a", 0)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Timeout != cfg.TaskTimeout {
		t.Errorf("Expected default timeout %v, got %v", cfg.TaskTimeout, task.Timeout)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected pending, got %s", task.Status)
	}
}

func TestGetTaskMissing(t *testing.T) {
	d := New(testConfig())
	if _, ok := d.GetTask("nope"); ok {
		t.Error("Expected not found for unknown task id")
	}
}

func TestTerminalTransitionIsFinal(t *testing.T) {
	d := New(testConfig())
	rec := &memRecorder{}
	d.SetRecorder(rec)

	d.Register("a", newFakeConn())
	task, err := d.CreateTask("a horse", "a", time.Hour)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	d.MarkBusy("a", task.ID)

	d.Complete(task.ID, []string{"http://x/1.png"})

	// Late transitions are silently dropped: first terminal wins.
	d.ForceTimeout(task.ID)
	d.ForceError(task.ID)
	d.Complete(task.ID, []string{"http://x/2.png"})

	got, _ := d.GetTask(task.ID)
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if len(got.ResultURLs) != 1 || got.ResultURLs[0] != "http://x/1.png" {
		t.Errorf("Expected single original url, got %v", got.ResultURLs)
	}
	if rec.count() != 1 {
		t.Errorf("Expected exactly 1 recorded transition, got %d", rec.count())
	}
}

func TestCompleteReturnsClientToIdle(t *testing.T) {
	d := New(testConfig())
	d.Register("a", newFakeConn())
	task, err := d.CreateTask("a lion", "a", time.Hour)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	d.MarkBusy("a", task.ID)

	d.Complete(task.ID, []string{"http://x/1.png"})

	c := d.Status().Clients[0]
	if c.Status != models.ClientStatusIdle || c.CurrentTaskID != "" {
		t.Errorf("Expected idle unbound client, got %s task=%q", c.Status, c.CurrentTaskID)
	}
	checkInvariant(t, d)
}

func TestTransitionToleratesMissingClient(t *testing.T) {
	d := New(testConfig())
	d.Register("a", newFakeConn())
	task, err := d.CreateTask("a crab", "a", time.Hour)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// Client gone before the result arrives: the task errored on
	// unregister, and the late completion is dropped.
	d.MarkBusy("a", task.ID)
	d.Unregister("a")
	d.Complete(task.ID, []string{"http://x/1.png"})

	got, _ := d.GetTask(task.ID)
	if got.Status != models.TaskStatusError {
		t.Errorf("Expected error status to stick, got %s", got.Status)
	}
}

func TestCompleteForClientUnmatched(t *testing.T) {
	d := New(testConfig())

	if d.CompleteForClient("ghost", []string{"http://x/1.png"}) {
		t.Error("Expected unmatched event for unknown client")
	}

	d.Register("a", newFakeConn())
	if d.CompleteForClient("a", []string{"http://x/1.png"}) {
		t.Error("Expected unmatched event for idle client with no bound task")
	}
}

func TestPruneOlderThan(t *testing.T) {
	d := New(testConfig())
	d.Register("a", newFakeConn())

	task, err := d.CreateTask("a seal", "a", time.Hour)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	d.MarkBusy("a", task.ID)

	time.Sleep(5 * time.Millisecond)

	if n := d.PruneOlderThan(time.Hour); n != 0 {
		t.Errorf("Expected nothing pruned under a long horizon, got %d", n)
	}

	if n := d.PruneOlderThan(time.Millisecond); n != 1 {
		t.Errorf("Expected 1 pruned task, got %d", n)
	}
	if _, ok := d.GetTask(task.ID); ok {
		t.Error("Expected pruned task to be gone")
	}

	// The bound client must not stay busy pointing at a pruned task.
	c := d.Status().Clients[0]
	if c.Status != models.ClientStatusIdle {
		t.Errorf("Expected released client, got %s", c.Status)
	}
	checkInvariant(t, d)
}
