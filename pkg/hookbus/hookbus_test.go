package hookbus

import "testing"

func TestFireInvokesHandlersInOrder(t *testing.T) {
	b := New(nil)
	var order []string
	b.Register(PreExecuteCommand, func(Event) { order = append(order, "first") })
	b.Register(PreExecuteCommand, func(Event) { order = append(order, "second") })

	b.Fire(Event{Point: PreExecuteCommand})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected handlers in registration order, got %v", order)
	}
}

func TestFireRecoversPanickingHandler(t *testing.T) {
	b := New(nil)
	ran := false
	b.Register(PostExecuteCommand, func(Event) { panic("boom") })
	b.Register(PostExecuteCommand, func(Event) { ran = true })

	b.Fire(Event{Point: PostExecuteCommand})

	if !ran {
		t.Fatalf("expected the second handler to still run after the first panicked")
	}
}

type fakeObserver struct{ seen []Activity }

func (f *fakeObserver) Observe(a Activity) { f.seen = append(f.seen, a) }

func TestActivityTrackerCatMarksViewed(t *testing.T) {
	b := New(nil)
	obs := &fakeObserver{}
	RegisterActivityTracker(b, obs)

	b.Fire(Event{Point: PostExecuteCommand, Command: "cat main.go"})

	if len(obs.seen) != 1 || obs.seen[0].Path != "main.go" || obs.seen[0].Kind != ActivityViewed {
		t.Fatalf("expected main.go viewed, got %+v", obs.seen)
	}
}

func TestActivityTrackerMvPairsDeleteAndCreate(t *testing.T) {
	b := New(nil)
	obs := &fakeObserver{}
	RegisterActivityTracker(b, obs)

	b.Fire(Event{Point: PostExecuteCommand, Command: "mv old.txt new.txt"})

	if len(obs.seen) != 2 {
		t.Fatalf("expected 2 activities, got %+v", obs.seen)
	}
	if obs.seen[0].Path != "old.txt" || obs.seen[0].Kind != ActivityDeleted {
		t.Fatalf("expected old.txt deleted first, got %+v", obs.seen[0])
	}
	if obs.seen[1].Path != "new.txt" || obs.seen[1].Kind != ActivityCreated {
		t.Fatalf("expected new.txt created second, got %+v", obs.seen[1])
	}
}

func TestActivityTrackerRedirectionCreatesAndModifies(t *testing.T) {
	b := New(nil)
	obs := &fakeObserver{}
	RegisterActivityTracker(b, obs)

	b.Fire(Event{Point: PostExecuteCommand, Command: "echo hello > out.txt"})
	b.Fire(Event{Point: PostExecuteCommand, Command: "echo world >> out.txt"})

	if len(obs.seen) != 2 {
		t.Fatalf("expected 2 activities, got %+v", obs.seen)
	}
	if obs.seen[0].Kind != ActivityCreated {
		t.Fatalf("expected first redirection to create, got %+v", obs.seen[0])
	}
	if obs.seen[1].Kind != ActivityModified {
		t.Fatalf("expected second (append) redirection to modify, got %+v", obs.seen[1])
	}
}

func TestActivityTrackerTouchIgnoresFlags(t *testing.T) {
	b := New(nil)
	obs := &fakeObserver{}
	RegisterActivityTracker(b, obs)

	b.Fire(Event{Point: PostExecuteCommand, Command: "touch -m newfile.txt"})

	if len(obs.seen) != 1 || obs.seen[0].Path != "newfile.txt" || obs.seen[0].Kind != ActivityCreated {
		t.Fatalf("expected newfile.txt created, flags ignored, got %+v", obs.seen)
	}
}
