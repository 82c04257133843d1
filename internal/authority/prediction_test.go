package authority

import (
	"testing"

	"github.com/skyforge-mmo/skyforge/internal/vec"
)

func TestClassifyErrorBands(t *testing.T) {
	cases := []struct {
		mag  float64
		want CorrectionBand
	}{
		{0.0, BandAccept},
		{0.05, BandAccept},
		{0.1, BandCorrective},
		{1.0, BandCorrective},
		{2.0, BandCorrective},
		{2.01, BandSnap},
		{50, BandSnap},
	}
	for _, c := range cases {
		if got := ClassifyError(c.mag); got != c.want {
			t.Errorf("ClassifyError(%f) = %v, want %v", c.mag, got, c.want)
		}
	}
}

func TestConfirmUpToDropsAcknowledgedInputs(t *testing.T) {
	table := NewPredictionTable()
	for seq := uint32(1); seq <= 5; seq++ {
		table.Record(PendingInput{Sequence: seq})
	}
	table.ConfirmUpTo(3)

	pending := table.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 unconfirmed inputs remaining, got %d", len(pending))
	}
	if pending[0].Sequence != 4 || pending[1].Sequence != 5 {
		t.Fatalf("expected sequences [4,5] remaining, got %+v", pending)
	}
}

func TestReconcileAcceptBandKeepsClientPosition(t *testing.T) {
	table := NewPredictionTable()
	clientPos := vec.Vec3Float{X: 10, Y: 0, Z: 0}
	serverPos := vec.Vec3Float{X: 10.02, Y: 0, Z: 0} // within accept threshold
	serverVel := vec.Vec3Float{X: 1}

	pos, vel := table.Reconcile(serverPos, serverVel, 0, clientPos, nil)
	if pos != clientPos {
		t.Fatalf("expected BandAccept to keep the client's own position, got %+v", pos)
	}
	if vel != serverVel {
		t.Fatalf("expected BandAccept to adopt server velocity, got %+v", vel)
	}
}

func TestReconcileSnapBandUsesServerPosition(t *testing.T) {
	table := NewPredictionTable()
	clientPos := vec.Vec3Float{X: 0}
	serverPos := vec.Vec3Float{X: 100} // far outside any correction band
	serverVel := vec.Vec3Float{X: 5}

	pos, vel := table.Reconcile(serverPos, serverVel, 0, clientPos, nil)
	if pos != serverPos {
		t.Fatalf("expected BandSnap to adopt the server position outright, got %+v", pos)
	}
	if vel != serverVel {
		t.Fatalf("expected BandSnap to adopt server velocity, got %+v", vel)
	}
}

func TestReconcileCorrectiveBandNudgesVelocityNotPosition(t *testing.T) {
	table := NewPredictionTable()
	clientPos := vec.Vec3Float{X: 100}
	serverPos := vec.Vec3Float{X: 100.5} // within corrective band, not accept
	serverVel := vec.Vec3Float{X: 0}

	pos, vel := table.Reconcile(serverPos, serverVel, 0, clientPos, nil)
	if pos != clientPos {
		t.Fatalf("expected BandCorrective to leave position untouched, got %+v", pos)
	}
	want := 0.4 // (100.5-100)*0.8
	if diff := vel.X - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected corrective velocity %f, got %f", want, vel.X)
	}
}

func TestReconcileReplaysUnconfirmedInputs(t *testing.T) {
	table := NewPredictionTable()
	table.Record(PendingInput{Sequence: 1})
	table.Record(PendingInput{Sequence: 2})

	replayCount := 0
	replay := func(pos, vel vec.Vec3Float, in PendingInput) (vec.Vec3Float, vec.Vec3Float) {
		replayCount++
		return pos.Add(vec.Vec3Float{X: 1}), vel
	}

	pos, _ := table.Reconcile(vec.Vec3Float{}, vec.Vec3Float{}, 0, vec.Vec3Float{}, replay)
	if replayCount != 2 {
		t.Fatalf("expected both unconfirmed inputs replayed, got %d replays", replayCount)
	}
	if pos.X != 2 {
		t.Fatalf("expected replay to advance position by 1 per replayed input, got %+v", pos)
	}
}

func TestReconcileConfirmsBeforeReplaying(t *testing.T) {
	table := NewPredictionTable()
	table.Record(PendingInput{Sequence: 1})
	table.Record(PendingInput{Sequence: 2})
	table.Record(PendingInput{Sequence: 3})

	replayed := []uint32{}
	replay := func(pos, vel vec.Vec3Float, in PendingInput) (vec.Vec3Float, vec.Vec3Float) {
		replayed = append(replayed, in.Sequence)
		return pos, vel
	}

	table.Reconcile(vec.Vec3Float{}, vec.Vec3Float{}, 2, vec.Vec3Float{}, replay)
	if len(replayed) != 1 || replayed[0] != 3 {
		t.Fatalf("expected only sequence 3 replayed after ack of 2, got %+v", replayed)
	}
}
