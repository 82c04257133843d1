// Package authority implements client-side prediction/server reconciliation
// and the server's piloting-input and entity-replication logic (spec.md
// §4.F–G). Grounded on the deleted teacher prediction_service.go's
// sequence-keyed pending-table pattern, reimplemented against this
// project's Island/World model instead of the teacher's 2D entity system.
package authority

import "github.com/skyforge-mmo/skyforge/internal/vec"

// PendingInput is one not-yet-confirmed client movement command, keyed by
// the client's own monotonically increasing SequenceNumber.
type PendingInput struct {
	Sequence      uint32
	IntendedPos   vec.Vec3Float
	Velocity      vec.Vec3Float
	DeltaTime     float32
}

// PredictionTable tracks every input the client has applied optimistically
// but not yet had confirmed (or corrected) by the server.
type PredictionTable struct {
	pending []PendingInput
}

// NewPredictionTable returns an empty table.
func NewPredictionTable() *PredictionTable {
	return &PredictionTable{}
}

// Record appends a newly applied optimistic input.
func (t *PredictionTable) Record(in PendingInput) {
	t.pending = append(t.pending, in)
}

// Pending returns every input not yet acknowledged, oldest first.
func (t *PredictionTable) Pending() []PendingInput {
	return t.pending
}

// ConfirmUpTo discards every pending input with Sequence <= seq — the
// server has acknowledged them, so the client no longer needs to replay
// them on top of a reconciled position.
func (t *PredictionTable) ConfirmUpTo(seq uint32) {
	i := 0
	for i < len(t.pending) && t.pending[i].Sequence <= seq {
		i++
	}
	t.pending = t.pending[i:]
}

// CorrectionBand classifies how large a server/client position divergence
// is, driving the 3-band correction policy (spec.md §4.G).
type CorrectionBand int

const (
	// BandAccept: divergence is small enough that the server's velocity
	// can simply be adopted with no positional snap.
	BandAccept CorrectionBand = iota
	// BandCorrective: a corrective velocity nudges the client back toward
	// the server position over several ticks.
	BandCorrective
	// BandSnap: divergence is large enough that a direct position/velocity
	// overwrite is applied immediately.
	BandSnap
)

const (
	acceptThreshold    = 0.1
	correctiveThreshold = 2.0
	correctiveGain      = 0.8
)

// ClassifyError buckets a position error magnitude into a correction band.
func ClassifyError(errorMagnitude float64) CorrectionBand {
	switch {
	case errorMagnitude < acceptThreshold:
		return BandAccept
	case errorMagnitude <= correctiveThreshold:
		return BandCorrective
	default:
		return BandSnap
	}
}

// Reconcile applies the server's authoritative position/velocity to the
// client's predicted state, following the 3-band policy: accept the
// server's velocity outright, nudge with a corrective velocity term, or
// snap directly, then replays any inputs still pending after the
// server-acknowledged sequence so the client doesn't lose unconfirmed
// input.
func (t *PredictionTable) Reconcile(serverPos, serverVel vec.Vec3Float, ackSeq uint32, clientPos vec.Vec3Float, replay func(pos, vel vec.Vec3Float, in PendingInput) (vec.Vec3Float, vec.Vec3Float)) (vec.Vec3Float, vec.Vec3Float) {
	t.ConfirmUpTo(ackSeq)

	errMag := serverPos.DistanceTo(clientPos)
	pos, vel := serverPos, serverVel

	switch ClassifyError(errMag) {
	case BandAccept:
		pos, vel = clientPos, serverVel
	case BandCorrective:
		// Position stays untouched in this band; only velocity is nudged by
		// the corrective term (spec.md §4.G: "Applied velocity=(0.4,0,0);
		// position untouched").
		correction := serverPos.Sub(clientPos).Mul(correctiveGain)
		pos = clientPos
		vel = serverVel.Add(correction)
	case BandSnap:
		pos, vel = serverPos, serverVel
	}

	if replay != nil {
		for _, in := range t.pending {
			pos, vel = replay(pos, vel, in)
		}
	}
	return pos, vel
}
