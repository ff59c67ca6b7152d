package groove

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// candidateIDVersion prefixes every encoded id. Bump it when the field list
// changes so stored ids from older runs never collide with new ones.
const candidateIDVersion = "cand/v1"

// Candidate is a proposed onset addition for one role in one bar
type Candidate struct {
	ID         string   `json:"id"`
	Role       Role     `json:"role"`
	Bar        int      `json:"bar"`
	Beat       float64  `json:"beat"`
	Strength   Strength `json:"strength"`
	Score      float64  `json:"score"`
	OperatorID string   `json:"operator_id"`

	// Optional hints; nil or empty means "use the role default"
	Velocity     *int   `json:"velocity,omitempty"`
	TimingOffset *int   `json:"timing_offset,omitempty"`
	Duration     *int   `json:"duration,omitempty"`
	Pitch        *int   `json:"pitch,omitempty"`
	Articulation string `json:"articulation,omitempty"`
}

// CandidateOption sets an optional hint on a candidate
type CandidateOption func(*Candidate)

// WithVelocity sets the velocity hint
func WithVelocity(v int) CandidateOption {
	return func(c *Candidate) { c.Velocity = &v }
}

// WithTimingOffset sets the timing-offset hint in ticks
func WithTimingOffset(ticks int) CandidateOption {
	return func(c *Candidate) { c.TimingOffset = &ticks }
}

// WithDuration sets the duration hint in ticks
func WithDuration(ticks int) CandidateOption {
	return func(c *Candidate) { c.Duration = &ticks }
}

// WithPitch sets the MIDI pitch hint
func WithPitch(p int) CandidateOption {
	return func(c *Candidate) { c.Pitch = &p }
}

// WithArticulation sets the articulation hint
func WithArticulation(a string) CandidateOption {
	return func(c *Candidate) { c.Articulation = a }
}

// NewCandidate builds a candidate, clamps its score to [0,1] and stamps its id
func NewCandidate(operatorID string, role Role, bar int, beat float64, strength Strength, score float64, opts ...CandidateOption) Candidate {
	c := Candidate{
		Role:       role,
		Bar:        bar,
		Beat:       beat,
		Strength:   strength,
		Score:      clampScore(score),
		OperatorID: operatorID,
	}
	for _, opt := range opts {
		opt(&c)
	}
	c.ID = CandidateID(c.OperatorID, c.Role, c.Bar, c.Beat, c.Articulation)
	return c
}

// Key returns the quantized slot of the candidate's beat
func (c Candidate) Key() int64 {
	return BeatKey(c.Beat)
}

// CandidateID computes the stable id of a candidate from its identity fields.
//
// Encoding: sha256 over length-prefixed fields (version, operator, role,
// bar, beat slot, articulation), hex encoded, truncated to 16 bytes. The beat
// is encoded as its quantized slot so float formatting never leaks into ids.
func CandidateID(operatorID string, role Role, bar int, beat float64, articulation string) string {
	h := sha256.New()

	writeField := func(data string) {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(data)))
		h.Write(length[:])
		h.Write([]byte(data))
	}

	writeField(candidateIDVersion)
	writeField(operatorID)
	writeField(string(role))
	writeField(strconv.Itoa(bar))
	writeField(strconv.FormatInt(BeatKey(beat), 10))
	writeField(articulation)

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// RemovalCandidate proposes deleting the onset at a beat. Removals carry no
// score; only the protection policy can veto them.
type RemovalCandidate struct {
	Role       Role    `json:"role"`
	Bar        int     `json:"bar"`
	Beat       float64 `json:"beat"`
	OperatorID string  `json:"operator_id"`
	Reason     string  `json:"reason"`
}

// NewRemoval builds a removal candidate
func NewRemoval(operatorID string, role Role, bar int, beat float64, reason string) RemovalCandidate {
	return RemovalCandidate{
		Role:       role,
		Bar:        bar,
		Beat:       beat,
		OperatorID: operatorID,
		Reason:     reason,
	}
}

// Key returns the quantized slot of the removal's beat
func (r RemovalCandidate) Key() int64 {
	return BeatKey(r.Beat)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
