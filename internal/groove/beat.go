package groove

import (
	"encoding/json"
	"math"
	"sort"
)

// BeatResolution is the number of quantization slots per beat. Two beats that
// round to the same slot are treated as the same position.
const BeatResolution = 960

// BeatKey quantizes a 1-based beat position to its slot index within the bar
func BeatKey(beat float64) int64 {
	return int64(math.Round((beat - 1) * BeatResolution))
}

// BeatFromKey converts a slot index back into a 1-based beat
func BeatFromKey(key int64) float64 {
	return 1 + float64(key)/BeatResolution
}

// SameBeat reports whether two beats fall on the same slot
func SameBeat(a, b float64) bool {
	return BeatKey(a) == BeatKey(b)
}

// BeatSet is an immutable, sorted, slot-deduplicated set of beat positions
type BeatSet struct {
	keys []int64
}

// NewBeatSet builds a set from beat positions
func NewBeatSet(beats ...float64) BeatSet {
	if len(beats) == 0 {
		return BeatSet{}
	}
	seen := make(map[int64]bool, len(beats))
	keys := make([]int64, 0, len(beats))
	for _, b := range beats {
		k := BeatKey(b)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return BeatSet{keys: keys}
}

// Len returns the number of distinct slots in the set
func (s BeatSet) Len() int {
	return len(s.keys)
}

// Empty reports whether the set has no beats
func (s BeatSet) Empty() bool {
	return len(s.keys) == 0
}

// Contains reports whether beat falls on a slot in the set
func (s BeatSet) Contains(beat float64) bool {
	return s.ContainsKey(BeatKey(beat))
}

// ContainsKey reports whether the slot index is in the set
func (s BeatSet) ContainsKey(key int64) bool {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })
	return i < len(s.keys) && s.keys[i] == key
}

// Beats returns the positions in ascending order
func (s BeatSet) Beats() []float64 {
	out := make([]float64, len(s.keys))
	for i, k := range s.keys {
		out[i] = BeatFromKey(k)
	}
	return out
}

// Union returns a new set holding the beats of both sets
func (s BeatSet) Union(o BeatSet) BeatSet {
	if o.Empty() {
		return s
	}
	if s.Empty() {
		return o
	}
	keys := make([]int64, 0, len(s.keys)+len(o.keys))
	i, j := 0, 0
	for i < len(s.keys) || j < len(o.keys) {
		switch {
		case j >= len(o.keys) || (i < len(s.keys) && s.keys[i] < o.keys[j]):
			keys = append(keys, s.keys[i])
			i++
		case i >= len(s.keys) || o.keys[j] < s.keys[i]:
			keys = append(keys, o.keys[j])
			j++
		default:
			keys = append(keys, s.keys[i])
			i++
			j++
		}
	}
	return BeatSet{keys: keys}
}

// MarshalJSON encodes the set as an ascending list of beats
func (s BeatSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Beats())
}

// UnmarshalJSON decodes a list of beats
func (s *BeatSet) UnmarshalJSON(b []byte) error {
	var beats []float64
	if err := json.Unmarshal(b, &beats); err != nil {
		return err
	}
	*s = NewBeatSet(beats...)
	return nil
}
