package operator

import "fmt"

// Family fixes the pipeline stage an operator runs in. Families resolve in
// ascending order and each later family observes the working onsets left by
// the earlier ones: sketch, then refine, then constrain.
type Family int

const (
	FamilyGrooveAnchor Family = iota
	FamilyMicroAddition
	FamilyNoteRemoval
	FamilySubdivisionTransform
	FamilyRegisterContour
	FamilyStyleIdiom
	FamilyCleanup
	familyCount
)

var familyNames = [...]string{
	"groove-anchor",
	"micro-addition",
	"note-removal",
	"subdivision-transform",
	"register-contour",
	"style-idiom",
	"cleanup",
}

func (f Family) String() string {
	if f >= 0 && f < familyCount {
		return familyNames[f]
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// Valid reports whether f is a known family
func (f Family) Valid() bool {
	return f >= 0 && f < familyCount
}

// Families returns every family in pass order
func Families() []Family {
	out := make([]Family, 0, familyCount)
	for f := Family(0); f < familyCount; f++ {
		out = append(out, f)
	}
	return out
}
