package graph

import (
	"fmt"
	"sort"
)

// Road class codes as they appear in the edge rows of a graph file.
const (
	ClassMotorway      uint8 = 1
	ClassPrimary       uint8 = 2
	ClassSecondary     uint8 = 3
	ClassTertiary      uint8 = 4
	ClassTrunk         uint8 = 6
	ClassRoad          uint8 = 7
	ClassResidential   uint8 = 8
	ClassLivingStreet  uint8 = 9
	ClassTurningCircle uint8 = 10
	ClassService       uint8 = 11
	ClassUnclassified  uint8 = 12
)

// NumClasses is the size of the class weight table. Codes at or above it
// are always excluded.
const NumClasses = 29

var classNames = map[uint8]string{
	ClassMotorway:      "motorway",
	ClassPrimary:       "primary",
	ClassSecondary:     "secondary",
	ClassTertiary:      "tertiary",
	ClassTrunk:         "trunk",
	ClassRoad:          "road",
	ClassResidential:   "residential",
	ClassLivingStreet:  "living_street",
	ClassTurningCircle: "turning_circle",
	ClassService:       "service",
	ClassUnclassified:  "unclassified",
}

// carSpeedFactors are relative speeds per class; the cost weight is their
// reciprocal, so faster roads are cheaper.
var carSpeedFactors = map[uint8]float64{
	ClassMotorway:      1.3,
	ClassPrimary:       1.2,
	ClassSecondary:     0.8,
	ClassTertiary:      0.7,
	ClassTrunk:         1.3,
	ClassRoad:          0.5,
	ClassResidential:   0.45,
	ClassLivingStreet:  0.3,
	ClassTurningCircle: 0.5,
	ClassService:       0.3,
	ClassUnclassified:  0.5,
}

// ClassName returns the road type name for a class code.
func ClassName(c uint8) string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", c)
}

// ClassByName resolves a road type name to its class code.
func ClassByName(name string) (uint8, bool) {
	for c, n := range classNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Profile maps road class codes to cost multipliers. A negative weight
// excludes the class from routing.
type Profile struct {
	Name    string
	Weights []float64
}

// DefaultProfile is the car profile: weight 1/speed for each known class,
// everything else excluded.
func DefaultProfile() Profile {
	w := excludedWeights()
	for c, speed := range carSpeedFactors {
		w[c] = 1 / speed
	}
	return Profile{Name: "car", Weights: w}
}

// UniformProfile admits every class code below NumClasses at weight 1.
func UniformProfile() Profile {
	w := make([]float64, NumClasses)
	for i := range w {
		w[i] = 1
	}
	return Profile{Name: "uniform", Weights: w}
}

// NewProfile builds a profile from named class weights. Classes not named
// are excluded. Weights must be positive.
func NewProfile(name string, weights map[string]float64) (Profile, error) {
	w := excludedWeights()
	names := make([]string, 0, len(weights))
	for n := range weights {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c, ok := ClassByName(n)
		if !ok {
			return Profile{}, fmt.Errorf("profile %q: unknown road class %q", name, n)
		}
		if weights[n] <= 0 {
			return Profile{}, fmt.Errorf("profile %q: weight for %q must be positive, got %g", name, n, weights[n])
		}
		w[c] = weights[n]
	}
	return Profile{Name: name, Weights: w}, nil
}

// Weight returns the multiplier for class c, or -1 when c is excluded.
func (p Profile) Weight(c uint8) float64 {
	if int(c) >= len(p.Weights) {
		return -1
	}
	return p.Weights[c]
}

// Without returns a copy of p with the given classes excluded.
func (p Profile) Without(classes ...uint8) Profile {
	w := make([]float64, max(len(p.Weights), NumClasses))
	for i := range w {
		w[i] = p.Weight(uint8(i))
	}
	for _, c := range classes {
		if int(c) < len(w) {
			w[c] = -1
		}
	}
	return Profile{Name: p.Name, Weights: w}
}

// Excludes reports whether edges of class c are skipped.
func (p Profile) Excludes(c uint8) bool {
	return p.Weight(c) < 0
}

func excludedWeights() []float64 {
	w := make([]float64, NumClasses)
	for i := range w {
		w[i] = -1
	}
	return w
}
