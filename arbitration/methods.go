package arbitration

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	// ErrUnknownMethod is returned for an unrecognized arbitration method name.
	ErrUnknownMethod = errors.New("unknown arbitration method")
	// ErrUnknownNitrogenMethod is returned for a nitrogen uptake selector outside 1..3.
	ErrUnknownNitrogenMethod = errors.New("unknown nitrogen uptake method")
	// ErrLayerMismatch marks soil and plant arrays of inconsistent layer counts.
	ErrLayerMismatch = errors.New("layer count mismatch")
	// ErrUnknownResource is returned when RunDay is asked for an unsupported resource.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrDuplicatePlant is returned when a zone lists the same plant twice.
	ErrDuplicatePlant = errors.New("duplicate plant in zone")
)

// MethodProportional scales every competitor in a compartment by the same
// available/demanded ratio.
const MethodProportional = "proportional"

var methods = []string{MethodProportional}

// Methods returns the recognized arbitration method names.
func Methods() []string {
	out := make([]string, len(methods))
	copy(out, methods)
	return out
}

// ValidateMethod checks an arbitration method name. Near misses get a suggestion.
func ValidateMethod(name string) error {
	norm := strings.ToLower(strings.TrimSpace(name))
	for _, m := range methods {
		if norm == m {
			return nil
		}
	}
	if s := suggestMethod(norm); s != "" {
		return fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownMethod, name, s)
	}
	return fmt.Errorf("%w %q (known: %s)", ErrUnknownMethod, name, strings.Join(methods, ", "))
}

func suggestMethod(name string) string {
	if name == "" {
		return ""
	}
	type scored struct {
		val  string
		dist int
	}
	var cands []scored
	for _, m := range methods {
		d := levenshtein.ComputeDistance(name, m)
		if d <= len(m)/3+1 {
			cands = append(cands, scored{m, d})
		}
	}
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	return cands[0].val
}
