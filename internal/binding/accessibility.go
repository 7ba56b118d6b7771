// Package binding implements accessibility-scoped selection of members for
// a type (and its nested types). This is component B of the
// specification: TypeBinding.
package binding

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/modguard/modguard/internal/vm"
)

// Accessibility is a total, monotone order: a higher level includes every
// member visible at a lower level.
type Accessibility int

const (
	None Accessibility = iota
	Public
	Protected
	Private
)

func (a Accessibility) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "none"
	}
}

var accessibilityCaser = cases.Fold()

// ParseAccessibility parses a case-folded accessibility keyword, the way
// a YAML policy manifest spells it ("public", "Protected", "PRIVATE").
func ParseAccessibility(s string) (Accessibility, error) {
	folded := accessibilityCaser.String(strings.TrimSpace(s))
	switch folded {
	case accessibilityCaser.String("none"):
		return None, nil
	case accessibilityCaser.String("public"):
		return Public, nil
	case accessibilityCaser.String("protected"):
		return Protected, nil
	case accessibilityCaser.String("private"):
		return Private, nil
	default:
		return None, fmt.Errorf("unknown accessibility %q", s)
	}
}

// visibilityAtMost reports whether a declared visibility is included at
// accessibility level L (visibility <= L under the total order
// None < Public < Protected < Private, with visibility mapped onto the
// same scale: VisPublic <= Public, VisProtected <= Protected,
// VisPrivate <= Private).
func visibilityAtMost(v vm.Visibility, l Accessibility) bool {
	switch v {
	case vm.VisPublic:
		return l >= Public
	case vm.VisProtected:
		return l >= Protected
	default: // vm.VisPrivate
		return l >= Private
	}
}
