package validation

import (
	"errors"
	"fmt"

	"github.com/cloudpasture/shepherd/pkg/domain"
)

// ErrFatalConflict marks a size/placement combination that must not run.
var ErrFatalConflict = errors.New("conflicting size definition")

// CheckConflicts evaluates size against the target environment.
//
// Two rules:
//
//   - overcommit (request below limit) with dedicated CPU placement is
//     contradictory. Pinned CPUs cannot be shared, so there is nothing to
//     overcommit. Fatal: blocks submission and approval alike.
//
//   - overcommit targeting production deserves a second look but is a
//     legitimate call. Advisory: recorded as a warning on the overlay.
func CheckConflicts(size domain.SizeDefinition, environment domain.Environment) (warnings []string, fatal error) {
	if !size.Overcommitted() {
		return nil, nil
	}

	if size.DedicatedCPU {
		return nil, fmt.Errorf(
			"%w: size '%s' requests dedicated CPU placement with overcommit",
			ErrFatalConflict, size.Name,
		)
	}

	if environment == domain.Production {
		warnings = append(warnings, fmt.Sprintf(
			"size '%s' overcommits resources on a production cluster", size.Name,
		))
	}
	return warnings, nil
}
