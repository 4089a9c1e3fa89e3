package csm

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("%w: detail", ErrX) at the raise site.
var (
	// ErrInvalidArgument covers dimension mismatches, unknown enum strings, and
	// out-of-range hyperparameters caught at the earliest entry point.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange covers tau_nn outside [0,1] and lambda < 0.
	ErrOutOfRange = errors.New("out of range")

	// ErrLogicError covers operations inapplicable to the current data shape,
	// e.g. a trajectories-based initial guess with no longitudinal data.
	ErrLogicError = errors.New("logic error")

	// ErrDataException covers semantically invalid observed data.
	ErrDataException = errors.New("invalid data")

	// ErrZeroProbability is fatal during objective evaluation: a trajectory-
	// supported event has model probability exactly zero. Not softened to an
	// epsilon penalty; see DESIGN.md Open Question.
	ErrZeroProbability = errors.New("zero probability")

	// ErrSingular is raised when a matrix decomposition (SVD or eigen) used for
	// a pseudo-inverse or a steady state fails; recommends adding a
	// regulariser.
	ErrSingular = errors.New("singular matrix: consider adding a regulariser")
)
