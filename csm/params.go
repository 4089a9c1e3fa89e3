package csm

import "fmt"

// CSMParams are the model hyperparameters: memory length, the non-neighbour
// transition bound, the observed process dimension, and the regularisation
// strength and its regulariser.
type CSMParams struct {
	M           uint                // memory length
	TauNN       float64             // non-neighbour transition bound, in [0,1]
	D           uint                // observed process dimension
	Lambda      float64             // regularisation strength, >= 0
	Regulariser Regulariser[AD0]    // nil unless Lambda > 0
	Regulariser1 Regulariser[AD1]   // AD1-level twin of Regulariser, built alongside it

	// GlobalSearch, when true, runs Estimate as bounded multi-start local
	// search instead of a single local optimisation (spec §4.J: "optionally
	// a multi-level single-linkage global method with an inner local
	// optimiser"). See DESIGN.md Open Question for why multi-start rather
	// than full MLSL.
	GlobalSearch bool
	// GlobalStarts is the number of local searches to run when GlobalSearch
	// is set. Defaults to 8 if zero.
	GlobalStarts int

	Logger Logger
}

// Validate checks hyperparameter constraints at the earliest entry point, per
// spec §4.J construction step 1 and §7's propagation policy.
func (p CSMParams) Validate() error {
	if p.D < 2 {
		return fmt.Errorf("%w: D must be >= 2, got %d", ErrInvalidArgument, p.D)
	}
	if p.TauNN < 0 || p.TauNN > 1 {
		return fmt.Errorf("%w: tau_nn must be in [0,1], got %v", ErrOutOfRange, p.TauNN)
	}
	if p.Lambda < 0 {
		return fmt.Errorf("%w: lambda must be >= 0, got %v", ErrOutOfRange, p.Lambda)
	}
	if p.Lambda > 0 && p.Regulariser == nil {
		return fmt.Errorf("%w: lambda > 0 requires a regulariser", ErrInvalidArgument)
	}
	return nil
}

func (p CSMParams) logger() Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return noopLogger{}
}

// StoppingConditions are the optimiser's termination criteria.
type StoppingConditions struct {
	StopVal  float64 // target loss
	FtolAbs  float64
	FtolRel  float64
	XtolAbs  float64
	XtolRel  float64
	MaxEval  int     // function-evaluation budget
	MaxTime  float64 // wall-clock seconds
}

// DefaultStoppingConditions returns the spec §6 defaults.
func DefaultStoppingConditions() StoppingConditions {
	return StoppingConditions{
		StopVal: 1e-12,
		FtolRel: 1e-12,
		XtolRel: 1e-6,
		MaxEval: 1000,
		MaxTime: 60,
	}
}

// PiInitMethod selects a strategy for calc_initial_guess_pi.
type PiInitMethod int

const (
	PiIdentity PiInitMethod = iota
	PiMaxEntropy
	PiFromTrajectories
	PiFromTrajectoriesCompleteOnly
	PiHeuristic
)

func (m PiInitMethod) String() string {
	switch m {
	case PiIdentity:
		return "IDENTITY"
	case PiMaxEntropy:
		return "MAX_ENTROPY"
	case PiFromTrajectories:
		return "FROM_TRAJECTORIES"
	case PiFromTrajectoriesCompleteOnly:
		return "FROM_TRAJECTORIES_COMPLETE_ONLY"
	case PiHeuristic:
		return "HEURISTIC"
	default:
		return "UNKNOWN"
	}
}

// ParsePiInitMethod parses the exact documented method name, failing with
// ErrInvalidArgument otherwise.
func ParsePiInitMethod(s string) (PiInitMethod, error) {
	switch s {
	case "IDENTITY":
		return PiIdentity, nil
	case "MAX_ENTROPY":
		return PiMaxEntropy, nil
	case "FROM_TRAJECTORIES":
		return PiFromTrajectories, nil
	case "FROM_TRAJECTORIES_COMPLETE_ONLY":
		return PiFromTrajectoriesCompleteOnly, nil
	case "HEURISTIC":
		return PiHeuristic, nil
	default:
		return 0, fmt.Errorf("%w: unknown Pi init method %q", ErrInvalidArgument, s)
	}
}

// Q0InitMethod selects a strategy for calc_initial_guess_q0.
type Q0InitMethod int

const (
	Q0MaxEntropy Q0InitMethod = iota
	Q0FromData
)

func (m Q0InitMethod) String() string {
	switch m {
	case Q0MaxEntropy:
		return "MAX_ENTROPY"
	case Q0FromData:
		return "FROM_DATA"
	default:
		return "UNKNOWN"
	}
}

// ParseQ0InitMethod parses the exact documented method name.
func ParseQ0InitMethod(s string) (Q0InitMethod, error) {
	switch s {
	case "MAX_ENTROPY":
		return Q0MaxEntropy, nil
	case "FROM_DATA":
		return Q0FromData, nil
	default:
		return 0, fmt.Errorf("%w: unknown Q0 init method %q", ErrInvalidArgument, s)
	}
}
