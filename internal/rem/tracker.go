package rem

// PhaseState is the tracker's state.
type PhaseState int

const (
	AwakeOrNREM PhaseState = iota
	InREM
)

func (s PhaseState) String() string {
	if s == InREM {
		return "IN_REM"
	}
	return "AWAKE_OR_NREM"
}

// Transition is what an Update caused.
type Transition int

const (
	NoTransition Transition = iota
	PhaseStart
	PhaseEnd
)

func (t Transition) String() string {
	switch t {
	case PhaseStart:
		return "phase_start"
	case PhaseEnd:
		return "phase_end"
	default:
		return ""
	}
}

// PhaseChange is emitted by Update.
type PhaseChange struct {
	Transition Transition
	Phase      int // new phase number on PhaseStart, ended phase number on PhaseEnd
}

// PhaseTracker turns a stream of REM verdicts into numbered phases.
// Phases are numbered sequentially since the last reset; Current is the
// running phase number while in REM and 0 otherwise.
// The zero value is ready to use.
type PhaseTracker struct {
	state   PhaseState
	phases  int
	current int
}

// Update feeds one verdict. Self-transitions change nothing.
func (t *PhaseTracker) Update(rem bool) PhaseChange {
	switch {
	case rem && t.state == AwakeOrNREM:
		t.state = InREM
		t.phases++
		t.current = t.phases
		return PhaseChange{Transition: PhaseStart, Phase: t.current}
	case !rem && t.state == InREM:
		ended := t.current
		t.state = AwakeOrNREM
		t.current = 0
		return PhaseChange{Transition: PhaseEnd, Phase: ended}
	default:
		return PhaseChange{}
	}
}

// Reset forces AWAKE_OR_NREM and zeroes the counters.
func (t *PhaseTracker) Reset() {
	t.state = AwakeOrNREM
	t.phases = 0
	t.current = 0
}

func (t *PhaseTracker) State() PhaseState    { return t.state }
func (t *PhaseTracker) Current() int         { return t.current }
func (t *PhaseTracker) PhasesInSession() int { return t.phases }
