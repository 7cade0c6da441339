package syncer

// Phase is a step of the sync state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCheckingVersion
	PhaseSameToRemote
	PhaseBundledOnly
	PhaseComputingDiff
	PhaseDeleting
	PhaseDownloading
	PhaseFinalizing
	PhaseDone
)

var phaseNames = [...]string{
	PhaseIdle:            "idle",
	PhaseCheckingVersion: "checking_version",
	PhaseSameToRemote:    "same_to_remote",
	PhaseBundledOnly:     "bundled_only",
	PhaseComputingDiff:   "computing_diff",
	PhaseDeleting:        "deleting",
	PhaseDownloading:     "downloading",
	PhaseFinalizing:      "finalizing",
	PhaseDone:            "done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
