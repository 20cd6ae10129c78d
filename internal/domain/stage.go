package domain

// Stage is one phase of the offering lifecycle. Stages only move forward, one
// step at a time; there is no path back.
type Stage int

const (
	StagePrelaunch Stage = iota
	StagePresale
	StageSale
	StageLock
	StageMarket
)

var stageNames = map[Stage]string{
	StagePrelaunch: "prelaunch",
	StagePresale:   "presale",
	StageSale:      "sale",
	StageLock:      "lock",
	StageMarket:    "market",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStage resolves a stage name; ok is false for unknown names.
func ParseStage(name string) (Stage, bool) {
	for stage, n := range stageNames {
		if n == name {
			return stage, true
		}
	}
	return 0, false
}

// CanAdvanceTo reports whether target is the immediate successor of s.
func (s Stage) CanAdvanceTo(target Stage) bool {
	return target == s+1 && target <= StageMarket
}

// BuyEnabled reports whether purchases are admitted at this stage.
func (s Stage) BuyEnabled() bool {
	return s == StageSale || s == StageMarket
}

// Terminal reports whether the lifecycle has ended.
func (s Stage) Terminal() bool {
	return s == StageMarket
}
