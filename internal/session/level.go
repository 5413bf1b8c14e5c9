package session

// SkillLevel is one of the five ordered proficiency tiers a learner can be
// placed at. Levels map onto disjoint 0–100 score bands (cut points at
// 20/40/60/80) and onto CEFR codes for display.
type SkillLevel string

const (
	LevelBeginner          SkillLevel = "beginner"
	LevelElementary        SkillLevel = "elementary"
	LevelIntermediate      SkillLevel = "intermediate"
	LevelUpperIntermediate SkillLevel = "upper_intermediate"
	LevelAdvanced          SkillLevel = "advanced"
)

// Levels lists all skill levels in ascending order.
var Levels = []SkillLevel{
	LevelBeginner,
	LevelElementary,
	LevelIntermediate,
	LevelUpperIntermediate,
	LevelAdvanced,
}

// IsValid reports whether l is a recognised skill level.
func (l SkillLevel) IsValid() bool {
	switch l {
	case LevelBeginner, LevelElementary, LevelIntermediate, LevelUpperIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// LevelFromScore maps an overall 0–100 score onto a skill level.
// Band boundaries are inclusive on the lower edge: 20.0 is elementary,
// 19.9 is beginner.
func LevelFromScore(score float64) SkillLevel {
	switch {
	case score < 20:
		return LevelBeginner
	case score < 40:
		return LevelElementary
	case score < 60:
		return LevelIntermediate
	case score < 80:
		return LevelUpperIntermediate
	default:
		return LevelAdvanced
	}
}

// CEFR returns the CEFR code (A1–C1) corresponding to the level.
func (l SkillLevel) CEFR() string {
	switch l {
	case LevelBeginner:
		return "A1"
	case LevelElementary:
		return "A2"
	case LevelIntermediate:
		return "B1"
	case LevelUpperIntermediate:
		return "B2"
	case LevelAdvanced:
		return "C1"
	default:
		return "B1"
	}
}

// Label returns the human-readable display name of the level.
func (l SkillLevel) Label() string {
	switch l {
	case LevelBeginner:
		return "Beginner"
	case LevelElementary:
		return "Elementary"
	case LevelIntermediate:
		return "Intermediate"
	case LevelUpperIntermediate:
		return "Upper Intermediate"
	case LevelAdvanced:
		return "Advanced"
	default:
		return string(l)
	}
}
