// Package achievement holds the achievement catalog and the rules that
// unlock it.
package achievement

// Tier ranks an achievement.
type Tier string

// Tiers from lowest to highest.
const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Definition describes one unlockable achievement.
type Definition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Tier        Tier   `json:"tier"`
	Rule        Rule   `json:"-"`
}

// Stats are the per-user figures rules are checked against.
type Stats struct {
	Attempts     int
	BestWPM      float64
	BestAccuracy float64
	Streak       int
	Languages    int
	// AttemptsByLang counts attempts per language tag.
	AttemptsByLang map[string]int
	// PacksMatching counts distinct pack ids containing each substring.
	PacksMatching map[string]int
}

// Defaults returns the built-in catalog.
func Defaults() []Definition {
	return []Definition{
		{ID: "first_lesson", Name: "First Steps", Description: "Complete your first typing lesson", Icon: "star", Tier: TierBronze, Rule: Attempts(1)},
		{ID: "speed_demon_50", Name: "Speed Demon", Description: "Reach 50 WPM in a single attempt", Icon: "zap", Tier: TierSilver, Rule: BestWPM(50)},
		{ID: "speed_demon_80", Name: "Lightning Fingers", Description: "Reach 80 WPM in a single attempt", Icon: "zap-double", Tier: TierGold, Rule: BestWPM(80)},
		{ID: "speed_demon_100", Name: "Sonic Typist", Description: "Reach 100 WPM in a single attempt", Icon: "rocket", Tier: TierPlatinum, Rule: BestWPM(100)},
		{ID: "accuracy_master", Name: "Perfectionist", Description: "Complete a lesson with 100% accuracy", Icon: "target", Tier: TierGold, Rule: BestAccuracy(100)},
		{ID: "streak_7", Name: "Week Warrior", Description: "Practice for 7 days in a row", Icon: "fire", Tier: TierSilver, Rule: Streak(7)},
		{ID: "streak_30", Name: "Monthly Master", Description: "Practice for 30 days in a row", Icon: "fire-double", Tier: TierGold, Rule: Streak(30)},
		{ID: "streak_100", Name: "Century Streak", Description: "Practice for 100 days in a row", Icon: "trophy", Tier: TierPlatinum, Rule: Streak(100)},
		{ID: "marathon_10", Name: "Practice Apprentice", Description: "Complete 10 typing attempts", Icon: "book", Tier: TierBronze, Rule: Attempts(10)},
		{ID: "marathon_50", Name: "Dedicated Learner", Description: "Complete 50 typing attempts", Icon: "book-open", Tier: TierSilver, Rule: Attempts(50)},
		{ID: "marathon_100", Name: "Practice Master", Description: "Complete 100 typing attempts", Icon: "graduation-cap", Tier: TierGold, Rule: Attempts(100)},
		{ID: "polyglot_beginner", Name: "Bilingual Beginner", Description: "Practice in both English and Chinese", Icon: "globe", Tier: TierSilver, Rule: Languages(2)},
		{ID: "chinese_master", Name: "Chinese Character Master", Description: "Complete 50 Chinese typing attempts", Icon: "chinese", Tier: TierGold, Rule: LangAttempts("zh", 50)},
		{ID: "hsk_explorer", Name: "HSK Explorer", Description: "Practice with 3 different HSK level packs", Icon: "map", Tier: TierSilver, Rule: PacksMatching("hsk", 3)},
	}
}

// Value returns the statistic r compares against.
func (s Stats) Value(r Rule) float64 {
	switch r.Kind {
	case KindAttempts:
		return float64(s.Attempts)
	case KindBestWPM:
		return s.BestWPM
	case KindBestAccuracy:
		return s.BestAccuracy
	case KindStreak:
		return float64(s.Streak)
	case KindLanguages:
		return float64(s.Languages)
	case KindLangAttempts:
		return float64(s.AttemptsByLang[r.Param])
	case KindPacksMatching:
		return float64(s.PacksMatching[r.Param])
	}
	return 0
}

// Met reports whether stats satisfy r.
func (r Rule) Met(s Stats) bool {
	v := s.Value(r)
	if r.Op == OpEqual {
		return v == r.Threshold
	}
	return v >= r.Threshold
}

// Evaluate returns the definitions that stats satisfy and that are not in
// earned, in catalog order.
func Evaluate(defs []Definition, s Stats, earned map[string]bool) []Definition {
	var unlocked []Definition
	for _, d := range defs {
		if earned[d.ID] {
			continue
		}
		if d.Rule.Met(s) {
			unlocked = append(unlocked, d)
		}
	}
	return unlocked
}

// Progress returns how far stats are towards r, in [0, 1].
func Progress(r Rule, s Stats) float64 {
	if r.Met(s) {
		return 1
	}
	if r.Threshold <= 0 {
		return 0
	}
	return min(max(s.Value(r)/r.Threshold, 0), 1)
}
