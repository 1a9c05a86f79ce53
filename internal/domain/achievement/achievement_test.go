package achievement_test

import (
	"errors"
	"testing"

	"github.com/keystride/keystride/internal/domain/achievement"
	. "github.com/smartystreets/goconvey/convey"
)

func ids(defs []achievement.Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

func TestDefaults(t *testing.T) {
	Convey("Given the built-in catalog", t, func() {
		defs := achievement.Defaults()

		Convey("Then it holds fourteen uniquely named achievements", func() {
			So(defs, ShouldHaveLength, 14)
			seen := map[string]bool{}
			for _, d := range defs {
				So(seen[d.ID], ShouldBeFalse)
				seen[d.ID] = true
				So(d.Name, ShouldNotBeEmpty)
				So([]achievement.Tier{achievement.TierBronze, achievement.TierSilver, achievement.TierGold, achievement.TierPlatinum}, ShouldContain, d.Tier)
			}
		})

		Convey("Then every rule survives a text round trip", func() {
			for _, d := range defs {
				r, err := achievement.ParseRule(d.Rule.String())
				So(err, ShouldBeNil)
				So(r, ShouldResemble, d.Rule)
			}
		})
	})
}

func TestEvaluate(t *testing.T) {
	defs := achievement.Defaults()

	Convey("Given a user's statistics", t, func() {
		Convey("When the user has just finished one attempt", func() {
			s := achievement.Stats{Attempts: 1, BestWPM: 30, BestAccuracy: 90, Streak: 1, Languages: 1,
				AttemptsByLang: map[string]int{"en": 1}}
			got := achievement.Evaluate(defs, s, nil)

			Convey("Then only the first lesson unlocks", func() {
				So(ids(got), ShouldResemble, []string{"first_lesson"})
			})
		})

		Convey("When achievements are already earned", func() {
			s := achievement.Stats{Attempts: 12, BestWPM: 85, BestAccuracy: 100, Streak: 7, Languages: 2}
			got := achievement.Evaluate(defs, s, map[string]bool{"first_lesson": true, "speed_demon_50": true})

			Convey("Then they are not unlocked again and order follows the catalog", func() {
				So(ids(got), ShouldResemble, []string{
					"speed_demon_80", "accuracy_master", "streak_7", "marathon_10", "polyglot_beginner",
				})
			})
		})

		Convey("When many attempts are in other languages", func() {
			s := achievement.Stats{Attempts: 60, AttemptsByLang: map[string]int{"en": 55, "zh": 5}}
			got := achievement.Evaluate(defs, s, nil)

			Convey("Then the Chinese achievement only counts Chinese attempts", func() {
				So(ids(got), ShouldNotContain, "chinese_master")
				So(ids(got), ShouldContain, "marathon_50")
			})
		})

		Convey("When enough HSK packs were practised", func() {
			s := achievement.Stats{Attempts: 3, PacksMatching: map[string]int{"hsk": 3}}
			So(ids(achievement.Evaluate(defs, s, nil)), ShouldContain, "hsk_explorer")
		})

		Convey("When the stats are empty", func() {
			So(achievement.Evaluate(defs, achievement.Stats{}, nil), ShouldBeEmpty)
		})
	})
}

func TestRule(t *testing.T) {
	Convey("Given rule text", t, func() {
		Convey("When parsing the current forms", func() {
			r, err := achievement.ParseRule("attempts[zh] >= 50")
			So(err, ShouldBeNil)
			So(r, ShouldResemble, achievement.LangAttempts("zh", 50))
			So(achievement.PacksMatching("hsk", 3).String(), ShouldEqual, "packs[hsk] >= 3")
			So(achievement.BestWPM(62.5).String(), ShouldEqual, "wpm >= 62.5")
		})

		Convey("When parsing legacy forms", func() {
			r, err := achievement.ParseRule("chinese_attempts >= 50")
			So(err, ShouldBeNil)
			So(r, ShouldResemble, achievement.LangAttempts("zh", 50))

			r, err = achievement.ParseRule("hsk_packs >= 3")
			So(err, ShouldBeNil)
			So(r, ShouldResemble, achievement.PacksMatching("hsk", 3))

			r, err = achievement.ParseRule("accuracy == 100")
			So(err, ShouldBeNil)
			So(r.Op, ShouldEqual, achievement.OpEqual)
			So(r.Met(achievement.Stats{BestAccuracy: 100}), ShouldBeTrue)
			So(r.Met(achievement.Stats{BestAccuracy: 99.5}), ShouldBeFalse)
		})

		Convey("When the text is malformed", func() {
			for _, s := range []string{"", "wpm >=", "wpm > 5", "speed >= 5", "wpm >= fast", "attempts[ >= 1", "packs[] >= 1", "tags[x] >= 1"} {
				_, err := achievement.ParseRule(s)
				So(errors.Is(err, achievement.ErrInvalidRule), ShouldBeTrue)
			}
		})
	})
}

func TestProgress(t *testing.T) {
	Convey("Given a locked rule", t, func() {
		r := achievement.Attempts(10)

		Convey("Then progress is the fraction of the threshold", func() {
			So(achievement.Progress(r, achievement.Stats{}), ShouldEqual, 0.0)
			So(achievement.Progress(r, achievement.Stats{Attempts: 4}), ShouldAlmostEqual, 0.4)
			So(achievement.Progress(r, achievement.Stats{Attempts: 25}), ShouldEqual, 1.0)
		})

		Convey("Then a zero threshold is immediately complete", func() {
			So(achievement.Progress(achievement.Attempts(0), achievement.Stats{}), ShouldEqual, 1.0)
		})
	})
}
