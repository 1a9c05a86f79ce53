package metrics_test

import (
	"math"
	"testing"

	"github.com/keystride/keystride/internal/domain/metrics"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

var unitCost = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

func TestDistance(t *testing.T) {
	Convey("Given the edit-distance calculator", t, func() {
		Convey("When both strings are identical", func() {
			for _, s := range []string{"", "a", "hello", "你好世界", "tab\there"} {
				So(metrics.Distance(s, s), ShouldEqual, 0)
			}
		})

		Convey("When one side is empty", func() {
			So(metrics.Distance("", "hello"), ShouldEqual, 5)
			So(metrics.Distance("hello", ""), ShouldEqual, 5)

			Convey("Then length is counted in code points", func() {
				So(metrics.Distance("", "你好"), ShouldEqual, 2)
				So(metrics.Distance("héllo", ""), ShouldEqual, 5)
			})
		})

		Convey("When comparing the classic pair", func() {
			So(metrics.Distance("kitten", "sitting"), ShouldEqual, 3)
			So(metrics.Distance("sitting", "kitten"), ShouldEqual, 3)
		})

		Convey("When one character differs", func() {
			So(metrics.Distance("hallo", "hello"), ShouldEqual, 1)
			So(metrics.Distance("我爱你", "我恨你"), ShouldEqual, 1)
		})

		Convey("When compared with an independent implementation", func() {
			pairs := [][2]string{
				{"flaw", "lawn"},
				{"intention", "execution"},
				{"hellooo", "hello"},
				{"the quick brown fox", "teh quikc brown fx"},
				{"abc", "xyz"},
				{"学习中文很有意思", "学中文很有意思啊"},
				{"a", "ab"},
				{"Gumbo", "Gambol"},
			}
			for _, p := range pairs {
				want := levenshtein.DistanceForStrings([]rune(p[0]), []rune(p[1]), unitCost)
				So(metrics.Distance(p[0], p[1]), ShouldEqual, want)
				So(metrics.Distance(p[1], p[0]), ShouldEqual, want)
			}
		})
	})
}

func TestHeatmap(t *testing.T) {
	Convey("Given the error-heatmap builder", t, func() {
		Convey("When a single character is mistyped", func() {
			h := metrics.Heatmap("hallo", "hello")

			Convey("Then the target character is blamed", func() {
				So(h, ShouldResemble, metrics.ErrorHeatmap{"e": 1})
			})
		})

		Convey("When the typed text is shorter", func() {
			h := metrics.Heatmap("hi", "hello")

			Convey("Then overlapping mismatches and missing characters are both counted", func() {
				So(h, ShouldResemble, metrics.ErrorHeatmap{"e": 1, metrics.KeyMissing: 3})
			})
		})

		Convey("When the typed text is longer", func() {
			h := metrics.Heatmap("hellooo", "hello")

			Convey("Then only the extra sentinel is set", func() {
				So(h, ShouldResemble, metrics.ErrorHeatmap{metrics.KeyExtra: 2})
			})
		})

		Convey("When the text is typed perfectly", func() {
			h := metrics.Heatmap("hello", "hello")

			Convey("Then the map is empty, not nil", func() {
				So(h, ShouldNotBeNil)
				So(h, ShouldBeEmpty)
			})
		})

		Convey("When a character is dropped early", func() {
			h := metrics.Heatmap("helo", "hello")

			Convey("Then later positions are compared without realignment", func() {
				So(h, ShouldResemble, metrics.ErrorHeatmap{"l": 1, metrics.KeyMissing: 1})
			})
		})

		Convey("When the same target character is missed repeatedly", func() {
			h := metrics.Heatmap("xxxx", "aaaa")
			So(h, ShouldResemble, metrics.ErrorHeatmap{"a": 4})
			So(h.Misses(), ShouldEqual, 4)
		})

		Convey("When texts are multi-byte", func() {
			h := metrics.Heatmap("你们", "你好吗")
			So(h, ShouldResemble, metrics.ErrorHeatmap{"好": 1, metrics.KeyMissing: 1})
		})

		Convey("Then positional misses never exceed the overlap", func() {
			pairs := [][2]string{{"abc", "xyzw"}, {"hello world", "help"}, {"", "abc"}}
			for _, p := range pairs {
				h := metrics.Heatmap(p[0], p[1])
				overlap := min(len([]rune(p[0])), len([]rune(p[1])))
				So(h.Misses(), ShouldBeLessThanOrEqualTo, overlap)
			}
		})
	})
}

func TestRates(t *testing.T) {
	Convey("Given the rate calculator", t, func() {
		Convey("When 50 characters are typed in a minute", func() {
			wpm, cpm := metrics.Rates(50, 60000)
			So(cpm, ShouldAlmostEqual, 50.0)
			So(wpm, ShouldAlmostEqual, 10.0)
		})

		Convey("When the duration is zero", func() {
			wpm, cpm := metrics.Rates(10, 0)

			Convey("Then it is clamped to one millisecond and stays finite", func() {
				So(math.IsInf(cpm, 0), ShouldBeFalse)
				So(math.IsNaN(wpm), ShouldBeFalse)
				So(cpm, ShouldAlmostEqual, 600000.0)
				So(wpm, ShouldAlmostEqual, 120000.0)
			})
		})

		Convey("When the duration is negative", func() {
			wpm, cpm := metrics.Rates(10, -500)
			wantWPM, wantCPM := metrics.Rates(10, 1)
			So(wpm, ShouldEqual, wantWPM)
			So(cpm, ShouldEqual, wantCPM)
		})

		Convey("When nothing is typed", func() {
			wpm, cpm := metrics.Rates(0, 30000)
			So(wpm, ShouldEqual, 0.0)
			So(cpm, ShouldEqual, 0.0)
		})

		Convey("When clamping durations directly", func() {
			So(metrics.ClampDuration(-3), ShouldEqual, int64(1))
			So(metrics.ClampDuration(0), ShouldEqual, int64(1))
			So(metrics.ClampDuration(1500), ShouldEqual, int64(1500))
		})
	})
}

func TestCompute(t *testing.T) {
	Convey("Given a typing trial", t, func() {
		in := metrics.Input{Lang: "en", TypedText: "hallo", TargetText: "hello", DurationMS: 6000}

		Convey("When computing its metrics", func() {
			m := metrics.Compute(in)

			Convey("Then distance and cer follow the target length", func() {
				So(m.Distance, ShouldEqual, 1)
				So(m.CER, ShouldAlmostEqual, 0.2)
				So(m.Accuracy, ShouldAlmostEqual, 80.0)
			})

			Convey("And rates use the typed length", func() {
				So(m.CPM, ShouldAlmostEqual, 50.0)
				So(m.WPM, ShouldAlmostEqual, 10.0)
				So(m.DurationMS, ShouldEqual, int64(6000))
			})

			Convey("And the heatmap is attached", func() {
				So(m.ErrorHeatmap, ShouldResemble, metrics.ErrorHeatmap{"e": 1})
			})

			Convey("And a second computation yields the same result", func() {
				So(metrics.Compute(in), ShouldResemble, m)
			})
		})

		Convey("When the target is empty", func() {
			m := metrics.Compute(metrics.Input{TypedText: "abc", TargetText: "", DurationMS: 1000})

			Convey("Then cer divides by one", func() {
				So(m.Distance, ShouldEqual, 3)
				So(m.CER, ShouldEqual, 3.0)
				So(m.Accuracy, ShouldEqual, 0.0)
				So(m.ErrorHeatmap, ShouldResemble, metrics.ErrorHeatmap{metrics.KeyExtra: 3})
			})
		})

		Convey("When the trial is perfect", func() {
			m := metrics.Compute(metrics.Input{Lang: "zh", TypedText: "你好", TargetText: "你好", DurationMS: 0})

			Convey("Then distance is zero and the duration is clamped", func() {
				So(m.Distance, ShouldEqual, 0)
				So(m.CER, ShouldEqual, 0.0)
				So(m.Accuracy, ShouldEqual, 100.0)
				So(m.DurationMS, ShouldEqual, int64(1))
				So(m.ErrorHeatmap, ShouldBeEmpty)
			})
		})

		Convey("Then distance is zero exactly when the texts match", func() {
			So(metrics.Compute(metrics.Input{TypedText: "a ", TargetText: "a"}).Distance, ShouldBeGreaterThan, 0)
			So(metrics.Compute(metrics.Input{TypedText: "A", TargetText: "a"}).Distance, ShouldBeGreaterThan, 0)
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given the aggregator", t, func() {
		Convey("When there are no records", func() {
			p := metrics.Aggregate(nil)

			Convey("Then every mean is zero and no packs are listed", func() {
				So(p.Overall, ShouldResemble, metrics.Summary{})
				So(p.PerPack, ShouldNotBeNil)
				So(p.PerPack, ShouldBeEmpty)
			})
		})

		Convey("When two records share a pack", func() {
			p := metrics.Aggregate([]metrics.Record{
				{WPM: 40, CPM: 200, CER: 0.1, PackID: "A"},
				{WPM: 60, CPM: 300, CER: 0.3, PackID: "A"},
			})

			Convey("Then the pack entry averages them", func() {
				So(p.PerPack, ShouldHaveLength, 1)
				So(p.PerPack[0].PackID, ShouldEqual, "A")
				So(p.PerPack[0].Attempts, ShouldEqual, 2)
				So(p.PerPack[0].WPM, ShouldAlmostEqual, 50.0)
				So(p.PerPack[0].CPM, ShouldAlmostEqual, 250.0)
				So(p.PerPack[0].CER, ShouldAlmostEqual, 0.2)
				So(p.Overall, ShouldResemble, p.PerPack[0].Summary)
			})
		})

		Convey("When records have mixed and missing packs", func() {
			p := metrics.Aggregate([]metrics.Record{
				{WPM: 30, PackID: "hsk1"},
				{WPM: 50},
				{WPM: 70, PackID: "HSK1"},
				{WPM: 10, PackID: "hsk1"},
			})

			Convey("Then missing ids go to the unknown bucket and keys are case-sensitive", func() {
				So(p.Overall.Attempts, ShouldEqual, 4)
				So(p.Overall.WPM, ShouldAlmostEqual, 40.0)
				So(p.PerPack, ShouldHaveLength, 3)

				byID := map[string]metrics.PackSummary{}
				for _, ps := range p.PerPack {
					byID[ps.PackID] = ps
				}
				So(byID["hsk1"].Attempts, ShouldEqual, 2)
				So(byID["hsk1"].WPM, ShouldAlmostEqual, 20.0)
				So(byID["HSK1"].Attempts, ShouldEqual, 1)
				So(byID[metrics.UnknownPack].Attempts, ShouldEqual, 1)
				So(byID[metrics.UnknownPack].WPM, ShouldAlmostEqual, 50.0)
			})
		})
	})
}
