package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/keystride/keystride/internal/adapters/packs"
	"github.com/keystride/keystride/internal/adapters/repository"
	"github.com/keystride/keystride/internal/adapters/sources"
	service "github.com/keystride/keystride/internal/app"
	"github.com/keystride/keystride/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func writePacks(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "hsk1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := `{"name":"HSK 1","languages":["zh","en"],"topics":["hsk"]}`
	items := "{\"id\":\"h1\",\"text\":\"你好\",\"tags\":[\"greeting\"]}\n{\"id\":\"h2\",\"text\":\"谢谢\"}\n"
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "items.jsonl"), []byte(items), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func newTestService(t *testing.T, opts ...service.Option) (*service.Service, *clock) {
	t.Helper()
	c := newClock()
	base := []service.Option{
		service.WithDBPath(filepath.Join(t.TempDir(), "typing.db")),
		service.WithPacksDir(writePacks(t)),
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithClock(c.Now),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc, c
}

func perfect(user string) service.SubmitRequest {
	return service.SubmitRequest{
		UserID:     user,
		ItemID:     "h1",
		PackID:     "hsk1",
		Lang:       "en",
		TypedText:  "hello",
		TargetText: "hello",
		DurationMS: 1000,
	}
}

func achievementIDs(res service.SubmitResult) []string {
	ids := make([]string, len(res.NewAchievements))
	for i, d := range res.NewAchievements {
		ids[i] = d.ID
	}
	return ids
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that has not been started", t, func() {
		svc := service.New(service.WithDBPath(filepath.Join(t.TempDir(), "typing.db")))

		Convey("Then operations report it", func() {
			_, err := svc.SubmitAttempt(ctx, perfect("u1"))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats(ctx).Started, ShouldBeFalse)
			So(svc.Ready(ctx), ShouldNotBeNil)
		})

		Convey("When it is started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats(ctx).Started, ShouldBeTrue)
			So(svc.Ready(ctx), ShouldBeNil)
			svc.Stop()
			svc.Stop()

			Convey("Then it is marked as stopped", func() {
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
			})
		})
	})
}

func TestService_SubmitAttempt(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running service", t, func() {
		svc, clk := newTestService(t)
		defer svc.Stop()

		Convey("When a perfect attempt is submitted", func() {
			res, err := svc.SubmitAttempt(ctx, perfect("u1"))
			So(err, ShouldBeNil)

			Convey("Then the metrics are computed and stored", func() {
				So(res.OK, ShouldBeTrue)
				So(res.AttemptID, ShouldBeGreaterThan, 0)
				So(res.Metrics.WPM, ShouldAlmostEqual, 60.0)
				So(res.Metrics.Accuracy, ShouldEqual, 100.0)
				So(res.Streak.Current, ShouldEqual, 1)
				So(res.Streak.LastPracticeDate, ShouldEqual, "2026-03-01")
			})

			Convey("And the matching achievements unlock in catalog order", func() {
				So(achievementIDs(res), ShouldResemble, []string{"first_lesson", "speed_demon_50", "accuracy_master"})
			})

			Convey("And a second attempt does not unlock them again", func() {
				again, err := svc.SubmitAttempt(ctx, perfect("u1"))
				So(err, ShouldBeNil)
				So(again.NewAchievements, ShouldBeEmpty)
				So(again.Streak.Current, ShouldEqual, 1)
			})
		})

		Convey("When attempts are submitted on consecutive days", func() {
			_, err := svc.SubmitAttempt(ctx, perfect("u1"))
			So(err, ShouldBeNil)
			clk.Advance(24 * time.Hour)
			res, err := svc.SubmitAttempt(ctx, perfect("u1"))
			So(err, ShouldBeNil)

			Convey("Then the streak grows", func() {
				So(res.Streak.Current, ShouldEqual, 2)
				So(res.Streak.Longest, ShouldEqual, 2)
			})

			Convey("And a gap resets it", func() {
				clk.Advance(72 * time.Hour)
				res, err := svc.SubmitAttempt(ctx, perfect("u1"))
				So(err, ShouldBeNil)
				So(res.Streak.Current, ShouldEqual, 1)
				So(res.Streak.Longest, ShouldEqual, 2)
			})
		})

		Convey("When a submission id is retried", func() {
			req := perfect("u1")
			req.SubmissionID = "sub-1"
			_, err := svc.SubmitAttempt(ctx, req)
			So(err, ShouldBeNil)
			_, err = svc.SubmitAttempt(ctx, req)

			Convey("Then the retry is rejected and nothing is stored twice", func() {
				So(errors.Is(err, service.ErrDuplicateSubmission), ShouldBeTrue)
				page, err := svc.Attempts(ctx, "u1", service.AttemptQuery{})
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
			})
		})

		Convey("When the language tag is not canonical", func() {
			req := perfect("u1")
			req.Lang = "EN-us"
			_, err := svc.SubmitAttempt(ctx, req)
			So(err, ShouldBeNil)

			Convey("Then it is stored canonicalised", func() {
				page, err := svc.Attempts(ctx, "u1", service.AttemptQuery{})
				So(err, ShouldBeNil)
				So(page.Attempts[0].Lang, ShouldEqual, "en-US")
			})
		})

		Convey("When the user follows the live feed", func() {
			events, cancel, err := svc.Subscribe("u1")
			So(err, ShouldBeNil)
			defer cancel()

			res, err := svc.SubmitAttempt(ctx, perfect("u1"))
			So(err, ShouldBeNil)

			Convey("Then the processed attempt is delivered", func() {
				select {
				case ev := <-events:
					So(ev.AttemptID, ShouldEqual, res.AttemptID)
					So(ev.Unlocked, ShouldContain, "first_lesson")
				case <-time.After(2 * time.Second):
					So("no feed event", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestService_CanonicalLang(t *testing.T) {
	Convey("Given language tags", t, func() {
		So(service.CanonicalLang("en"), ShouldEqual, "en")
		So(service.CanonicalLang("zh-hans"), ShouldEqual, "zh-Hans")
		So(service.CanonicalLang("not a tag!"), ShouldEqual, "not a tag!")
		So(service.CanonicalLang(""), ShouldEqual, "")
	})
}

func TestService_Queries(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with some history", t, func() {
		svc, _ := newTestService(t, service.WithSeedDemoUser(true))
		defer svc.Stop()

		_, err := svc.SubmitAttempt(ctx, perfect("u1"))
		So(err, ShouldBeNil)
		slow := perfect("u1")
		slow.PackID = ""
		slow.DurationMS = 3000
		_, err = svc.SubmitAttempt(ctx, slow)
		So(err, ShouldBeNil)

		Convey("When reading progress", func() {
			p, err := svc.Progress(ctx, "u1")
			So(err, ShouldBeNil)

			Convey("Then means and totals cover every attempt", func() {
				So(p.Overall.Attempts, ShouldEqual, 2)
				So(p.Overall.WPM, ShouldAlmostEqual, 40.0)
				So(p.Overall.BestWPM, ShouldAlmostEqual, 60.0)
				So(p.Overall.TotalTimeMS, ShouldEqual, int64(4000))
				So(p.PerPack, ShouldHaveLength, 2)
				So(p.Streak.Current, ShouldEqual, 1)
			})
		})

		Convey("When listing attempts for one pack", func() {
			page, err := svc.Attempts(ctx, "u1", service.AttemptQuery{PackID: "hsk1"})
			So(err, ShouldBeNil)
			So(page.Total, ShouldEqual, 1)
			So(*page.PackID, ShouldEqual, "hsk1")

			all, err := svc.Attempts(ctx, "u1", service.AttemptQuery{Limit: 1})
			So(err, ShouldBeNil)
			So(all.PackID, ShouldBeNil)
			So(all.Attempts, ShouldHaveLength, 1)
		})

		Convey("When reading achievements", func() {
			report, err := svc.Achievements(ctx, "u1")
			So(err, ShouldBeNil)

			Convey("Then earned and locked entries are reported with progress", func() {
				So(report.TotalAchievements, ShouldEqual, 14)
				So(report.EarnedCount, ShouldEqual, 3)
				for _, a := range report.Achievements {
					switch a.ID {
					case "first_lesson":
						So(a.Earned, ShouldBeTrue)
						So(a.EarnedAt, ShouldNotBeNil)
					case "marathon_10":
						So(a.Earned, ShouldBeFalse)
						So(a.Progress, ShouldAlmostEqual, 0.2)
						So(a.Criteria, ShouldEqual, "attempts >= 10")
					}
				}
			})
		})

		Convey("When managing users", func() {
			u, err := svc.CreateUser(ctx, service.CreateUserRequest{Username: "ada"})
			So(err, ShouldBeNil)
			So(u.ID, ShouldHaveLength, 36)

			_, err = svc.CreateUser(ctx, service.CreateUserRequest{UserID: u.ID, Username: "other"})
			So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)

			got, err := svc.GetUser(ctx, u.ID)
			So(err, ShouldBeNil)
			So(got.Username, ShouldEqual, "ada")

			_, err = svc.GetUser(ctx, repository.DemoUserID)
			So(err, ShouldBeNil)

			_, err = svc.GetUser(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When browsing packs", func() {
			list, err := svc.Packs(ctx, packs.Filter{Lang: "zh"})
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)

			page, err := svc.PackItems(ctx, "hsk1", packs.ItemQuery{})
			So(err, ShouldBeNil)
			So(page.Limit, ShouldEqual, 50)
			So(page.Items, ShouldHaveLength, 2)

			_, err = svc.PackItems(ctx, "missing", packs.ItemQuery{})
			So(errors.Is(err, packs.ErrPackNotFound), ShouldBeTrue)
		})

		Convey("When using external sources", func() {
			list, err := svc.Sources()
			So(err, ShouldBeNil)
			So(len(list), ShouldBeGreaterThanOrEqualTo, 2)

			_, err = svc.FetchSource(ctx, "missing", 10)
			So(errors.Is(err, sources.ErrSourceNotAvailable), ShouldBeTrue)
		})

		Convey("When ranking users", func() {
			_, err := svc.SubmitAttempt(ctx, service.SubmitRequest{UserID: "u2", Lang: "en", TypedText: "hi", TargetText: "hi", DurationMS: 60000})
			So(err, ShouldBeNil)

			board, err := svc.Leaderboard(ctx, 0)
			So(err, ShouldBeNil)
			So(board, ShouldHaveLength, 2)
			So(board[0].UserID, ShouldEqual, "u1")
			So(board[0].Rank, ShouldEqual, 1)

			entry, err := svc.Rank(ctx, "u2")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 2)
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats(ctx)
			So(stats.Started, ShouldBeTrue)
			So(stats.Attempts, ShouldEqual, 2)
			So(stats.Users, ShouldEqual, 1)
			So(stats.QueueCapacity, ShouldEqual, 64)
		})
	})
}
