package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/keystride/keystride/internal/adapters/http/api"
	service "github.com/keystride/keystride/internal/app"
	"github.com/keystride/keystride/internal/ratelimit"
	"github.com/keystride/keystride/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newService(t *testing.T) *service.Service {
	t.Helper()
	packsDir := t.TempDir()
	dir := filepath.Join(packsDir, "hsk1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"metadata.json": `{"name":"HSK 1","languages":["zh","en"],"topics":["hsk"]}`,
		"items.jsonl":   "{\"id\":\"h1\",\"text\":\"你好\"}\n{\"id\":\"h2\",\"text\":\"谢谢\",\"tags\":[\"polite\"]}\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	svc := service.New(
		service.WithDBPath(filepath.Join(t.TempDir(), "typing.db")),
		service.WithPacksDir(packsDir),
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithSeedDemoUser(true),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

const helloAttempt = `{"user_id":"u1","item_id":"h1","pack_id":"hsk1","lang":"en","typed_text":"hello","target_text":"hello","duration_ms":1000}`

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server over a running service", t, func() {
		svc := newService(t)
		defer svc.Stop()
		srv := api.NewServer(svc)

		Convey("When calling the root", func() {
			w := do(srv, http.MethodGet, "/", "")

			Convey("Then it lists the endpoints", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["status"], ShouldEqual, "ok")
				So(body["endpoints"], ShouldContain, "/users/{id}/progress")
			})
		})

		Convey("When probing health, stats and metrics", func() {
			So(do(srv, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)

			stats := do(srv, http.MethodGet, "/stats", "")
			So(stats.Code, ShouldEqual, http.StatusOK)
			So(decode(stats)["started"], ShouldEqual, true)

			m := do(srv, http.MethodGet, "/metrics", "")
			So(m.Code, ShouldEqual, http.StatusOK)
			So(m.Body.String(), ShouldContainSubstring, "keystride_")
		})

		Convey("When submitting a complete attempt", func() {
			w := do(srv, http.MethodPost, "/attempts", helloAttempt)

			Convey("Then it is scored and stored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["ok"], ShouldEqual, true)
				So(body["attempt_id"], ShouldEqual, 1.0)
				metrics := body["metrics"].(map[string]any)
				So(metrics["wpm"], ShouldAlmostEqual, 60.0)
				So(metrics["error_heatmap"], ShouldBeEmpty)
				So(body["new_achievements"], ShouldHaveLength, 3)
				streak := body["streak"].(map[string]any)
				So(streak["current_streak"], ShouldEqual, 1.0)
			})

			Convey("And the user's views reflect it", func() {
				progress := decode(do(srv, http.MethodGet, "/users/u1/progress", ""))
				overall := progress["overall"].(map[string]any)
				So(overall["attempts"], ShouldEqual, 1.0)
				So(progress["per_pack"], ShouldHaveLength, 1)

				attempts := decode(do(srv, http.MethodGet, "/users/u1/attempts?pack_id=hsk1", ""))
				So(attempts["total"], ShouldEqual, 1.0)
				So(attempts["pack_id"], ShouldEqual, "hsk1")

				all := decode(do(srv, http.MethodGet, "/users/u1/attempts", ""))
				So(all["pack_id"], ShouldBeNil)

				streak := decode(do(srv, http.MethodGet, "/users/u1/streak", ""))
				So(streak["longest_streak"], ShouldEqual, 1.0)

				ach := decode(do(srv, http.MethodGet, "/users/u1/achievements", ""))
				So(ach["total_achievements"], ShouldEqual, 14.0)
				So(ach["earned_count"], ShouldEqual, 3.0)

				board := do(srv, http.MethodGet, "/leaderboard?limit=5", "")
				So(board.Code, ShouldEqual, http.StatusOK)
				So(board.Body.String(), ShouldContainSubstring, `"user_id":"u1"`)

				rank := decode(do(srv, http.MethodGet, "/users/u1/rank", ""))
				So(rank["rank"], ShouldEqual, 1.0)
			})
		})

		Convey("When a required field is missing", func() {
			w := do(srv, http.MethodPost, "/attempts", `{"user_id":"u1","item_id":"h1","lang":"en","typed_text":"x","target_text":"x"}`)

			Convey("Then the request is rejected with the field named", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decode(w)
				So(body["code"], ShouldEqual, "validation_failed")
				So(body["message"], ShouldContainSubstring, "duration_ms")
			})
		})

		Convey("When texts are present but empty", func() {
			w := do(srv, http.MethodPost, "/attempts", `{"user_id":"u1","item_id":"h1","lang":"en","typed_text":"","target_text":"","duration_ms":0}`)

			Convey("Then the attempt is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["metrics"].(map[string]any)["distance"], ShouldEqual, 0.0)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(srv, http.MethodPost, "/attempts", `{not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When a submission is retried", func() {
			body := `{"submission_id":"s-1",` + helloAttempt[1:]
			So(do(srv, http.MethodPost, "/attempts", body).Code, ShouldEqual, http.StatusOK)
			w := do(srv, http.MethodPost, "/attempts", body)

			Convey("Then the retry conflicts", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode(w)["code"], ShouldEqual, "conflict")
			})
		})

		Convey("When computing metrics without storing", func() {
			w := do(srv, http.MethodPost, "/metrics/compute", `{"lang":"en","typed_text":"hallo","target_text":"hello","duration_ms":6000}`)

			Convey("Then the engine output is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["cer"], ShouldAlmostEqual, 0.2)
				So(body["error_heatmap"], ShouldResemble, map[string]any{"e": 1.0})
				So(svc.GetStats(context.Background()).Attempts, ShouldEqual, 0)
			})
		})

		Convey("When managing users", func() {
			w := do(srv, http.MethodPost, "/users", `{"user_id":"ada","username":"Ada"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["user_id"], ShouldEqual, "ada")

			So(do(srv, http.MethodPost, "/users", `{"user_id":"ada","username":"Again"}`).Code, ShouldEqual, http.StatusConflict)
			So(do(srv, http.MethodPost, "/users", `{"user_id":"bob"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(srv, http.MethodPost, "/users", `{"username":"x","email":"nope"}`).Code, ShouldEqual, http.StatusBadRequest)

			generated := decode(do(srv, http.MethodPost, "/users", `{"username":"anon"}`))
			So(generated["user_id"], ShouldHaveLength, 36)

			got := do(srv, http.MethodGet, "/users/ada", "")
			So(got.Code, ShouldEqual, http.StatusOK)
			So(decode(got)["username"], ShouldEqual, "Ada")

			So(do(srv, http.MethodGet, "/users/demo-user", "").Code, ShouldEqual, http.StatusOK)

			missing := do(srv, http.MethodGet, "/users/ghost", "")
			So(missing.Code, ShouldEqual, http.StatusNotFound)
			So(decode(missing)["code"], ShouldEqual, "not_found")
		})

		Convey("When browsing packs", func() {
			list := do(srv, http.MethodGet, "/packs?lang=zh", "")
			So(list.Code, ShouldEqual, http.StatusOK)
			So(list.Body.String(), ShouldContainSubstring, `"id":"hsk1"`)

			items := decode(do(srv, http.MethodGet, "/packs/hsk1/items?tag=polite", ""))
			So(items["limit"], ShouldEqual, 50.0)
			So(items["items"], ShouldHaveLength, 1)

			So(do(srv, http.MethodGet, "/packs/nope/items", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(srv, http.MethodGet, "/packs/hsk1/items?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When using external sources", func() {
			list := do(srv, http.MethodGet, "/external/sources", "")
			So(list.Code, ShouldEqual, http.StatusOK)
			So(list.Body.String(), ShouldContainSubstring, "hsk-level1")

			w := do(srv, http.MethodGet, "/external/sources/unknown", "")
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(decode(w)["code"], ShouldEqual, "upstream_unavailable")
		})

		Convey("When the leaderboard limit is out of range", func() {
			So(do(srv, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(srv, http.MethodGet, "/leaderboard?limit=1000", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(srv, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When ranking a user without attempts", func() {
			So(do(srv, http.MethodGet, "/users/ghost/rank", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path is unknown", func() {
			w := do(srv, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("When a browser sends a preflight request", func() {
			req := httptest.NewRequest(http.MethodOptions, "/attempts", http.NoBody)
			req.Header.Set("Origin", "http://example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			Convey("Then any origin is allowed by default", func() {
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldNotBeEmpty)
			})
		})
	})
}

func TestServer_RateLimit(t *testing.T) {
	Convey("Given a server that allows one submission per user", t, func() {
		svc := newService(t)
		defer svc.Stop()
		limiter := ratelimit.New(0.001, 1)
		defer limiter.Stop()
		srv := api.NewServer(svc, api.WithSubmitLimiter(limiter))

		Convey("When a user submits twice in a row", func() {
			first := do(srv, http.MethodPost, "/attempts", helloAttempt)
			second := do(srv, http.MethodPost, "/attempts", helloAttempt)

			Convey("Then the second is throttled", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode(second)["code"], ShouldEqual, "rate_limited")
			})

			Convey("And other users are unaffected", func() {
				other := strings.Replace(helloAttempt, `"u1"`, `"u2"`, 1)
				So(do(srv, http.MethodPost, "/attempts", other).Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestServer_Feed(t *testing.T) {
	Convey("Given a client following a user's feed", t, func() {
		svc := newService(t)
		defer svc.Stop()
		ts := httptest.NewServer(api.NewServer(svc))
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/users/u1/feed"
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer func() { _ = conn.Close() }()
		So(resp.StatusCode, ShouldEqual, http.StatusSwitchingProtocols)

		Convey("When the user submits an attempt", func() {
			res, err := http.Post(ts.URL+"/attempts", "application/json", strings.NewReader(helloAttempt))
			So(err, ShouldBeNil)
			_ = res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusOK)

			Convey("Then an attempt message arrives", func() {
				_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
				var msg map[string]any
				So(conn.ReadJSON(&msg), ShouldBeNil)
				So(msg["type"], ShouldEqual, "attempt")
				So(msg["user_id"], ShouldEqual, "u1")
				So(msg["unlocked"], ShouldContain, "first_lesson")
			})
		})

		Convey("When the client pings", func() {
			So(conn.WriteJSON(map[string]string{"type": "ping"}), ShouldBeNil)

			Convey("Then the server answers", func() {
				_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
				var msg map[string]any
				So(conn.ReadJSON(&msg), ShouldBeNil)
				So(msg["type"], ShouldEqual, "pong")
			})
		})
	})
}

func TestServer_NotStarted(t *testing.T) {
	Convey("Given a server over a stopped service", t, func() {
		svc := service.New(service.WithDBPath(filepath.Join(t.TempDir(), "typing.db")))
		srv := api.NewServer(svc)

		Convey("Then requests report the service as unavailable", func() {
			So(do(srv, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusServiceUnavailable)
			w := do(srv, http.MethodGet, "/users/u1/streak", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "unavailable")
		})
	})
}
