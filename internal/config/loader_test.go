package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keystride/keystride/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars(t)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("KEYSTRIDE_ADDR", ":8080")
			t.Setenv("KEYSTRIDE_QUEUE_SIZE", "64")
			t.Setenv("KEYSTRIDE_WORKER_COUNT", "16")
			t.Setenv("KEYSTRIDE_SOURCE_RPS", "2.5")
			t.Setenv("KEYSTRIDE_WATCH_PACKS", "false")
			t.Setenv("KEYSTRIDE_CORS_ORIGINS", "http://localhost:5173, https://typing.example.com")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.SourceRPS, convey.ShouldEqual, 2.5)
				convey.So(cfg.WatchPacks, convey.ShouldBeFalse)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://localhost:5173", "https://typing.example.com"})
				convey.So(cfg.DBPath, convey.ShouldEqual, "data/typing.db")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			clearConfigEnvVars(t)
			t.Setenv("KEYSTRIDE_CONFIG", writeConfigFile(t, `
# service
addr: ":9090"  # inline
db_path: /tmp/keystride/test.db
queue_size: 300
log_format: json
cors_origins:
  - https://a.example.com
`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/keystride/test.db")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example.com"})
				convey.So(cfg.MaxItemsLimit, convey.ShouldEqual, 500)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("KEYSTRIDE_CONFIG", writeConfigFile(t, "addr: \":9090\"\nworker_count: 24\nqueue_size: 300\n"))
			t.Setenv("KEYSTRIDE_ADDR", ":8080")
			t.Setenv("KEYSTRIDE_WORKER_COUNT", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			clearConfigEnvVars(t)
			t.Setenv("KEYSTRIDE_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			clearConfigEnvVars(t)
			t.Setenv("KEYSTRIDE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			clearConfigEnvVars(t)
			t.Setenv("KEYSTRIDE_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config values the service cannot run with", t, func() {
		ctx := context.Background()

		cases := map[string]string{
			"KEYSTRIDE_ADDR":         "",
			"KEYSTRIDE_DB_PATH":      "",
			"KEYSTRIDE_WORKER_COUNT": "0",
			"KEYSTRIDE_QUEUE_SIZE":   "-100",
		}
		for key, value := range cases {
			convey.Convey("When "+key+" is "+quote(value), func() {
				clearConfigEnvVars(t)
				t.Setenv(key, value)

				cfg, err := config.Load(ctx)

				convey.Convey("Then it should return a validation error", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(cfg, convey.ShouldBeNil)
				})
			})
		}

		convey.Convey("When the dedupe cache is disabled", func() {
			clearConfigEnvVars(t)
			t.Setenv("KEYSTRIDE_DEDUPE_SIZE", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it is accepted as unbounded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 0)
			})
		})
	})
}

func quote(s string) string { return `"` + s + `"` }

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "KEYSTRIDE_") {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keystride.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
