package loadgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keystride/keystride/pkg/logger"
)

// Typo probabilities per target rune.
const (
	substituteRate = 0.04
	dropRate       = 0.02
	insertRate     = 0.02
	truncateRate   = 0.1
)

// Duration model: a base typing speed with jitter, in ms per rune.
const (
	minMSPerRune = 80
	maxMSPerRune = 450
)

type phrase struct {
	itemID string
	packID string
	lang   string
	text   string
}

var corpus = []phrase{
	{"en-001", "en-basics", "en", "the quick brown fox jumps over the lazy dog"},
	{"en-002", "en-basics", "en", "practice makes perfect"},
	{"en-003", "en-basics", "en", "hello world"},
	{"en-004", "en-travel", "en", "where is the train station"},
	{"en-005", "en-travel", "en", "a table for two please"},
	{"en-006", "", "en", "typing every day keeps the streak alive"},
	{"hsk1-001", "hsk1", "zh", "你好"},
	{"hsk1-002", "hsk1", "zh", "谢谢你"},
	{"hsk1-003", "hsk1", "zh", "我是学生"},
	{"hsk2-001", "hsk2", "zh", "今天天气很好"},
	{"hsk2-002", "hsk2", "zh", "我们一起去吃饭吧"},
	{"hsk3-001", "hsk3", "zh", "学习中文很有意思"},
}

const substitutes = "abcdefghijklmnopqrstuvwxyz的一是不了人我在有他这中大来上"

// generator produces attempts from a seeded source.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64) *generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// generateAttempts creates attemptsPerUser attempts for every user.
func generateAttempts(ctx context.Context, config *Config, users []string, stats *Stats) ([]Attempt, error) {
	logger.Get().Info(ctx, "generating attempts",
		logger.Int("users", len(users)),
		logger.Int("attemptsPerUser", config.AttemptsPerUser))

	g := newGenerator(config.Seed)
	attempts := make([]Attempt, 0, len(users)*config.AttemptsPerUser)
	for _, user := range users {
		for range config.AttemptsPerUser {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled during generation: %w", err)
			}
			attempts = append(attempts, g.attempt(user))
		}
	}

	stats.AttemptsGenerated = len(attempts)
	logger.Get().Info(ctx, "generated attempts", logger.Int("count", len(attempts)))
	return attempts, nil
}

func (g *generator) attempt(userID string) Attempt {
	p := corpus[g.rng.IntN(len(corpus))]
	typed := g.typo(p.text)
	msPerRune := minMSPerRune + g.rng.IntN(maxMSPerRune-minMSPerRune)

	return Attempt{
		SubmissionID: uuid.NewString(),
		UserID:       userID,
		ItemID:       p.itemID,
		PackID:       p.packID,
		Lang:         p.lang,
		TypedText:    typed,
		TargetText:   p.text,
		DurationMS:   int64(len([]rune(typed))*msPerRune + g.rng.IntN(500)),
	}
}

// typo returns target with random substitutions, drops, insertions and
// sometimes an early stop.
func (g *generator) typo(target string) string {
	src := []rune(target)
	subs := []rune(substitutes)
	if g.rng.Float64() < truncateRate && len(src) > 1 {
		src = src[:1+g.rng.IntN(len(src)-1)]
	}

	var b strings.Builder
	for _, r := range src {
		switch x := g.rng.Float64(); {
		case x < dropRate:
			continue
		case x < dropRate+substituteRate:
			b.WriteRune(subs[g.rng.IntN(len(subs))])
		case x < dropRate+substituteRate+insertRate:
			b.WriteRune(r)
			b.WriteRune(subs[g.rng.IntN(len(subs))])
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
