package achievement

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind names the statistic a rule compares.
type Kind string

// Rule kinds.
const (
	KindAttempts      Kind = "attempts"
	KindBestWPM       Kind = "wpm"
	KindBestAccuracy  Kind = "accuracy"
	KindStreak        Kind = "streak"
	KindLanguages     Kind = "languages"
	KindLangAttempts  Kind = "lang_attempts"
	KindPacksMatching Kind = "packs_matching"
)

// Op is a rule comparison.
type Op string

// Comparison operators.
const (
	OpAtLeast Op = ">="
	OpEqual   Op = "=="
)

// ErrInvalidRule is returned by ParseRule.
var ErrInvalidRule = errors.New("invalid achievement rule")

// Rule is a single threshold condition over a user's Stats.
// Param carries the language for KindLangAttempts and the pack id substring
// for KindPacksMatching.
type Rule struct {
	Kind      Kind
	Param     string
	Op        Op
	Threshold float64
}

// Constructors for the rule kinds.
func Attempts(n int) Rule      { return Rule{Kind: KindAttempts, Op: OpAtLeast, Threshold: float64(n)} }
func BestWPM(wpm float64) Rule { return Rule{Kind: KindBestWPM, Op: OpAtLeast, Threshold: wpm} }
func BestAccuracy(p float64) Rule {
	return Rule{Kind: KindBestAccuracy, Op: OpAtLeast, Threshold: p}
}
func Streak(days int) Rule { return Rule{Kind: KindStreak, Op: OpAtLeast, Threshold: float64(days)} }
func Languages(n int) Rule { return Rule{Kind: KindLanguages, Op: OpAtLeast, Threshold: float64(n)} }
func LangAttempts(lang string, n int) Rule {
	return Rule{Kind: KindLangAttempts, Param: lang, Op: OpAtLeast, Threshold: float64(n)}
}
func PacksMatching(substr string, n int) Rule {
	return Rule{Kind: KindPacksMatching, Param: substr, Op: OpAtLeast, Threshold: float64(n)}
}

// String renders the rule in its stored text form, e.g. "wpm >= 50" or
// "attempts[zh] >= 50".
func (r Rule) String() string {
	var subject string
	switch r.Kind {
	case KindLangAttempts:
		subject = "attempts[" + r.Param + "]"
	case KindPacksMatching:
		subject = "packs[" + r.Param + "]"
	default:
		subject = string(r.Kind)
	}
	return fmt.Sprintf("%s %s %s", subject, r.Op, strconv.FormatFloat(r.Threshold, 'f', -1, 64))
}

// legacySubjects maps the subjects used by older databases.
var legacySubjects = map[string]Rule{
	"chinese_attempts": {Kind: KindLangAttempts, Param: "zh"},
	"hsk_packs":        {Kind: KindPacksMatching, Param: "hsk"},
}

// ParseRule parses the text produced by Rule.String. The subjects
// "chinese_attempts" and "hsk_packs" are also accepted.
func ParseRule(s string) (Rule, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
	}

	subject, op, value := fields[0], Op(fields[1]), fields[2]
	if op != OpAtLeast && op != OpEqual {
		return Rule{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, op)
	}
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: threshold %q: %w", ErrInvalidRule, value, err)
	}

	r, ok := legacySubjects[subject]
	if !ok {
		r, err = parseSubject(subject)
		if err != nil {
			return Rule{}, err
		}
	}
	r.Op = op
	r.Threshold = threshold
	return r, nil
}

func parseSubject(subject string) (Rule, error) {
	if name, param, ok := strings.Cut(subject, "["); ok {
		param, closed := strings.CutSuffix(param, "]")
		if !closed || param == "" {
			return Rule{}, fmt.Errorf("%w: subject %q", ErrInvalidRule, subject)
		}
		switch name {
		case "attempts":
			return Rule{Kind: KindLangAttempts, Param: param}, nil
		case "packs":
			return Rule{Kind: KindPacksMatching, Param: param}, nil
		}
		return Rule{}, fmt.Errorf("%w: subject %q", ErrInvalidRule, subject)
	}

	switch k := Kind(subject); k {
	case KindAttempts, KindBestWPM, KindBestAccuracy, KindStreak, KindLanguages:
		return Rule{Kind: k}, nil
	}
	return Rule{}, fmt.Errorf("%w: subject %q", ErrInvalidRule, subject)
}
