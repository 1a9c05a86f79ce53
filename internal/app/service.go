// Package service wires storage, packs, sources and the attempt pipeline
// into the operations the HTTP API exposes.
package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/keystride/keystride/internal/adapters/feed"
	eventqueue "github.com/keystride/keystride/internal/adapters/mq/queue"
	workerpool "github.com/keystride/keystride/internal/adapters/mq/worker"
	"github.com/keystride/keystride/internal/adapters/packs"
	"github.com/keystride/keystride/internal/adapters/repository"
	"github.com/keystride/keystride/internal/adapters/sources"
	"github.com/keystride/keystride/internal/domain/achievement"
	"github.com/keystride/keystride/internal/domain/dedupe"
	typing "github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/internal/domain/model"
	"github.com/keystride/keystride/internal/domain/streak"
	"github.com/keystride/keystride/pkg/logger"
	"github.com/keystride/keystride/pkg/metrics"
)

const (
	defaultItemsLimit       = 50
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	drainTimeout            = 10 * time.Second
	userLockStripes         = 64
)

// Service implements the API dependencies for the typing backend.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	catalog *packs.Catalog
	sources *sources.Registry
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool
	hub     *feed.Hub
	defs    []achievement.Definition

	// Attempt post-processing for one user is serialised so concurrent
	// submissions cannot both report the same unlock.
	userLocks [userLockStripes]sync.Mutex

	dbPath           string
	packsDir         string
	watchPacks       bool
	sourcesFile      string
	sourceTimeout    time.Duration
	sourceRPS        float64
	sourceBurst      int
	workerCount      int
	queueSize        int
	dedupeSize       int
	maxAttemptsLimit int
	maxItemsLimit    int
	seedDemoUser     bool
	now              func() time.Time

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{
		dbPath:           "data/typing.db",
		packsDir:         "packs",
		sourceTimeout:    15 * time.Second,
		sourceRPS:        1,
		sourceBurst:      3,
		workerCount:      runtime.NumCPU(),
		queueSize:        1024,
		dedupeSize:       dedupe.DefaultMaxSize,
		maxAttemptsLimit: 1000,
		maxItemsLimit:    500,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, seeds reference data and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting typing service...")

	store, err := repository.Open(ctx, s.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := s.seed(ctx, store); err != nil {
		_ = store.Close()
		return err
	}
	s.store = store

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.catalog = packs.NewCatalog(s.packsDir)
	if s.watchPacks {
		go func() {
			if err := s.catalog.Watch(runCtx); err != nil {
				s.logger.Warn(runCtx, "pack watcher stopped", logger.Error(err))
			}
		}()
	}

	s.sources = sources.NewRegistry(
		sources.WithCustomFile(s.sourcesFile),
		sources.WithTimeout(s.sourceTimeout),
		sources.WithRateLimit(s.sourceRPS, s.sourceBurst),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.hub = feed.NewHub()
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.hub)
	s.pool.Start(runCtx)

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "typing service started",
		logger.String("db", s.dbPath),
		logger.String("packs", s.packsDir),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("achievements", len(s.defs)),
	)
	return nil
}

func (s *Service) seed(ctx context.Context, store repository.Store) error {
	if err := store.SeedAchievements(ctx, achievement.Defaults()); err != nil {
		return fmt.Errorf("seed achievements: %w", err)
	}
	defs, err := store.ListAchievements(ctx)
	if err != nil {
		return fmt.Errorf("load achievements: %w", err)
	}
	s.defs = defs
	if s.seedDemoUser {
		if err := store.SeedDemoUser(ctx); err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		}
	}
	return nil
}

// Stop drains queued attempt events and releases every resource.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping typing service...")

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	if err := s.pool.Shutdown(drainCtx); err != nil {
		s.logger.Warn(ctx, "attempt events not drained", logger.Error(err))
	}
	cancel()

	s.hub.Close()
	s.cancel()
	s.sources.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "typing service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.userLocks[h.Sum32()%userLockStripes]
}

// SubmitAttempt scores a typing trial, stores it, advances the streak and
// unlocks achievements. A repeated SubmissionID fails with
// ErrDuplicateSubmission.
func (s *Service) SubmitAttempt(ctx context.Context, req SubmitRequest) (res SubmitResult, err error) {
	if err := s.running(); err != nil {
		return SubmitResult{}, err
	}
	start := time.Now()
	defer func() {
		if err == nil {
			metrics.RecordSubmitLatency(float64(time.Since(start).Milliseconds()))
		}
	}()

	if req.SubmissionID != "" && s.deduper.SeenAndRecord(ctx, req.SubmissionID) {
		metrics.RecordDuplicateSubmission()
		return SubmitResult{}, fmt.Errorf("submission %q: %w", req.SubmissionID, ErrDuplicateSubmission)
	}

	m := typing.Compute(typing.Input{
		Lang:       req.Lang,
		TypedText:  req.TypedText,
		TargetText: req.TargetText,
		DurationMS: req.DurationMS,
	})
	now := s.now().UTC()
	attempt := model.Attempt{
		UserID:     req.UserID,
		ItemID:     req.ItemID,
		PackID:     req.PackID,
		Lang:       CanonicalLang(req.Lang),
		TypedText:  req.TypedText,
		TargetText: req.TargetText,
		DurationMS: req.DurationMS,
		Metrics:    m,
		CreatedAt:  now,
	}

	lock := s.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	id, err := s.store.RecordAttempt(ctx, attempt)
	if err != nil {
		if req.SubmissionID != "" {
			s.deduper.Forget(ctx, req.SubmissionID)
		}
		return SubmitResult{}, fmt.Errorf("record attempt: %w", err)
	}

	st, err := s.store.UpdateStreak(ctx, req.UserID, streak.DayOf(now))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("update streak: %w", err)
	}

	unlocked, err := s.checkAchievements(ctx, req.UserID)
	if err != nil {
		return SubmitResult{}, err
	}

	ids := make([]string, len(unlocked))
	for i, d := range unlocked {
		ids[i] = d.ID
	}
	ev := model.AttemptEvent{
		AttemptID:  id,
		UserID:     req.UserID,
		PackID:     req.PackID,
		Lang:       attempt.Lang,
		Metrics:    m,
		Streak:     st,
		Unlocked:   ids,
		RecordedAt: now,
	}
	if err := s.queue.Enqueue(ctx, ev); err != nil {
		s.logger.Warn(ctx, "attempt event not queued",
			logger.Int64("attempt_id", id),
			logger.String("user_id", req.UserID),
			logger.Error(err),
		)
	}

	s.logger.Debug(ctx, "attempt recorded",
		logger.Int64("attempt_id", id),
		logger.String("user_id", req.UserID),
		logger.Float64("wpm", m.WPM),
		logger.Int("unlocked", len(unlocked)),
	)
	return SubmitResult{
		OK:              true,
		AttemptID:       id,
		Metrics:         m,
		Streak:          st,
		NewAchievements: unlocked,
	}, nil
}

func (s *Service) checkAchievements(ctx context.Context, userID string) ([]achievement.Definition, error) {
	stats, err := s.store.AchievementStats(ctx, userID, s.defs)
	if err != nil {
		return nil, fmt.Errorf("achievement stats: %w", err)
	}
	earned, err := s.store.EarnedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("earned achievements: %w", err)
	}
	have := make(map[string]bool, len(earned))
	for id := range earned {
		have[id] = true
	}

	unlocked := achievement.Evaluate(s.defs, stats, have)
	if len(unlocked) == 0 {
		return []achievement.Definition{}, nil
	}
	ids := make([]string, len(unlocked))
	for i, d := range unlocked {
		ids[i] = d.ID
	}
	if err := s.store.AwardAchievements(ctx, userID, ids); err != nil {
		return nil, fmt.Errorf("award achievements: %w", err)
	}
	for _, d := range unlocked {
		metrics.RecordAchievementUnlocked(string(d.Tier))
	}
	return unlocked, nil
}

// CanonicalLang normalises a BCP 47 tag, e.g. "en-us" to "en-US". Strings
// that do not parse are returned unchanged.
func CanonicalLang(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// ComputeMetrics runs the metrics engine without storing anything.
func (s *Service) ComputeMetrics(in typing.Input) typing.Metrics {
	return typing.Compute(in)
}

// CreateUser registers a learner.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (model.User, error) {
	if err := s.running(); err != nil {
		return model.User{}, err
	}
	id := req.UserID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now().UTC()
	u := model.User{
		ID:         id,
		Username:   req.Username,
		Email:      req.Email,
		CreatedAt:  now,
		LastActive: now,
		Settings:   "{}",
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return model.User{}, err
	}
	s.logger.Info(ctx, "user created", logger.String("user_id", id))
	return u, nil
}

// GetUser returns repository.ErrNotFound for unknown ids.
func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	if err := s.running(); err != nil {
		return model.User{}, err
	}
	return s.store.GetUser(ctx, id)
}

// Progress aggregates every stored attempt of a user.
func (s *Service) Progress(ctx context.Context, userID string) (ProgressReport, error) {
	if err := s.running(); err != nil {
		return ProgressReport{}, err
	}
	records, err := s.store.AttemptRecords(ctx, userID)
	if err != nil {
		return ProgressReport{}, err
	}
	totals, err := s.store.AttemptTotals(ctx, userID)
	if err != nil {
		return ProgressReport{}, err
	}
	st, err := s.store.GetStreak(ctx, userID)
	if err != nil {
		return ProgressReport{}, err
	}

	p := typing.Aggregate(records)
	return ProgressReport{
		Overall: Overall{Summary: p.Overall, AttemptTotals: totals},
		PerPack: p.PerPack,
		Streak:  st,
	}, nil
}

// Attempts pages through a user's attempts, newest first.
func (s *Service) Attempts(ctx context.Context, userID string, q AttemptQuery) (AttemptsPage, error) {
	if err := s.running(); err != nil {
		return AttemptsPage{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = repository.DefaultAttemptLimit
	}
	limit = min(limit, s.maxAttemptsLimit)

	list, err := s.store.ListAttempts(ctx, userID, repository.AttemptFilter{
		PackID: q.PackID,
		Limit:  limit,
		Offset: max(q.Offset, 0),
	})
	if err != nil {
		return AttemptsPage{}, err
	}

	page := AttemptsPage{UserID: userID, Total: len(list), Attempts: list}
	if q.PackID != "" {
		packID := q.PackID
		page.PackID = &packID
	}
	return page, nil
}

// Streak returns the zero streak for users who never practised.
func (s *Service) Streak(ctx context.Context, userID string) (model.Streak, error) {
	if err := s.running(); err != nil {
		return model.Streak{}, err
	}
	return s.store.GetStreak(ctx, userID)
}

// Achievements lists the catalog with the user's earned state and progress
// towards the locked entries.
func (s *Service) Achievements(ctx context.Context, userID string) (AchievementsReport, error) {
	if err := s.running(); err != nil {
		return AchievementsReport{}, err
	}
	earned, err := s.store.EarnedAchievements(ctx, userID)
	if err != nil {
		return AchievementsReport{}, err
	}
	stats, err := s.store.AchievementStats(ctx, userID, s.defs)
	if err != nil {
		return AchievementsReport{}, err
	}

	report := AchievementsReport{
		TotalAchievements: len(s.defs),
		Achievements:      make([]AchievementStatus, 0, len(s.defs)),
	}
	for _, d := range s.defs {
		status := AchievementStatus{Definition: d, Criteria: d.Rule.String()}
		if e, ok := earned[d.ID]; ok {
			earnedAt := e.EarnedAt
			status.Earned = true
			status.EarnedAt = &earnedAt
			status.Progress = e.Progress
			report.EarnedCount++
		} else {
			status.Progress = achievement.Progress(d.Rule, stats)
		}
		report.Achievements = append(report.Achievements, status)
	}
	return report, nil
}

// Packs lists the pack catalog.
func (s *Service) Packs(ctx context.Context, f packs.Filter) ([]model.Pack, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.catalog.List(ctx, f)
}

// PackItems returns a window of a pack's items. A limit of zero or less
// means the default window.
func (s *Service) PackItems(ctx context.Context, packID string, q packs.ItemQuery) (ItemsPage, error) {
	if err := s.running(); err != nil {
		return ItemsPage{}, err
	}
	if !s.catalog.Exists(packID) {
		return ItemsPage{}, fmt.Errorf("pack %q: %w", packID, packs.ErrPackNotFound)
	}
	if q.Limit <= 0 {
		q.Limit = defaultItemsLimit
	}
	q.Limit = min(q.Limit, s.maxItemsLimit)
	q.Offset = max(q.Offset, 0)

	items, err := s.catalog.Items(ctx, packID, q)
	if err != nil {
		return ItemsPage{}, err
	}
	return ItemsPage{PackID: packID, Offset: q.Offset, Limit: q.Limit, Items: items}, nil
}

// Sources lists the external vocabulary sources.
func (s *Service) Sources() ([]sources.Source, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.sources.List(), nil
}

// FetchSource downloads a source and maps it onto a pack.
func (s *Service) FetchSource(ctx context.Context, id string, limit int) (sources.Result, error) {
	if err := s.running(); err != nil {
		return sources.Result{}, err
	}
	if limit <= 0 {
		limit = sources.DefaultLimit
	}
	return s.sources.Fetch(ctx, id, min(limit, s.maxItemsLimit))
}

// Leaderboard ranks users by best WPM.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	return s.store.Leaderboard(ctx, min(limit, maxLeaderboardLimit))
}

// Rank returns a user's leaderboard position.
func (s *Service) Rank(ctx context.Context, userID string) (repository.LeaderboardEntry, error) {
	if err := s.running(); err != nil {
		return repository.LeaderboardEntry{}, err
	}
	return s.store.Rank(ctx, userID)
}

// Subscribe follows a user's attempts as they are processed.
func (s *Service) Subscribe(userID string) (<-chan model.AttemptEvent, func(), error) {
	if err := s.running(); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(userID)
	return ch, cancel, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Started: s.started, Workers: s.workerCount, QueueCapacity: s.queueSize}
	if !s.started {
		return stats
	}

	ps := s.pool.Stats()
	stats.QueueLength = s.queue.Len()
	stats.EventsProcessed = ps.Processed
	stats.EventsFailed = ps.Failed
	stats.DedupeSize = s.deduper.Size()
	stats.FeedSubscribers = s.hub.Len()
	stats.Uptime = s.now().Sub(s.startedAt).Round(time.Second).String()

	users, attempts, err := s.store.Totals(ctx)
	if err != nil {
		s.logger.Warn(ctx, "store totals unavailable", logger.Error(err))
	}
	stats.Users, stats.Attempts = users, attempts
	metrics.UpdateStoreTotals(users, attempts)
	metrics.UpdateQueueSize(stats.QueueLength)
	return stats
}

// Ready reports whether the service can serve requests.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	_, _, err := s.store.Totals(ctx)
	return err
}
