package autopin

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/store"
)

type pinCall struct {
	pinned  bool
	user    string
	comment string
}

// fakeBuildHistory is an in-memory build server. Pinning is idempotent: the latest call wins.
type fakeBuildHistory struct {
	builds       map[models.BuildID]*models.Build
	dependencies map[models.BuildID][]models.BuildID
	pins         map[models.BuildID]pinCall
	pinCalls     int
	depCalls     int
	failPin      map[models.BuildID]bool
	failDeps     bool
	failTags     bool
}

func newFakeBuildHistory(builds ...*models.Build) *fakeBuildHistory {
	h := &fakeBuildHistory{
		builds:       make(map[models.BuildID]*models.Build),
		dependencies: make(map[models.BuildID][]models.BuildID),
		pins:         make(map[models.BuildID]pinCall),
		failPin:      make(map[models.BuildID]bool),
	}
	for _, b := range builds {
		h.builds[b.ID] = b
	}
	return h
}

func (h *fakeBuildHistory) FindEntry(ctx context.Context, buildID models.BuildID) (*models.Build, error) {
	b, ok := h.builds[buildID]
	if !ok {
		return nil, gerror.NewErrNotFound("Build not found")
	}
	// Hand out a copy, as the real build history does
	copied := *b
	copied.Tags = append([]models.Tag(nil), b.Tags...)
	return &copied, nil
}

func (h *fakeBuildHistory) SetPinned(ctx context.Context, buildID models.BuildID, pinned bool, user *models.User, comment string) error {
	h.pinCalls++
	if h.failPin[buildID] {
		return errors.New("pin refused")
	}
	h.pins[buildID] = pinCall{pinned: pinned, user: user.String(), comment: comment}
	return nil
}

func (h *fakeBuildHistory) GetAllDependencies(ctx context.Context, buildID models.BuildID) ([]models.BuildID, error) {
	h.depCalls++
	if h.failDeps {
		return nil, errors.New("dependency graph unavailable")
	}
	return h.dependencies[buildID], nil
}

func (h *fakeBuildHistory) RemoveTag(ctx context.Context, buildID models.BuildID, tag models.Tag) error {
	if h.failTags {
		return errors.New("tags are read-only")
	}
	b, ok := h.builds[buildID]
	if !ok {
		return gerror.NewErrNotFound("Build not found")
	}
	var kept []models.Tag
	for _, t := range b.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	b.Tags = kept
	return nil
}

func (h *fakeBuildHistory) pinnedIDs() []models.BuildID {
	var ids []models.BuildID
	for id, call := range h.pins {
		if call.pinned {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeRuleProvider struct {
	rules []*models.PinRule
	err   error
}

func (p *fakeRuleProvider) RulesForBuild(ctx context.Context, build *models.Build) ([]*models.PinRule, error) {
	return p.rules, p.err
}

type fakePinRecordStore struct {
	records []*models.PinRecord
}

func (s *fakePinRecordStore) Create(ctx context.Context, txOrNil *store.Tx, record *models.PinRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *fakePinRecordStore) Read(ctx context.Context, txOrNil *store.Tx, id models.PinRecordID) (*models.PinRecord, error) {
	for _, r := range s.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, gerror.NewErrNotFound("Pin record not found")
}

func (s *fakePinRecordStore) ListByBuild(ctx context.Context, txOrNil *store.Tx, buildID models.BuildID) ([]*models.PinRecord, error) {
	var records []*models.PinRecord
	for _, r := range s.records {
		if r.BuildID == buildID {
			records = append(records, r)
		}
	}
	return records, nil
}

func (s *fakePinRecordStore) ListByRootBuild(ctx context.Context, txOrNil *store.Tx, rootBuildID models.BuildID) ([]*models.PinRecord, error) {
	var records []*models.PinRecord
	for _, r := range s.records {
		if r.RootBuildID == rootBuildID {
			records = append(records, r)
		}
	}
	return records, nil
}

type testService struct {
	*AutopinService
	history *fakeBuildHistory
	rules   *fakeRuleProvider
	records *fakePinRecordStore
	clock   *clock.Mock
}

func newTestService(history *fakeBuildHistory, rules ...*models.PinRule) *testService {
	ruleProvider := &fakeRuleProvider{rules: rules}
	records := &fakePinRecordStore{}
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	return &testService{
		AutopinService: NewAutopinService(history, ruleProvider, records, mockClock, logger.NoOpLogFactory),
		history:        history,
		rules:          ruleProvider,
		records:        records,
		clock:          mockClock,
	}
}

var alice = &models.User{ID: 1, Username: "alice"}

func TestHandleBuildFinishedRuleWithDependencies(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{
		ID:          42,
		Status:      models.BuildStatusSuccess,
		Branch:      "release/2.0",
		TriggeredBy: alice,
	})
	history.dependencies[42] = []models.BuildID{40, 41}
	s := newTestService(history, &models.PinRule{
		ID:              "release",
		Status:          models.PinStatusSuccessful,
		BranchPattern:   "release/.*",
		PinDependencies: true,
		Comment:         "auto",
	})

	result, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{BuildID: 42})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	require.Len(t, result.Decisions, 1)
	require.Equal(t, &models.PinDecision{Pin: true, Cascade: true, Comment: "auto", Source: models.DecisionSourceRule, RuleID: "release"}, result.Decisions[0])
	require.Equal(t, []models.BuildID{42, 40, 41}, result.PinnedBuildIDs)

	require.Equal(t, []models.BuildID{40, 41, 42}, history.pinnedIDs())
	for _, id := range []models.BuildID{40, 41, 42} {
		require.Equal(t, pinCall{pinned: true, user: "alice", comment: "auto"}, history.pins[id])
	}

	require.Len(t, s.records.records, 3)
	for _, record := range s.records.records {
		require.Equal(t, models.BuildID(42), record.RootBuildID)
		require.Equal(t, record.BuildID != 42, record.Dependency)
		require.Equal(t, s.clock.Now().UTC(), record.CreatedAt.Time)
		require.True(t, record.Succeeded())
	}
}

func TestHandleBuildFinishedTagOnly(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{
		ID:          7,
		Status:      models.BuildStatusSuccess,
		Tags:        []models.Tag{"keep", models.TagPin},
		TriggeredBy: alice,
	})
	history.dependencies[7] = []models.BuildID{5, 6}
	s := newTestService(history)

	result, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{BuildID: 7})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	require.Len(t, result.Decisions, 1)
	require.False(t, result.Decisions[0].Cascade)

	require.Equal(t, []models.BuildID{7}, history.pinnedIDs(), "dependencies must not be pinned")
	require.Equal(t, 0, history.depCalls)
	require.Equal(t, "Pinned automatically based on service message (autopin) in build #7", history.pins[7].comment)
	require.Equal(t, []models.Tag{"keep"}, history.builds[7].Tags)
}

func TestHandleBuildFinishedTagIncludeDependencies(t *testing.T) {
	history := newFakeBuildHistory(
		&models.Build{ID: 20, Status: models.BuildStatusFailure, Tags: []models.Tag{models.TagPinIncludeDependencies}, TriggeredBy: alice},
		&models.Build{ID: 19, Status: models.BuildStatusSuccess, Tags: []models.Tag{models.TagPinIncludeDependencies}},
	)
	history.dependencies[20] = []models.BuildID{19, 18}
	s := newTestService(history)

	result, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{BuildID: 20})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	require.Equal(t, []models.BuildID{18, 19, 20}, history.pinnedIDs())
	require.Empty(t, history.builds[20].Tags)
	require.Equal(t, []models.Tag{models.TagPinIncludeDependencies}, history.builds[19].Tags, "tags are only removed from the finished build")
}

func TestHandleBuildFinishedNothingToDo(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 3, Status: models.BuildStatusFailure, Branch: "main"})
	s := newTestService(history, &models.PinRule{ID: "ok-only", Status: models.PinStatusSuccessful})

	result, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{BuildID: 3})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	require.Empty(t, result.Decisions)
	require.Empty(t, history.pins)
	require.Empty(t, s.records.records)
}

func TestHandleBuildFinishedMissingBuild(t *testing.T) {
	s := newTestService(newFakeBuildHistory())
	result, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{BuildID: 99})
	require.Error(t, err)
	require.True(t, gerror.IsNotFound(err))
	require.Nil(t, result)

	_, err = s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{})
	require.True(t, gerror.IsValidationFailed(err))
}

func TestHandleBuildFinishedIsolatesBrokenRules(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{
		ID:     11,
		Status: models.BuildStatusSuccess,
		Branch: "main",
		Tags:   []models.Tag{models.TagPin},
	})
	s := newTestService(history,
		&models.PinRule{ID: "broken", BranchPattern: "main(", Comment: "broken"},
		&models.PinRule{ID: "main", BranchPattern: "main", Comment: "main branch"},
	)

	result, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{BuildID: 11})
	require.NoError(t, err)
	require.Error(t, result.Err)
	require.True(t, gerror.IsInvalidPinRule(result.Err))
	require.Len(t, result.Decisions, 2, "the tag path and the healthy rule still apply")
	require.Equal(t, "main branch", history.pins[11].comment, "last pin wins")
	require.Equal(t, 2, history.pinCalls)
}

func TestHandleBuildFinishedRuleProviderError(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 12, Status: models.BuildStatusSuccess})
	s := newTestService(history, &models.PinRule{ID: "static", Comment: "static"})
	s.rules.err = errors.New("build server unavailable")

	result, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{BuildID: 12})
	require.NoError(t, err)
	require.Error(t, result.Err)
	require.Equal(t, []models.BuildID{12}, history.pinnedIDs(), "rules that could be read are still applied")
}

func TestHandleBuildFinishedEventUserOverridesBuildUser(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 13, Status: models.BuildStatusSuccess, TriggeredBy: alice})
	s := newTestService(history, &models.PinRule{ID: "any", Comment: "any"})

	_, err := s.HandleBuildFinished(context.Background(), &models.BuildFinishedEvent{
		BuildID:     13,
		TriggeredBy: &models.User{Username: "bob"},
	})
	require.NoError(t, err)
	require.Equal(t, "bob", history.pins[13].user)
}

func TestApplyDecisionContinuesAfterDependencyFailure(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 30, Status: models.BuildStatusSuccess})
	history.dependencies[30] = []models.BuildID{27, 28, 29}
	history.failPin[28] = true
	s := newTestService(history)

	build, err := history.FindEntry(context.Background(), 30)
	require.NoError(t, err)
	pinned, err := s.ApplyDecision(context.Background(), build, &models.PinDecision{Pin: true, Cascade: true, Comment: "c", Source: models.DecisionSourceRule}, alice)
	require.Error(t, err)
	require.True(t, gerror.IsPinFailed(err))
	require.Equal(t, []models.BuildID{30, 27, 29}, pinned)
	require.Equal(t, []models.BuildID{27, 29, 30}, history.pinnedIDs())

	require.Len(t, s.records.records, 4)
	failed, err := s.ListPinRecords(context.Background(), 28)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.False(t, failed[0].Succeeded())
}

func TestApplyDecisionDependencyLookupFailure(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 31, Tags: []models.Tag{models.TagPinIncludeDependencies}})
	history.failDeps = true
	s := newTestService(history)

	build, err := history.FindEntry(context.Background(), 31)
	require.NoError(t, err)
	pinned, err := s.ApplyDecision(context.Background(), build, EvaluateTagPin(build), alice)
	require.Error(t, err)
	require.Equal(t, []models.BuildID{31}, pinned, "the build itself is still pinned")
	require.Empty(t, history.builds[31].Tags, "tags are still removed")
}

func TestApplyDecisionTagRemovalFailure(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 32, Tags: []models.Tag{models.TagPin}})
	history.failTags = true
	s := newTestService(history)

	build, err := history.FindEntry(context.Background(), 32)
	require.NoError(t, err)
	pinned, err := s.ApplyDecision(context.Background(), build, EvaluateTagPin(build), alice)
	require.Error(t, err)
	require.Equal(t, []models.BuildID{32}, pinned)
}

func TestApplyDecisionKeepsTagsWhenBuildNotPinned(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 35, Tags: []models.Tag{models.TagPinIncludeDependencies}})
	history.dependencies[35] = []models.BuildID{34}
	history.failPin[35] = true
	s := newTestService(history)

	build, err := history.FindEntry(context.Background(), 35)
	require.NoError(t, err)
	pinned, err := s.ApplyDecision(context.Background(), build, EvaluateTagPin(build), alice)
	require.Error(t, err)
	require.True(t, gerror.IsPinFailed(err))
	require.Equal(t, []models.BuildID{34}, pinned, "dependencies are still pinned")
	require.Equal(t, []models.Tag{models.TagPinIncludeDependencies}, history.builds[35].Tags, "the pin request stays on the build")
}

func TestApplyDecisionIsIdempotent(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 33, Status: models.BuildStatusSuccess})
	history.dependencies[33] = []models.BuildID{32, 32, 33}
	s := newTestService(history)
	build, err := history.FindEntry(context.Background(), 33)
	require.NoError(t, err)
	decision := &models.PinDecision{Pin: true, Cascade: true, Comment: "same", Source: models.DecisionSourceRule}

	_, err = s.ApplyDecision(context.Background(), build, decision, alice)
	require.NoError(t, err)
	first := map[models.BuildID]pinCall{}
	for k, v := range history.pins {
		first[k] = v
	}
	_, err = s.ApplyDecision(context.Background(), build, decision, alice)
	require.NoError(t, err)
	require.Equal(t, first, history.pins)
	require.Equal(t, []models.BuildID{32, 33}, history.pinnedIDs())
	require.Equal(t, 1, history.depCalls, "dependencies are resolved once per build")
	require.Equal(t, 4, history.pinCalls, "duplicate dependencies are pinned once per decision")
}

func TestApplyDecisionNoPin(t *testing.T) {
	history := newFakeBuildHistory(&models.Build{ID: 34})
	s := newTestService(history)
	pinned, err := s.ApplyDecision(context.Background(), &models.Build{ID: 34}, &models.PinDecision{Pin: false}, alice)
	require.NoError(t, err)
	require.Nil(t, pinned)
	require.Empty(t, history.pins)
}

func TestServiceEvaluate(t *testing.T) {
	s := newTestService(newFakeBuildHistory())
	rules := []*models.PinRule{{Status: models.PinStatusSuccessful, Comment: "ok"}}

	decisions, err := s.Evaluate(context.Background(), &models.Build{ID: 1, Status: models.BuildStatusSuccess}, rules)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.NotEmpty(t, decisions[0].RuleID, "rules without an id get one")
	require.Empty(t, s.history.pins, "evaluation has no side effects")

	_, err = s.Evaluate(context.Background(), &models.Build{ID: 0}, rules)
	require.True(t, gerror.IsValidationFailed(err))
	_, err = s.Evaluate(context.Background(), &models.Build{ID: 1}, []*models.PinRule{{Status: "sometimes"}})
	require.True(t, gerror.IsValidationFailed(err))
}
