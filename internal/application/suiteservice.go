package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/suitegen/internal/domain/model"
	"github.com/ericfisherdev/suitegen/internal/domain/port/driven"
)

// SuitesKey is the store key holding the serialized suite list.
const SuitesKey = "suitegen/test-suites"

var (
	// ErrSuiteNotFound is returned when no suite has the requested ID.
	ErrSuiteNotFound = errors.New("test suite not found")

	// ErrTestCaseNotFound is returned when a suite has no test case with the requested ID.
	ErrTestCaseNotFound = errors.New("test case not found")
)

// CreateSuiteInput holds the fields of a new suite.
type CreateSuiteInput struct {
	Name        string `validate:"notblank,max=200"`
	Description string `validate:"max=2000"`
	Framework   string `validate:"max=50"`
	Language    string `validate:"max=50"`
	Tags        []string
}

// testCaseFields is the validated view of an edited test case.
type testCaseFields struct {
	Title    string               `validate:"notblank,max=300"`
	TestType model.TestType       `validate:"oneof=unit integration edge-case"`
	Priority model.Priority       `validate:"oneof=high medium low"`
	Status   model.TestCaseStatus `validate:"oneof=draft ready needs-review"`
}

// SuiteService manages test suites. The whole list is kept in memory and
// written to the KV store after every mutation; a failed write leaves the
// in-memory list as it was before the mutation.
type SuiteService struct {
	store driven.KVStore
	now   func() time.Time

	mu     sync.RWMutex
	suites []model.TestSuite
}

// NewSuiteService creates a SuiteService over store. Call Load before use.
func NewSuiteService(store driven.KVStore) *SuiteService {
	return &SuiteService{store: store, now: time.Now}
}

// SetClock overrides the time source used for timestamps.
func (s *SuiteService) SetClock(now func() time.Time) {
	s.now = now
}

// Load reads the suite list from the store. An absent key is an empty list.
func (s *SuiteService) Load(ctx context.Context) error {
	data, ok, err := s.store.Get(ctx, SuitesKey)
	if err != nil {
		return fmt.Errorf("load suites: %w", err)
	}

	var suites []model.TestSuite
	if ok && len(data) > 0 {
		var records []suiteRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode suites: %w", err)
		}
		suites = make([]model.TestSuite, 0, len(records))
		for _, rec := range records {
			suites = append(suites, rec.toModel())
		}
	}

	s.mu.Lock()
	s.suites = suites
	s.mu.Unlock()

	slog.Info("suites loaded", "count", len(suites))
	return nil
}

// List returns copies of all suites in creation order.
func (s *SuiteService) List() []model.TestSuite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSuites(s.suites)
}

// Get returns a copy of the suite with the given ID.
func (s *SuiteService) Get(id string) (model.TestSuite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.TestSuite{}, fmt.Errorf("%w: %s", ErrSuiteNotFound, id)
	}
	return cloneSuite(s.suites[i]), nil
}

// Create allocates a new suite with no test cases.
func (s *SuiteService) Create(ctx context.Context, in CreateSuiteInput) (model.TestSuite, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return model.TestSuite{}, err
	}

	framework := strings.TrimSpace(in.Framework)
	if framework == "" {
		framework = model.DefaultFramework
	}

	now := s.now()
	suite := model.TestSuite{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Tags:        dedupeTags(in.Tags),
		Framework:   framework,
		Language:    strings.TrimSpace(in.Language),
		TestCases:   []model.TestCase{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.mutate(ctx, func(suites []model.TestSuite) ([]model.TestSuite, error) {
		return append(suites, suite), nil
	})
	if err != nil {
		return model.TestSuite{}, err
	}

	slog.Info("suite created", "suite_id", suite.ID, "name", suite.Name)
	return cloneSuite(suite), nil
}

// UpdateSuite applies patch to the suite's metadata.
func (s *SuiteService) UpdateSuite(ctx context.Context, id string, patch model.SuitePatch) (model.TestSuite, error) {
	var updated model.TestSuite
	err := s.mutate(ctx, func(suites []model.TestSuite) ([]model.TestSuite, error) {
		i := indexOfSuite(suites, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, id)
		}
		suite := &suites[i]

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if err := validateStruct(CreateSuiteInput{Name: name}); err != nil {
				return nil, err
			}
			suite.Name = name
		}
		if patch.Description != nil {
			suite.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Tags != nil {
			suite.Tags = dedupeTags(patch.Tags)
		}
		suite.UpdatedAt = s.now()

		updated = cloneSuite(*suite)
		return suites, nil
	})
	return updated, err
}

// DeleteSuite removes the suite with the given ID.
func (s *SuiteService) DeleteSuite(ctx context.Context, id string) error {
	return s.mutate(ctx, func(suites []model.TestSuite) ([]model.TestSuite, error) {
		i := indexOfSuite(suites, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, id)
		}
		return slices.Delete(suites, i, i+1), nil
	})
}

// Promote appends a test case copied from test to the suite. Empty title or
// description take the generated test's values.
func (s *SuiteService) Promote(ctx context.Context, suiteID string, test model.GeneratedTest, title, description string) (model.TestCase, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = test.Title
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = test.Description
	}

	now := s.now()
	tc := model.TestCase{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		Code:         test.Code,
		TestType:     test.TestType,
		Priority:     test.Priority,
		Status:       model.TestCaseStatusDraft,
		FilePath:     test.FilePath,
		FunctionName: test.FunctionName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := validateStruct(testCaseFields{Title: tc.Title, TestType: tc.TestType, Priority: tc.Priority, Status: tc.Status}); err != nil {
		return model.TestCase{}, err
	}

	err := s.mutate(ctx, func(suites []model.TestSuite) ([]model.TestSuite, error) {
		i := indexOfSuite(suites, suiteID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, suiteID)
		}
		suites[i].TestCases = append(suites[i].TestCases, tc)
		suites[i].UpdatedAt = now
		return suites, nil
	})
	if err != nil {
		return model.TestCase{}, err
	}

	slog.Info("test promoted", "suite_id", suiteID, "test_case_id", tc.ID)
	return tc, nil
}

// UpdateTestCase applies patch to one test case and bumps both its and the
// suite's UpdatedAt.
func (s *SuiteService) UpdateTestCase(ctx context.Context, suiteID, caseID string, patch model.TestCasePatch) (model.TestCase, error) {
	var updated model.TestCase
	err := s.mutate(ctx, func(suites []model.TestSuite) ([]model.TestSuite, error) {
		i := indexOfSuite(suites, suiteID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, suiteID)
		}
		j := slices.IndexFunc(suites[i].TestCases, func(tc model.TestCase) bool { return tc.ID == caseID })
		if j < 0 {
			return nil, fmt.Errorf("%w: %s", ErrTestCaseNotFound, caseID)
		}

		tc := suites[i].TestCases[j]
		if patch.Title != nil {
			tc.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			tc.Description = *patch.Description
		}
		if patch.Code != nil {
			tc.Code = *patch.Code
		}
		if patch.TestType != nil {
			tc.TestType = *patch.TestType
		}
		if patch.Priority != nil {
			tc.Priority = *patch.Priority
		}
		if patch.Status != nil {
			tc.Status = *patch.Status
		}
		if err := validateStruct(testCaseFields{Title: tc.Title, TestType: tc.TestType, Priority: tc.Priority, Status: tc.Status}); err != nil {
			return nil, err
		}

		now := s.now()
		tc.UpdatedAt = now
		suites[i].TestCases[j] = tc
		suites[i].UpdatedAt = now
		updated = tc
		return suites, nil
	})
	return updated, err
}

// DeleteTestCase removes one test case from a suite.
func (s *SuiteService) DeleteTestCase(ctx context.Context, suiteID, caseID string) error {
	return s.mutate(ctx, func(suites []model.TestSuite) ([]model.TestSuite, error) {
		i := indexOfSuite(suites, suiteID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSuiteNotFound, suiteID)
		}
		j := slices.IndexFunc(suites[i].TestCases, func(tc model.TestCase) bool { return tc.ID == caseID })
		if j < 0 {
			return nil, fmt.Errorf("%w: %s", ErrTestCaseNotFound, caseID)
		}
		suites[i].TestCases = slices.Delete(suites[i].TestCases, j, j+1)
		suites[i].UpdatedAt = s.now()
		return suites, nil
	})
}

// Export renders the suite with the given ID in format. It never modifies the store.
func (s *SuiteService) Export(id string, format model.ExportFormat) (Export, error) {
	suite, err := s.Get(id)
	if err != nil {
		return Export{}, err
	}
	return ExportSuite(suite, format)
}

// mutate applies fn to a deep copy of the list, persists the result and only
// then makes it current.
func (s *SuiteService) mutate(ctx context.Context, fn func([]model.TestSuite) ([]model.TestSuite, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(cloneSuites(s.suites))
	if err != nil {
		return err
	}

	if err := s.persist(ctx, next); err != nil {
		suiteWrites.WithLabelValues("error").Inc()
		slog.Error("suite store write failed, changes rolled back", "error", err)
		return err
	}
	suiteWrites.WithLabelValues("ok").Inc()

	s.suites = next
	return nil
}

func (s *SuiteService) persist(ctx context.Context, suites []model.TestSuite) error {
	records := make([]suiteRecord, 0, len(suites))
	for _, suite := range suites {
		records = append(records, toSuiteRecord(suite))
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode suites: %w", err)
	}
	if err := s.store.Put(ctx, SuitesKey, data); err != nil {
		return fmt.Errorf("save suites: %w", err)
	}
	return nil
}

// indexOf finds a suite in the current list. Caller holds mu.
func (s *SuiteService) indexOf(id string) int {
	return indexOfSuite(s.suites, id)
}

func indexOfSuite(suites []model.TestSuite, id string) int {
	return slices.IndexFunc(suites, func(s model.TestSuite) bool { return s.ID == id })
}

func cloneSuites(suites []model.TestSuite) []model.TestSuite {
	out := make([]model.TestSuite, 0, len(suites))
	for _, suite := range suites {
		out = append(out, cloneSuite(suite))
	}
	return out
}

func cloneSuite(s model.TestSuite) model.TestSuite {
	s.Tags = slices.Clone(s.Tags)
	s.TestCases = slices.Clone(s.TestCases)
	if s.TestCases == nil {
		s.TestCases = []model.TestCase{}
	}
	return s
}
