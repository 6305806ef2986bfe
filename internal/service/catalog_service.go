package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// CatalogLoader yields the raw catalog document.
type CatalogLoader interface {
	Load() (*models.CatalogDocument, error)
}

// TaskCatalog is the immutable registry of tasks, sets and merge precedence.
type TaskCatalog struct {
	tasks      []models.TaskDefinition
	index      map[string]int
	scored     map[string][]models.QuestionDefinition
	sets       []models.SetDefinition
	setOf      map[string]string
	precedence []models.PrecedenceRule
	known      map[string]struct{}
	warnings   []string
}

// Tasks returns every task in catalog order.
func (c *TaskCatalog) Tasks() []models.TaskDefinition { return c.tasks }

// Task looks up a task by ID.
func (c *TaskCatalog) Task(taskID string) (models.TaskDefinition, bool) {
	i, ok := c.index[taskID]
	if !ok {
		return models.TaskDefinition{}, false
	}
	return c.tasks[i], true
}

// Scored returns the non-practice questions of a task ordered by OrderIndex.
// Termination indexes refer to positions in this list.
func (c *TaskCatalog) Scored(taskID string) []models.QuestionDefinition {
	return c.scored[taskID]
}

// Sets returns the four task sets.
func (c *TaskCatalog) Sets() []models.SetDefinition { return c.sets }

// SetOf returns the set a task belongs to.
func (c *TaskCatalog) SetOf(taskID string) string { return c.setOf[taskID] }

// Precedence returns the merge precedence table.
func (c *TaskCatalog) Precedence() []models.PrecedenceRule { return c.precedence }

// Known reports whether any task defines the question, including display-only companions.
func (c *TaskCatalog) Known(questionID string) bool {
	_, ok := c.known[questionID]
	return ok
}

// ApplicableTasks returns the tasks evaluated for a student of the given gender.
func (c *TaskCatalog) ApplicableTasks(gender string) []models.TaskDefinition {
	out := make([]models.TaskDefinition, 0, len(c.tasks))
	for _, task := range c.tasks {
		if task.Gender.Applies(gender) {
			out = append(out, task)
		}
	}
	return out
}

// Warnings lists non-fatal catalog problems, such as evaluators that will fail at validation time.
func (c *TaskCatalog) Warnings() []string { return c.warnings }

// CatalogService loads and validates the catalog.
type CatalogService struct {
	loader    CatalogLoader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(loader CatalogLoader, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{loader: loader, validator: validate, logger: logger}
}

// Load reads the catalog document and builds the registry.
func (s *CatalogService) Load() (*TaskCatalog, error) {
	doc, err := s.loader.Load()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCatalogInvalid.Code, appErrors.ErrCatalogInvalid.Status, "failed to load task catalog")
	}
	catalog, err := s.Build(doc)
	if err != nil {
		return nil, err
	}
	for _, warning := range catalog.warnings {
		s.logger.Warn("catalog warning", zap.String("detail", warning))
	}
	s.logger.Info("task catalog loaded", zap.Int("tasks", len(catalog.tasks)), zap.Int("sets", len(catalog.sets)))
	return catalog, nil
}

// Build validates a decoded document and converts it into a TaskCatalog.
func (s *CatalogService) Build(doc *models.CatalogDocument) (*TaskCatalog, error) {
	if doc == nil {
		return nil, appErrors.Clone(appErrors.ErrCatalogInvalid, "catalog document is empty")
	}
	if err := s.validator.Struct(doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCatalogInvalid.Code, appErrors.ErrCatalogInvalid.Status, "catalog failed validation")
	}

	c := &TaskCatalog{
		index:  make(map[string]int, len(doc.Tasks)),
		scored: make(map[string][]models.QuestionDefinition, len(doc.Tasks)),
		setOf:  make(map[string]string),
		known:  make(map[string]struct{}),
	}
	invalid := func(format string, args ...interface{}) error {
		return appErrors.Clone(appErrors.ErrCatalogInvalid, fmt.Sprintf(format, args...))
	}

	for _, spec := range doc.Tasks {
		if _, dup := c.index[spec.ID]; dup {
			return nil, invalid("task %s is declared twice", spec.ID)
		}
		questions, err := expandQuestions(spec)
		if err != nil {
			return nil, invalid("task %s: %v", spec.ID, err)
		}
		task := models.TaskDefinition{
			TaskID:     spec.ID,
			Title:      spec.Title,
			Questions:  questions,
			Gender:     models.GenderCondition(spec.Gender),
			PairedWith: spec.PairedWith,
		}
		if task.Gender == "" {
			task.Gender = models.GenderAny
		}
		scored := scoredQuestions(questions)
		rule, err := ruleFromSpec(spec.Rule, len(scored))
		if err != nil {
			return nil, invalid("task %s: %v", spec.ID, err)
		}
		task.Rule = rule

		for _, q := range questions {
			c.known[q.ID] = struct{}{}
			if q.Expected.Kind == models.EvaluatorRadioText {
				c.known[q.Expected.CompanionID] = struct{}{}
			}
			if err := checkEvaluator(q.Expected); err != nil {
				c.warnings = append(c.warnings, fmt.Sprintf("task %s question %s: %v", spec.ID, q.ID, err))
			}
		}
		c.index[spec.ID] = len(c.tasks)
		c.tasks = append(c.tasks, task)
		c.scored[spec.ID] = scored
	}

	for _, task := range c.tasks {
		if err := checkPairing(c, task); err != nil {
			return nil, invalid("task %s: %v", task.TaskID, err)
		}
	}

	for _, set := range doc.Sets {
		for _, taskID := range set.Tasks {
			if _, ok := c.index[taskID]; !ok {
				return nil, invalid("set %s references unknown task %s", set.ID, taskID)
			}
			if owner, taken := c.setOf[taskID]; taken {
				return nil, invalid("task %s belongs to sets %s and %s", taskID, owner, set.ID)
			}
			c.setOf[taskID] = set.ID
		}
		c.sets = append(c.sets, models.SetDefinition{ID: set.ID, Title: set.Title, TaskIDs: append([]string(nil), set.Tasks...)})
	}
	for _, task := range c.tasks {
		if _, ok := c.setOf[task.TaskID]; !ok {
			return nil, invalid("task %s is not assigned to a set", task.TaskID)
		}
	}

	for _, p := range doc.Precedence {
		c.precedence = append(c.precedence, models.PrecedenceRule{QuestionPrefix: p.Prefix, Winner: models.Source(p.Winner)})
	}
	return c, nil
}

func expandQuestions(spec models.TaskSpec) ([]models.QuestionDefinition, error) {
	var out []models.QuestionDefinition
	seen := make(map[string]struct{})
	add := func(id string, practice bool, eval models.Evaluator) error {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("question %s is declared twice", id)
		}
		seen[id] = struct{}{}
		out = append(out, models.QuestionDefinition{
			ID:         id,
			OrderIndex: len(out),
			Expected:   defaultEvaluator(id, eval),
			IsPractice: practice,
		})
		return nil
	}

	for _, q := range spec.Questions {
		if err := add(q.ID, q.Practice, q.Expected); err != nil {
			return nil, err
		}
	}
	if g := spec.Generate; g != nil {
		if len(g.Answers) > 0 && len(g.Answers) != g.Count {
			return nil, fmt.Errorf("generate lists %d answers for %d questions", len(g.Answers), g.Count)
		}
		from := g.From
		if from == 0 {
			from = 1
		}
		for i := 0; i < g.Count; i++ {
			eval := g.Expected
			if len(g.Answers) > 0 {
				eval = models.Evaluator{Kind: models.EvaluatorExact, Expected: g.Answers[i]}
			}
			if err := add(g.Prefix+strconv.Itoa(from+i), false, eval); err != nil {
				return nil, err
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("task has no questions")
	}
	return out, nil
}

func defaultEvaluator(questionID string, eval models.Evaluator) models.Evaluator {
	if eval.Kind == "" {
		if strings.TrimSpace(eval.Expected) == "" {
			eval.Kind = models.EvaluatorAnyNonEmpty
		} else {
			eval.Kind = models.EvaluatorExact
		}
	}
	if eval.Kind == models.EvaluatorRadioText && eval.CompanionID == "" {
		eval.CompanionID = questionID + "_TEXT"
	}
	return eval
}

func scoredQuestions(questions []models.QuestionDefinition) []models.QuestionDefinition {
	scored := make([]models.QuestionDefinition, 0, len(questions))
	for _, q := range questions {
		if !q.IsPractice {
			scored = append(scored, q)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].OrderIndex < scored[j].OrderIndex })
	return scored
}

// ruleFromSpec converts the flat YAML rule into its variant and checks its
// indexes against the scored question count n.
func ruleFromSpec(spec *models.RuleSpec, n int) (models.TerminationRule, error) {
	if spec == nil {
		return nil, nil
	}
	switch models.RuleKind(spec.Type) {
	case models.RuleNone:
		return nil, nil
	case models.RuleStageBased:
		if len(spec.Stages) == 0 {
			return nil, fmt.Errorf("stage-based rule needs stages")
		}
		next := 0
		for i, st := range spec.Stages {
			if st.StartIndex < next || st.EndIndex >= n || st.EndIndex < st.StartIndex {
				return nil, fmt.Errorf("stage %d range [%d,%d] is out of order or outside %d questions", i+1, st.StartIndex, st.EndIndex, n)
			}
			if st.MinCorrect > st.EndIndex-st.StartIndex+1 {
				return nil, fmt.Errorf("stage %d needs %d correct of %d questions", i+1, st.MinCorrect, st.EndIndex-st.StartIndex+1)
			}
			next = st.EndIndex + 1
		}
		return models.StageBasedRule{Stages: append([]models.Stage(nil), spec.Stages...)}, nil
	case models.RuleConsecutiveIncorrect:
		if spec.Threshold < 1 || spec.Threshold > n {
			return nil, fmt.Errorf("consecutive-incorrect threshold %d outside 1..%d", spec.Threshold, n)
		}
		return models.ConsecutiveIncorrectRule{Threshold: spec.Threshold}, nil
	case models.RuleThresholdBased:
		if spec.SkipStart < 1 || spec.SkipStart >= n {
			return nil, fmt.Errorf("skip_start %d outside 1..%d", spec.SkipStart, n-1)
		}
		if len(spec.Probes) == 0 || spec.Threshold < 1 || spec.Threshold > len(spec.Probes) {
			return nil, fmt.Errorf("threshold %d needs between 1 and %d probes", spec.Threshold, len(spec.Probes))
		}
		for _, p := range spec.Probes {
			if p < 0 || p >= spec.SkipStart {
				return nil, fmt.Errorf("probe %d is outside the task or inside the skip block", p)
			}
		}
		return models.ThresholdBasedRule{
			ProbeIndexes: append([]int(nil), spec.Probes...),
			Threshold:    spec.Threshold,
			SkipStart:    spec.SkipStart,
		}, nil
	case models.RuleTimeoutBased:
		return models.TimeoutBasedRule{TimeLimitSeconds: spec.TimeLimitSeconds}, nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", spec.Type)
	}
}

func checkPairing(c *TaskCatalog, task models.TaskDefinition) error {
	timed := task.RuleKind() == models.RuleTimeoutBased
	if task.PairedWith == "" {
		if timed {
			return fmt.Errorf("timeout-based rule requires a paired task")
		}
		return nil
	}
	partner, ok := c.Task(task.PairedWith)
	if !ok {
		return fmt.Errorf("paired task %s does not exist", task.PairedWith)
	}
	if partner.PairedWith != task.TaskID {
		return fmt.Errorf("paired task %s does not pair back", partner.TaskID)
	}
	if partner.Gender != task.Gender {
		return fmt.Errorf("paired task %s has a different gender condition", partner.TaskID)
	}
	return nil
}
