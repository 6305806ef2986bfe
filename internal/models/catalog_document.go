package models

// CatalogDocument is the on-disk shape of the task catalog, the set-membership
// table and the merge precedence table.
type CatalogDocument struct {
	Version    int              `yaml:"version" validate:"gte=1"`
	Sets       []SetSpec        `yaml:"sets" validate:"len=4,dive"`
	Precedence []PrecedenceSpec `yaml:"precedence" validate:"dive"`
	Tasks      []TaskSpec       `yaml:"tasks" validate:"required,min=1,dive"`
}

// SetSpec lists the tasks of one set.
type SetSpec struct {
	ID    string   `yaml:"id" validate:"required"`
	Title string   `yaml:"title"`
	Tasks []string `yaml:"tasks" validate:"dive,required"`
}

// PrecedenceSpec is one row of the merge precedence table.
type PrecedenceSpec struct {
	Prefix string `yaml:"prefix" validate:"required"`
	Winner string `yaml:"winner" validate:"oneof=primary secondary"`
}

// TaskSpec declares one task. Questions may be listed one by one, generated
// from a numbered range, or both; listed questions come first.
type TaskSpec struct {
	ID         string         `yaml:"id" validate:"required"`
	Title      string         `yaml:"title"`
	Gender     string         `yaml:"gender" validate:"omitempty,oneof=none male-only female-only"`
	PairedWith string         `yaml:"paired_with"`
	Questions  []QuestionSpec `yaml:"questions" validate:"dive"`
	Generate   *GenerateSpec  `yaml:"generate"`
	Rule       *RuleSpec      `yaml:"rule"`
}

// QuestionSpec declares one question.
type QuestionSpec struct {
	ID       string    `yaml:"id" validate:"required"`
	Practice bool      `yaml:"practice"`
	Expected Evaluator `yaml:"expected"`
}

// GenerateSpec expands to Count questions named Prefix+N, N starting at From.
// Answers, when present, gives the exact-match key of each generated question
// and overrides Expected.
type GenerateSpec struct {
	Prefix   string    `yaml:"prefix" validate:"required"`
	From     int       `yaml:"from"`
	Count    int       `yaml:"count" validate:"gte=1"`
	Expected Evaluator `yaml:"expected"`
	Answers  []string  `yaml:"answers"`
}

// RuleSpec is the flat YAML form of a TerminationRule. Type selects which of
// the remaining fields apply.
type RuleSpec struct {
	Type             string  `yaml:"type" validate:"oneof=none stage-based consecutive-incorrect threshold-based timeout-based"`
	Stages           []Stage `yaml:"stages" validate:"dive"`
	Threshold        int     `yaml:"threshold" validate:"gte=0"`
	Probes           []int   `yaml:"probes"`
	SkipStart        int     `yaml:"skip_start"`
	TimeLimitSeconds int     `yaml:"time_limit_seconds"`
}
