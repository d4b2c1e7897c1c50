package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"time"
)

// ============================================================================
// Sections
// ============================================================================

// OnboardingSection names one of the six independently-fillable blobs.
type OnboardingSection string

const (
	SectionBusinessInfo        OnboardingSection = "businessInfo"
	SectionObjectives          OnboardingSection = "objectives"
	SectionContentArchitecture OnboardingSection = "contentArchitecture"
	SectionBrandDesign         OnboardingSection = "brandDesign"
	SectionTechnicalSetup      OnboardingSection = "technicalSetup"
	SectionProjectPlanning     OnboardingSection = "projectPlanning"
)

// AllSections returns the sections in wizard order
func AllSections() []OnboardingSection {
	return []OnboardingSection{
		SectionBusinessInfo,
		SectionObjectives,
		SectionContentArchitecture,
		SectionBrandDesign,
		SectionTechnicalSetup,
		SectionProjectPlanning,
	}
}

func (s OnboardingSection) IsValid() bool {
	for _, valid := range AllSections() {
		if s == valid {
			return true
		}
	}
	return false
}

// ============================================================================
// Completion status
// ============================================================================

type CompletionStatus string

const (
	CompletionPending    CompletionStatus = "PENDING"
	CompletionInProgress CompletionStatus = "IN_PROGRESS"
	CompletionCompleted  CompletionStatus = "COMPLETED"
)

func (s CompletionStatus) rank() int {
	switch s {
	case CompletionCompleted:
		return 2
	case CompletionInProgress:
		return 1
	default:
		return 0
	}
}

// DeriveCompletionStatus computes the status implied by a single save call.
func DeriveCompletionStatus(isComplete bool, sectionsSupplied int) CompletionStatus {
	switch {
	case isComplete:
		return CompletionCompleted
	case sectionsSupplied > 0:
		return CompletionInProgress
	default:
		return CompletionPending
	}
}

// MaxCompletionStatus returns the further-along of a and b.
func MaxCompletionStatus(a, b CompletionStatus) CompletionStatus {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// ============================================================================
// Persisted response
// ============================================================================

// OnboardingResponse is the persisted questionnaire. Section values are the
// raw JSON text as stored; a nil entry means the column is NULL.
type OnboardingResponse struct {
	ID               string                        `json:"id"`
	UserID           string                        `json:"userId"`
	ProjectID        string                        `json:"projectId"`
	Sections         map[OnboardingSection]*string `json:"-"`
	CompletedSteps   []int                         `json:"completedSteps"`
	CompletionStatus CompletionStatus              `json:"completionStatus"`
	SubmittedAt      *time.Time                    `json:"submittedAt"`
	CreatedAt        time.Time                     `json:"createdAt"`
	UpdatedAt        time.Time                     `json:"updatedAt"`
}

func NewOnboardingResponse(id, userID, projectID string, now time.Time) *OnboardingResponse {
	return &OnboardingResponse{
		ID:               id,
		UserID:           userID,
		ProjectID:        projectID,
		Sections:         map[OnboardingSection]*string{},
		CompletedSteps:   []int{},
		CompletionStatus: CompletionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// OnboardingUpsert is one save call after decoding: only the sections present
// in the payload, and the status that call implies.
type OnboardingUpsert struct {
	UserID         string
	ProjectID      string
	Sections       map[OnboardingSection]string
	CompletedSteps []int // nil leaves the stored list untouched
	Status         CompletionStatus
}

// Apply merges u into r. Absent sections keep their stored value, status
// never moves backwards, and SubmittedAt is stamped once.
func (r *OnboardingResponse) Apply(u OnboardingUpsert, now time.Time) {
	if r.Sections == nil {
		r.Sections = map[OnboardingSection]*string{}
	}
	for section, raw := range u.Sections {
		value := raw
		r.Sections[section] = &value
	}
	if u.CompletedSteps != nil {
		r.CompletedSteps = NormalizeSteps(u.CompletedSteps)
	}
	r.CompletionStatus = MaxCompletionStatus(r.CompletionStatus, u.Status)
	if r.CompletionStatus == CompletionCompleted && r.SubmittedAt == nil {
		submitted := now
		r.SubmittedAt = &submitted
	}
	r.UpdatedAt = now
}

// Data renders the response for the client, parsing each section
// independently. Malformed JSON becomes null instead of failing the read.
func (r *OnboardingResponse) Data() *OnboardingData {
	data := &OnboardingData{
		CompletedSteps:   NormalizeSteps(r.CompletedSteps),
		CompletionStatus: r.CompletionStatus,
		SubmittedAt:      r.SubmittedAt,
	}
	for _, section := range AllSections() {
		data.set(section, ParseSection(r.Sections[section]))
	}
	return data
}

// ParseSection returns the stored JSON or nil when it is absent or invalid.
func ParseSection(raw *string) json.RawMessage {
	if raw == nil {
		return nil
	}
	b := []byte(*raw)
	if !json.Valid(b) || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	return json.RawMessage(b)
}

// NormalizeSteps returns a sorted copy without duplicates.
func NormalizeSteps(steps []int) []int {
	seen := make(map[int]bool, len(steps))
	out := make([]int, 0, len(steps))
	for _, s := range steps {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

// ============================================================================
// Transfer objects
// ============================================================================

// SaveOnboardingRequest is the sync payload. Omitted or null sections are
// left untouched.
type SaveOnboardingRequest struct {
	BusinessInfo        json.RawMessage `json:"businessInfo,omitempty"`
	Objectives          json.RawMessage `json:"objectives,omitempty"`
	ContentArchitecture json.RawMessage `json:"contentArchitecture,omitempty"`
	BrandDesign         json.RawMessage `json:"brandDesign,omitempty"`
	TechnicalSetup      json.RawMessage `json:"technicalSetup,omitempty"`
	ProjectPlanning     json.RawMessage `json:"projectPlanning,omitempty"`
	CompletedSteps      []int           `json:"completedSteps,omitempty"`
	IsComplete          bool            `json:"isComplete"`
}

// SuppliedSections returns the sections carried by the request.
func (r *SaveOnboardingRequest) SuppliedSections() map[OnboardingSection]json.RawMessage {
	all := map[OnboardingSection]json.RawMessage{
		SectionBusinessInfo:        r.BusinessInfo,
		SectionObjectives:          r.Objectives,
		SectionContentArchitecture: r.ContentArchitecture,
		SectionBrandDesign:         r.BrandDesign,
		SectionTechnicalSetup:      r.TechnicalSetup,
		SectionProjectPlanning:     r.ProjectPlanning,
	}
	out := make(map[OnboardingSection]json.RawMessage, len(all))
	for section, raw := range all {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		out[section] = raw
	}
	return out
}

// OnboardingData is the GET /onboarding response.
type OnboardingData struct {
	BusinessInfo        json.RawMessage  `json:"businessInfo"`
	Objectives          json.RawMessage  `json:"objectives"`
	ContentArchitecture json.RawMessage  `json:"contentArchitecture"`
	BrandDesign         json.RawMessage  `json:"brandDesign"`
	TechnicalSetup      json.RawMessage  `json:"technicalSetup"`
	ProjectPlanning     json.RawMessage  `json:"projectPlanning"`
	CompletedSteps      []int            `json:"completedSteps"`
	CompletionStatus    CompletionStatus `json:"completionStatus"`
	SubmittedAt         *time.Time       `json:"submittedAt"`
}

func (d *OnboardingData) set(section OnboardingSection, raw json.RawMessage) {
	switch section {
	case SectionBusinessInfo:
		d.BusinessInfo = raw
	case SectionObjectives:
		d.Objectives = raw
	case SectionContentArchitecture:
		d.ContentArchitecture = raw
	case SectionBrandDesign:
		d.BrandDesign = raw
	case SectionTechnicalSetup:
		d.TechnicalSetup = raw
	case SectionProjectPlanning:
		d.ProjectPlanning = raw
	}
}

// Section returns the parsed value for section.
func (d *OnboardingData) Section(section OnboardingSection) json.RawMessage {
	switch section {
	case SectionBusinessInfo:
		return d.BusinessInfo
	case SectionObjectives:
		return d.Objectives
	case SectionContentArchitecture:
		return d.ContentArchitecture
	case SectionBrandDesign:
		return d.BrandDesign
	case SectionTechnicalSetup:
		return d.TechnicalSetup
	case SectionProjectPlanning:
		return d.ProjectPlanning
	}
	return nil
}

// EmptyOnboardingData is returned for users who never saved.
func EmptyOnboardingData() *OnboardingData {
	return &OnboardingData{
		CompletedSteps:   []int{},
		CompletionStatus: CompletionPending,
	}
}

// ============================================================================
// Draft (working copy between visits)
// ============================================================================

type OnboardingDraft struct {
	CurrentStep    int                                   `json:"currentStep"`
	Sections       map[OnboardingSection]json.RawMessage `json:"sections"`
	CompletedSteps []int                                 `json:"completedSteps"`
	LastUpdated    time.Time                             `json:"lastUpdated"`
}

func NewOnboardingDraft() *OnboardingDraft {
	return &OnboardingDraft{
		CurrentStep:    1,
		Sections:       map[OnboardingSection]json.RawMessage{},
		CompletedSteps: []int{},
	}
}

// MarkStepCompleted inserts step once, keeping the list sorted.
func (d *OnboardingDraft) MarkStepCompleted(step int) {
	d.CompletedSteps = NormalizeSteps(append(d.CompletedSteps, step))
}

// IsStepCompleted reports whether step is in the completed set.
func (d *OnboardingDraft) IsStepCompleted(step int) bool {
	for _, s := range d.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// StepInfo describes one wizard step for the client.
type StepInfo struct {
	Number         int               `json:"number"`
	Section        OnboardingSection `json:"section"`
	Title          string            `json:"title"`
	RequiredFields []string          `json:"requiredFields"`
}

type SetStepRequest struct {
	Step int `json:"step" binding:"required"`
}

type SyncDraftRequest struct {
	IsComplete bool `json:"isComplete"`
}

// ============================================================================
// Repository / store interfaces
// ============================================================================

type OnboardingRepository interface {
	GetByUserID(ctx context.Context, userID string) (*OnboardingResponse, error)
	// Upsert applies u atomically to the user's row, creating it if needed.
	Upsert(ctx context.Context, u OnboardingUpsert) (*OnboardingResponse, error)
	CountByStatus(ctx context.Context) (map[CompletionStatus]int64, error)
}

type OnboardingDraftStore interface {
	Load(ctx context.Context, userID string) (*OnboardingDraft, error)
	Save(ctx context.Context, userID string, draft *OnboardingDraft) error
	// Update applies fn to the stored draft as one atomic read-modify-write.
	// fn may run more than once and must only touch the draft it is given.
	Update(ctx context.Context, userID string, fn func(*OnboardingDraft) error) (*OnboardingDraft, error)
	Delete(ctx context.Context, userID string) error
}

// ============================================================================
// Usecase interface
// ============================================================================

type OnboardingUsecase interface {
	// Sync endpoint
	Save(ctx context.Context, req *SaveOnboardingRequest) (*OnboardingData, error)
	Get(ctx context.Context) (*OnboardingData, error)

	// Wizard state
	Steps() []StepInfo
	GetDraft(ctx context.Context) (*OnboardingDraft, error)
	ReplaceDraft(ctx context.Context, draft *OnboardingDraft) (*OnboardingDraft, error)
	SetStep(ctx context.Context, step int) (*OnboardingDraft, error)
	UpdateSection(ctx context.Context, section OnboardingSection, partial json.RawMessage) (*OnboardingDraft, error)
	CompleteStep(ctx context.Context, step int) (*OnboardingDraft, error)
	ResetDraft(ctx context.Context) error
	SyncDraft(ctx context.Context, isComplete bool) (*OnboardingData, error)
}
