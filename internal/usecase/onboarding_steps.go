package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"launchpad-backend/internal/domain"
)

// StepDefinition binds a wizard step to the section it edits and the check
// that gates advancing past it.
type StepDefinition struct {
	Number   int
	Section  domain.OnboardingSection
	Title    string
	Required []string
}

// OnboardingSteps is the wizard, in order.
var OnboardingSteps = []StepDefinition{
	{Number: 1, Section: domain.SectionBusinessInfo, Title: "Business info", Required: []string{"companyName", "industry", "description"}},
	{Number: 2, Section: domain.SectionObjectives, Title: "Objectives", Required: []string{"primaryGoal", "targetAudience"}},
	{Number: 3, Section: domain.SectionContentArchitecture, Title: "Content architecture", Required: []string{"pages"}},
	{Number: 4, Section: domain.SectionBrandDesign, Title: "Brand & design", Required: []string{"stylePreference"}},
	{Number: 5, Section: domain.SectionTechnicalSetup, Title: "Technical setup", Required: []string{"domain"}},
	{Number: 6, Section: domain.SectionProjectPlanning, Title: "Project planning", Required: []string{"timeline", "budget"}},
}

// StepFor returns the definition of step n.
func StepFor(n int) (StepDefinition, bool) {
	if n < 1 || n > len(OnboardingSteps) {
		return StepDefinition{}, false
	}
	return OnboardingSteps[n-1], true
}

// Validate reports the first required key that is missing or blank.
func (s StepDefinition) Validate(raw json.RawMessage) error {
	var fields map[string]json.RawMessage
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("%s must be an object", s.Title)
		}
	}

	var missing []string
	for _, key := range s.Required {
		if isBlank(fields[key]) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is missing: %s", s.Title, strings.Join(missing, ", "))
	}
	return nil
}

// CanAdvance checks whether the draft satisfies step n.
func CanAdvance(n int, draft *domain.OnboardingDraft) error {
	step, ok := StepFor(n)
	if !ok {
		return fmt.Errorf("step must be between 1 and %d", len(OnboardingSteps))
	}
	return step.Validate(draft.Sections[step.Section])
}

// isBlank treats null, "", whitespace, [] and {} as absent.
func isBlank(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return true
	}
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// stepInfos renders the table for clients.
func stepInfos() []domain.StepInfo {
	out := make([]domain.StepInfo, 0, len(OnboardingSteps))
	for _, s := range OnboardingSteps {
		out = append(out, domain.StepInfo{
			Number:         s.Number,
			Section:        s.Section,
			Title:          s.Title,
			RequiredFields: s.Required,
		})
	}
	return out
}
