package policy

import (
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestBuildSystemPromptSelection(t *testing.T) {
	t.Parallel()

	full := PatientInfo{
		PatientName:       "Bob Miller",
		MedicalConditions: []string{"arthritis"},
		LastVisitDate:     "two months ago",
	}

	tests := []struct {
		name        string
		info        PatientInfo
		hasMessages bool
		contains    string
	}{
		{
			name:     "greeting before any messages",
			contains: "This is a cold call",
		},
		{
			name:        "extraction while collecting",
			info:        PatientInfo{PatientName: "Bob Miller"},
			hasMessages: true,
			contains:    "ONLY ONE field: " + FieldMedicalConditions,
		},
		{
			name:        "interested but incomplete",
			info:        PatientInfo{Interested: boolPtr(true)},
			hasMessages: true,
			contains:    "next missing item: " + FieldPatientName,
		},
		{
			name:        "interest question once form complete",
			info:        full,
			hasMessages: true,
			contains:    "interested in moving forward",
		},
		{
			name: "forward when complete and interested",
			info: PatientInfo{
				PatientName:       full.PatientName,
				MedicalConditions: full.MedicalConditions,
				LastVisitDate:     full.LastVisitDate,
				Interested:        boolPtr(true),
			},
			hasMessages: true,
			contains:    `"interested_customer_ready"`,
		},
		{
			name: "end call when complete and not interested",
			info: PatientInfo{
				PatientName:       full.PatientName,
				MedicalConditions: full.MedicalConditions,
				LastVisitDate:     full.LastVisitDate,
				Interested:        boolPtr(false),
			},
			hasMessages: true,
			contains:    `"not_interested"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := buildSystemPrompt(tt.info, tt.hasMessages)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("prompt missing %q:\n%s", tt.contains, got)
			}
		})
	}
}

func TestBuildSystemPromptCarriesProgress(t *testing.T) {
	t.Parallel()

	info := PatientInfo{
		PatientName: "Bob Miller",
		Extra:       map[string]string{"ethnicity": "hispanic"},
	}
	got := buildSystemPrompt(info, true)
	if !strings.Contains(got, "Bob Miller") {
		t.Error("prompt does not show collected name")
	}
	if !strings.Contains(got, "ethnicity: hispanic") {
		t.Error("prompt does not show extra fact")
	}
}
