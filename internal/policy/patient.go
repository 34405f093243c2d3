package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonical patient-info field names, in the order the agent asks for them.
const (
	FieldPatientName       = "patient_name"
	FieldMedicalConditions = "medical_conditions"
	FieldLastVisitDate     = "last_visit_date"
	FieldInterested        = "interested"
)

// requiredFields are the facts that must be collected before the interest
// question is considered the only thing left.
var requiredFields = []string{
	FieldPatientName,
	FieldMedicalConditions,
	FieldLastVisitDate,
}

// PatientInfo is the extraction form filled in over the course of a call.
// The zero value is an empty form.
type PatientInfo struct {
	// PatientName is the customer's full name.
	PatientName string `json:"patient_name,omitempty"`

	// MedicalConditions lists conditions the customer mentioned.
	MedicalConditions []string `json:"medical_conditions,omitempty"`

	// LastVisitDate is when the customer last saw their doctor, as spoken.
	LastVisitDate string `json:"last_visit_date,omitempty"`

	// Interested is nil until the customer has stated a preference.
	Interested *bool `json:"interested,omitempty"`

	// Extra holds extraction keys outside the canonical schema, so a
	// prompt change can start collecting new facts without a code change.
	Extra map[string]string `json:"-"`
}

// Merge applies a partial update parsed from an update_patient_info tool
// call. Only keys present in the JSON overwrite existing values; absent keys
// are left untouched. Unknown keys land in Extra.
func (p *PatientInfo) Merge(argumentsJSON string) error {
	var raw map[string]any
	if err := json.Unmarshal([]byte(argumentsJSON), &raw); err != nil {
		return fmt.Errorf("policy: parse patient update: %w", err)
	}

	for key, val := range raw {
		if val == nil {
			continue
		}
		switch key {
		case FieldPatientName:
			if s, ok := val.(string); ok && s != "" {
				p.PatientName = s
			}
		case FieldMedicalConditions:
			if conds := toStringList(val); conds != nil {
				p.MedicalConditions = conds
			}
		case FieldLastVisitDate:
			if s, ok := val.(string); ok && s != "" {
				p.LastVisitDate = s
			}
		case FieldInterested:
			if b, ok := val.(bool); ok {
				v := b
				p.Interested = &v
			}
		default:
			s := fmt.Sprintf("%v", val)
			if s == "" {
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[key] = s
		}
	}
	return nil
}

// Pending returns the required fields still missing, in asking order.
func (p *PatientInfo) Pending() []string {
	var out []string
	if p.PatientName == "" {
		out = append(out, FieldPatientName)
	}
	if len(p.MedicalConditions) == 0 {
		out = append(out, FieldMedicalConditions)
	}
	if p.LastVisitDate == "" {
		out = append(out, FieldLastVisitDate)
	}
	return out
}

// Complete reports whether every required field has been collected.
// The interest answer is tracked separately.
func (p *PatientInfo) Complete() bool {
	return len(p.Pending()) == 0
}

// ConditionsJoined returns the conditions as one comma-joined string, the
// flattened form used in the call record.
func (p *PatientInfo) ConditionsJoined() string {
	return strings.Join(p.MedicalConditions, ", ")
}

// progressJSON renders the form for inclusion in a system prompt.
func (p *PatientInfo) progressJSON() string {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "{}"
	}
	if len(p.Extra) == 0 {
		return string(b)
	}
	// Append extras deterministically so prompts are stable.
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.Write(b)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%s: %s", k, p.Extra[k])
	}
	return sb.String()
}

// toStringList accepts a JSON array of strings or a single comma-separated
// string, the two shapes models actually produce for list arguments.
func toStringList(val any) []string {
	switch v := val.(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
