package extract

import (
	"encoding/json"
	"strings"
)

// Fallback values returned when instructions cannot be parsed.
const (
	UnknownDosage       = "Unknown"
	FallbackInstruction = "Could not parse instructions."
)

// ReminderSchedule is a structured dosing schedule. Times are 24h HH:MM in
// the order the doses are meant to be taken.
type ReminderSchedule struct {
	Drug         string   `json:"drug" validate:"required"`
	Dosage       string   `json:"dosage" validate:"required"`
	Times        []string `json:"times" validate:"dive,hhmm"`
	Instructions string   `json:"instructions"`
}

// Fallback returns the degraded schedule for drug.
func Fallback(drug string) ReminderSchedule {
	return ReminderSchedule{
		Drug:         strings.TrimSpace(drug),
		Dosage:       UnknownDosage,
		Times:        []string{},
		Instructions: FallbackInstruction,
	}
}

// IsFallback reports whether s is a degraded schedule.
func (s ReminderSchedule) IsFallback() bool {
	return s.Dosage == UnknownDosage && len(s.Times) == 0 && s.Instructions == FallbackInstruction
}

// ScheduleSchema is the JSON schema the model's reply must satisfy.
var ScheduleSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "drug": {"type": "string", "description": "Name of the drug"},
    "dosage": {"type": "string", "description": "Dosage amount, e.g. 500 mg"},
    "times": {
      "type": "array",
      "items": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
      "description": "Times of day to take the medication, 24h HH:MM"
    },
    "instructions": {"type": "string", "description": "Instructions such as take with food"}
  },
  "required": ["drug", "dosage", "times", "instructions"],
  "additionalProperties": false
}`)
