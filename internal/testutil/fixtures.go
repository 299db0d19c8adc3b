// Package testutil provides deterministic fixtures shared by tests and the
// scenario harness.
package testutil

import (
	"time"

	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// Start is the default simulation start date used by fixtures.
var Start = timeline.Date(2025, time.January, 1)

// Day returns Start plus n calendar days.
func Day(n int) time.Time {
	return Start.AddDate(0, 0, n)
}

// Patient returns a patient entity with the given attributes.
func Patient(id string, attrs ir.IRObject) engine.Entity {
	if attrs == nil {
		attrs = ir.IRObject{}
	}
	return engine.Entity{ID: id, Type: "patient", Attributes: attrs}
}

// DiabetesJourney is a fixed-delay journey: diagnosis on day 0, metformin
// order on day 7 for adults, A1C lab order on day 90.
func DiabetesJourney() *journey.JourneySpecification {
	days := 365
	return &journey.JourneySpecification{
		ID:           "diabetes-onset",
		Name:         "Type 2 diabetes onset",
		Products:     []string{trigger.ProductPatient, trigger.ProductMember},
		DurationDays: &days,
		Events: []journey.EventDefinition{
			{
				ID:        "dx",
				Name:      "Diagnosis",
				EventType: "diagnosis",
				Product:   trigger.ProductPatient,
				Delay:     journey.Fixed(0),
				Parameters: ir.IRObject{
					"icd10":        ir.IRString("E11.9"),
					"provider_npi": ir.IRString("1234567893"),
				},
			},
			{
				ID:        "rx",
				Name:      "Metformin",
				EventType: "medication_order",
				Product:   trigger.ProductPatient,
				Delay:     journey.Fixed(7),
				DependsOn: "dx",
				Conditions: []journey.EventCondition{
					{Field: "entity.age", Operator: journey.OpGte, Value: ir.IRInt(18)},
				},
				Parameters: ir.IRObject{
					"drug":        ir.IRString("metformin"),
					"ndc":         ir.IRString("00093-1048-01"),
					"days_supply": ir.IRInt(30),
				},
			},
			{
				ID:        "a1c",
				Name:      "A1C follow-up",
				EventType: "lab_order",
				Product:   trigger.ProductPatient,
				Delay:     journey.Fixed(90),
				DependsOn: "dx",
				Parameters: ir.IRObject{
					"loinc": ir.IRString("4548-4"),
				},
			},
		},
	}
}
