// Package domain contains core business types and interfaces.
//
// This file defines the Assessment result produced by the text classifier.
// Assessments are ephemeral: produced fresh per invocation and never stored.
package domain

// Severity grades how urgent an assessed emergency appears.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ServiceTag names an emergency service an assessment may suggest.
type ServiceTag string

const (
	ServiceAmbulance ServiceTag = "ambulance"
	ServicePolice    ServiceTag = "police"
	ServiceFire      ServiceTag = "fire"
)

// Assessment is the classifier's verdict on a free-text description.
type Assessment struct {
	Severity       Severity     `json:"severity"`
	Services       []ServiceTag `json:"services"`
	Keywords       []string     `json:"keywords"`
	Recommendation string       `json:"recommendation"`
}
