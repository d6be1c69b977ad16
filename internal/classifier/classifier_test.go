package classifier

import (
	"testing"

	"github.com/rgoodwin/beacon/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestAssessCardiac(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"heart attack", "My father is having a heart attack"},
		{"cardiac", "possible cardiac arrest at the gym"},
		{"chest pain", "she complains of severe CHEST PAIN"},
		{"breathing", "he has trouble breathing after climbing the stairs"},
		{"cardiac plus other keywords", "heart attack and also a small fire in the kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.text)
			assert.Equal(t, domain.SeverityHigh, got.Severity)
			assert.Contains(t, got.Services, domain.ServiceAmbulance)
			assert.Contains(t, got.Keywords, "cardiac symptoms")
		})
	}
}

func TestAssessRulePrecedence(t *testing.T) {
	// Cardiac is checked before fire, so a description matching both is
	// classified only under cardiac.
	got := Assess("there was a fire after the heart attack")

	assert.Equal(t, domain.SeverityHigh, got.Severity)
	assert.Equal(t, []domain.ServiceTag{domain.ServiceAmbulance}, got.Services)
	assert.NotContains(t, got.Services, domain.ServiceFire)
	assert.NotContains(t, got.Keywords, "fire hazard")
}

func TestAssessFire(t *testing.T) {
	got := Assess("smoke is coming out of the neighbor's window")

	assert.Equal(t, domain.SeverityHigh, got.Severity)
	assert.Equal(t, []domain.ServiceTag{domain.ServiceFire}, got.Services)
	assert.Equal(t, []string{"fire hazard"}, got.Keywords)
}

func TestAssessVehicleAccidentCompound(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		matches bool
	}{
		{"accident literal", "there was an accident on the highway", true},
		{"crash literal", "two trucks crash near the bridge", true},
		{"collision literal", "a collision at the intersection", true},
		{"car with hit", "a car hit the fence", true},
		{"car with damage", "the car has severe damage after sliding off the road", true},
		{"car alone does not match", "my car is parked outside", false},
		{"hit without car does not match", "he hit the ball over the fence", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.text)
			if tt.matches {
				assert.Contains(t, got.Keywords, "vehicle accident")
				assert.Contains(t, got.Services, domain.ServicePolice)
			} else {
				assert.NotContains(t, got.Keywords, "vehicle accident")
			}
		})
	}
}

func TestAssessVehicleAccidentInjuryEscalation(t *testing.T) {
	got := Assess("a car hit a cyclist and he is bleeding")

	assert.Equal(t, domain.SeverityHigh, got.Severity)
	assert.Equal(t, []domain.ServiceTag{domain.ServicePolice, domain.ServiceAmbulance}, got.Services)
	assert.Equal(t, []string{"vehicle accident", "injuries"}, got.Keywords)
}

func TestAssessVehicleAccidentWithoutInjuries(t *testing.T) {
	got := Assess("minor collision in the parking lot, nobody harmed")

	assert.Equal(t, domain.SeverityMedium, got.Severity)
	assert.Equal(t, []domain.ServiceTag{domain.ServicePolice}, got.Services)
	assert.Equal(t, []string{"vehicle accident"}, got.Keywords)
}

func TestAssessInjury(t *testing.T) {
	tests := []string{
		"my grandmother fell down the stairs",
		"deep wound on his arm",
		"the runner is bleeding from the knee",
	}

	for _, text := range tests {
		got := Assess(text)
		assert.Equal(t, domain.SeverityMedium, got.Severity, "input: %s", text)
		assert.Equal(t, []domain.ServiceTag{domain.ServiceAmbulance}, got.Services)
		assert.Equal(t, []string{"injury"}, got.Keywords)
	}
}

func TestAssessCrime(t *testing.T) {
	tests := []string{
		"someone tried a break in at the shop",
		"a thief took her bag",
		"my bike was stolen last night",
		"there is a robbery at the bank",
	}

	for _, text := range tests {
		got := Assess(text)
		assert.Equal(t, domain.SeverityMedium, got.Severity, "input: %s", text)
		assert.Equal(t, []domain.ServiceTag{domain.ServicePolice}, got.Services)
		assert.Equal(t, []string{"crime"}, got.Keywords)
	}
}

func TestAssessFallback(t *testing.T) {
	got := Assess("the weather is lovely today")

	assert.Equal(t, domain.SeverityLow, got.Severity)
	assert.Empty(t, got.Services)
	assert.Empty(t, got.Keywords)
	assert.NotEmpty(t, got.Recommendation)
}

func TestAssessDeterministic(t *testing.T) {
	first := Assess("a car hit a pedestrian, she is hurt")
	second := Assess("a car hit a pedestrian, she is hurt")

	assert.Equal(t, first, second)
}
