package model

import (
	"encoding/json"
	"testing"
)

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityLow, "LOW"},
		{SeverityMedium, "MEDIUM"},
		{SeverityHigh, "HIGH"},
		{Severity(999), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

func TestSeverityJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		S Severity `json:"s"`
	}{S: SeverityHigh})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"s":"HIGH"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var decoded struct {
		S Severity `json:"s"`
	}
	if err := json.Unmarshal([]byte(`{"s":"medium"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.S != SeverityMedium {
		t.Errorf("expected MEDIUM, got %s", decoded.S)
	}

	if err := json.Unmarshal([]byte(`{"s":"CRITICAL"}`), &decoded); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestSeverityForRisk(t *testing.T) {
	t.Parallel()

	if SeverityForRisk(RiskHigh) != SeverityHigh {
		t.Error("HIGH risk should map to HIGH severity")
	}
	if SeverityForRisk(RiskMedium) != SeverityMedium {
		t.Error("MEDIUM risk should map to MEDIUM severity")
	}
	if SeverityForRisk(RiskLow) != SeverityLow {
		t.Error("LOW risk should map to LOW severity")
	}
	if SeverityForRisk("") != SeverityLow {
		t.Error("empty risk should map to LOW severity")
	}
}
