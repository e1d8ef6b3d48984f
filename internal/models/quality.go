package models

// Severity grades a data-quality issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// DataQualityIssue is one finding from the upstream data-quality pass.
type DataQualityIssue struct {
	Severity        Severity `json:"severity"`
	Category        string   `json:"category"` // completeness, consistency, validity, anomaly
	Message         string   `json:"message"`
	AffectedRecords []string `json:"affected_records,omitempty"`
	Suggestion      string   `json:"suggestion,omitempty"`
}

// DataQualityReport collects issues with per-severity counts.
type DataQualityReport struct {
	TotalRecords  int                `json:"total_records"`
	Issues        []DataQualityIssue `json:"issues"`
	CriticalCount int                `json:"critical_issues"`
	WarningCount  int                `json:"warning_issues"`
	InfoCount     int                `json:"info_issues"`
}

// Add appends an issue and updates the counts.
func (r *DataQualityReport) Add(issue DataQualityIssue) {
	r.Issues = append(r.Issues, issue)
	switch issue.Severity {
	case SeverityCritical:
		r.CriticalCount++
	case SeverityWarning:
		r.WarningCount++
	default:
		r.InfoCount++
	}
}

// HasCritical returns true if any issue is critical.
func (r *DataQualityReport) HasCritical() bool {
	return r.CriticalCount > 0
}

// IsClean returns true when there are no critical or warning issues.
func (r *DataQualityReport) IsClean() bool {
	return r.CriticalCount == 0 && r.WarningCount == 0
}
