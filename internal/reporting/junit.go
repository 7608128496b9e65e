package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/agentgauge/agentgauge/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one batch run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one visible unit of work.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

// JUnitFailure represents a failed test.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a BatchOutcome to JUnit XML format. Visible units of
// work become test cases; multi-run children only contribute failure detail to
// their parent's case.
func ConvertToJUnit(outcome *models.BatchOutcome) *JUnitTestSuites {
	durationSec := float64(outcome.Digest.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      outcome.BatchName,
		Tests:     outcome.Digest.TotalTests,
		Failures:  outcome.Digest.Failed,
		Time:      durationSec,
		Timestamp: outcome.StartedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "success_rate", Value: fmt.Sprintf("%.4f", outcome.Digest.SuccessRate)},
			{Name: "cache_hits", Value: fmt.Sprintf("%d", outcome.Digest.CacheHits)},
			{Name: "evaluator_calls", Value: fmt.Sprintf("%d", outcome.Digest.EvaluatorCalls)},
		},
	}

	for _, rec := range outcome.Records {
		if !rec.VisibleInQueue {
			continue
		}
		suite.TestCases = append(suite.TestCases, convertRecord(outcome, rec))
	}

	return &JUnitTestSuites{
		Tests:      outcome.Digest.TotalTests,
		Failures:   outcome.Digest.Failed,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertRecord(outcome *models.BatchOutcome, rec *models.TestRecord) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      rec.ID,
		Classname: fmt.Sprintf("%s.%s", rec.EntityName, rec.Dimension),
		Time:      float64(rec.LatencyMs) / 1000.0,
	}

	if rec.Status == models.StatusFailed {
		tc.Failure = buildFailure(outcome, rec)
	}

	return tc
}

func buildFailure(outcome *models.BatchOutcome, rec *models.TestRecord) *JUnitFailure {
	failure := &JUnitFailure{Type: "TestFailure"}

	switch {
	case rec.ErrorMsg != "":
		failure.Message = rec.ErrorMsg
		failure.Type = "ExecutionError"
	case rec.Evaluation != nil:
		failure.Message = fmt.Sprintf("%s: score=%.2f", rec.ID, rec.Evaluation.Score)
		failure.Type = "EvaluationFailure"
		failure.Body = rec.Evaluation.Reasoning
	case rec.IsParent:
		failure.Message = fmt.Sprintf("%s: majority failed across %d runs", rec.ID, rec.TotalRuns)
		failure.Type = "MajorityFailure"
		failure.Body = formatFailedRuns(outcome, rec.ID)
	default:
		failure.Message = string(rec.Status)
	}

	return failure
}

// formatFailedRuns lists each failed child run of a multi-run group.
func formatFailedRuns(outcome *models.BatchOutcome, parentID string) string {
	var result string
	for _, rec := range outcome.Records {
		if rec.ParentID != parentID || rec.Status != models.StatusFailed {
			continue
		}
		detail := rec.ErrorMsg
		if detail == "" && rec.Evaluation != nil {
			detail = rec.Evaluation.Reasoning
		}
		result += fmt.Sprintf("[FAIL] run %d: %s\n", rec.RunIndex, detail)
	}
	return result
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(outcome *models.BatchOutcome, path string) error {
	suites := ConvertToJUnit(outcome)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
