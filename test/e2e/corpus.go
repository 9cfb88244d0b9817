// Package e2e provides end-to-end tests over the full ingest, query, and
// persistence stack with a generated equipment corpus.
package e2e

import (
	"fmt"

	"github.com/yosgi/GeoCopilot/internal/models"
)

// QueryTestCase defines a query and the element ID that must rank first.
// Queries are exact rendered descriptions: the mock embedder is a content
// hash, so only identical text is guaranteed nearest.
type QueryTestCase struct {
	Query           string
	ExpectedElement string
	Description     string
}

// Corpus holds equipment records and query test cases for E2E tests.
type Corpus struct {
	Records      []models.Record
	TestCases    []QueryTestCase
	TotalRecords int
	TotalQueries int
}

// BuildCorpus returns a corpus of 100 equipment records spread over ten plant
// systems, with query test cases targeting a sample of them. Every record
// carries the full field set so descriptions render without fallbacks.
func BuildCorpus() *Corpus {
	records := buildRecords()
	cases := buildQueryTestCases(records)
	return &Corpus{
		Records:      records,
		TestCases:    cases,
		TotalRecords: len(records),
		TotalQueries: len(cases),
	}
}

var corpusSystems = []string{
	"cooling water system",
	"compressed air system",
	"fire protection system",
	"ventilation and air conditioning system",
	"electrical distribution system",
	"fuel oil transfer system",
	"steam condensate system",
	"instrument air system",
	"service water system",
	"emergency diesel generator system",
}

var corpusKinds = []struct {
	concept  string
	name     string
	function string
}{
	{"centrifugal pump", "Circulating Pump", "circulates process fluid through the loop"},
	{"heat exchanger", "Plate Heat Exchanger", "transfers heat between the primary and secondary circuits"},
	{"isolation valve", "Motor-Operated Isolation Valve", "isolates the line for maintenance work"},
	{"storage tank", "Buffer Storage Tank", "buffers supply fluctuations and provides reserve capacity"},
	{"air compressor", "Rotary Screw Compressor", "compresses air for distribution to consumers"},
	{"control valve", "Pneumatic Control Valve", "regulates downstream pressure to setpoint"},
	{"electric motor", "Induction Drive Motor", "drives the coupled rotating equipment"},
	{"filter unit", "Duplex Strainer", "removes particulates from the process stream"},
	{"cooling fan", "Axial Flow Fan", "moves air across the heat exchanger banks"},
	{"instrument transmitter", "Differential Pressure Transmitter", "measures flow across the orifice plate"},
}

var corpusCodes = [][]string{
	{"ASME B31.1", "API 610"},
	{"ISO 14224", "IEC 60034"},
	{"NFPA 20", "ASME VIII"},
	{"ISO 10816", "API 682"},
}

var corpusStrategies = []string{
	"preventive maintenance on a fixed calendar",
	"condition-based maintenance driven by online monitoring",
	"predictive maintenance from vibration trend analysis",
	"run-to-failure for non-critical duty",
}

var corpusInspections = [][]string{
	{"visual inspection", "vibration analysis"},
	{"thermographic survey", "lubricant sampling"},
	{"ultrasonic thickness measurement", "leak check"},
	{"functional test", "calibration check"},
}

func buildRecords() []models.Record {
	out := make([]models.Record, 0, len(corpusSystems)*len(corpusKinds))
	n := 0
	for si, system := range corpusSystems {
		for ki, kind := range corpusKinds {
			n++
			out = append(out, models.Record{
				"element":                 fmt.Sprintf("EQ-%03d", n),
				"name":                    fmt.Sprintf("%s Unit %02d", kind.name, n),
				"system":                  system,
				"subcategory":             kind.concept,
				"equipment_concept":       kind.concept,
				"function":                kind.function,
				"applicable_codes":        corpusCodes[(si+ki)%len(corpusCodes)],
				"maintenance_strategy":    corpusStrategies[ki%len(corpusStrategies)],
				"inspection_requirements": corpusInspections[si%len(corpusInspections)],
			})
		}
	}
	return out
}

// buildQueryTestCases samples every ninth record so cases cover several
// systems and kinds rather than one block of the corpus.
func buildQueryTestCases(records []models.Record) []QueryTestCase {
	cases := make([]QueryTestCase, 0, len(records)/9+1)
	for i := 0; i < len(records); i += 9 {
		rec := records[i]
		cases = append(cases, QueryTestCase{
			Query:           rec.Description(),
			ExpectedElement: rec.ElementID(),
			Description:     fmt.Sprintf("exact description retrieves %s", rec.ElementID()),
		})
	}
	return cases
}
