package e2e

import (
	"strings"
	"testing"
)

func TestBuildCorpus_Returns100Records(t *testing.T) {
	c := BuildCorpus()
	if c.TotalRecords != 100 {
		t.Errorf("expected 100 records, got %d", c.TotalRecords)
	}
	if len(c.Records) != 100 {
		t.Errorf("expected len(Records)=100, got %d", len(c.Records))
	}
}

func TestBuildCorpus_UniqueElementIDs(t *testing.T) {
	c := BuildCorpus()
	seen := make(map[string]bool, len(c.Records))
	for i, rec := range c.Records {
		id := rec.ElementID()
		if id == "" {
			t.Errorf("record %d: empty element ID", i)
			continue
		}
		if seen[id] {
			t.Errorf("duplicate element ID %q", id)
		}
		seen[id] = true
	}
}

func TestBuildCorpus_QueryTestCasesTargetCorpus(t *testing.T) {
	c := BuildCorpus()
	if c.TotalQueries == 0 {
		t.Fatal("expected at least one query test case")
	}
	byID := make(map[string]int, len(c.Records))
	for i, rec := range c.Records {
		byID[rec.ElementID()] = i
	}
	for _, tc := range c.TestCases {
		i, ok := byID[tc.ExpectedElement]
		if !ok {
			t.Errorf("test case %q targets %q which is not in the corpus", tc.Description, tc.ExpectedElement)
			continue
		}
		if tc.Query != c.Records[i].Description() {
			t.Errorf("test case %q: query is not the exact description of %s", tc.Description, tc.ExpectedElement)
		}
	}
}

func TestBuildCorpus_DescriptionsRenderWithoutFallbacks(t *testing.T) {
	c := BuildCorpus()
	for _, rec := range c.Records {
		desc := rec.Description()
		if !strings.Contains(desc, rec.ElementID()) {
			t.Errorf("description of %s does not mention its element ID", rec.ElementID())
		}
		if strings.Contains(desc, "Unknown") {
			t.Errorf("description of %s fell back to Unknown:\n%s", rec.ElementID(), desc)
		}
		if strings.Contains(desc, "part of the .") {
			t.Errorf("description of %s has an empty system:\n%s", rec.ElementID(), desc)
		}
	}
}
