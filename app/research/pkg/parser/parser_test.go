package parser

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/research_radar/app/research/pkg/model"
)

const sampleReport = `Here is the research briefing for Acme.

## Company Overview
Acme Corp is a mid-market retailer.
It operates 120 stores across the Midwest.

## Recent Developments
- Opened a new distribution center in Ohio
- Announced a loyalty program
Some commentary that is not a bullet.

**Key Stakeholders**
- Jane Doe - CEO
- **John Smith**: CTO
- Mary-Jane Watson — VP of Technology
Not a person line

### Technology Stack
1. Salesforce CRM
2) SAP ERP
* Snowflake

Challenges:
- Uses legacy CRM
•   Fragmented data

## Opportunities
- Unified customer data platform

## Recommendations
- Lead with a data platform pilot

## Financial Performance
- Revenue grew 4%
`

func TestHeuristic_ParsesAllSections(t *testing.T) {
	s := New().Parse(sampleReport)

	assert.Equal(t, "Acme Corp is a mid-market retailer.\nIt operates 120 stores across the Midwest.", s.CompanyOverview)
	assert.Equal(t, []string{"Opened a new distribution center in Ohio", "Announced a loyalty program"}, s.RecentDevelopments)
	assert.Equal(t, []model.Stakeholder{
		{Name: "Jane Doe", Role: "CEO"},
		{Name: "John Smith", Role: "CTO"},
		{Name: "Mary-Jane Watson", Role: "VP of Technology"},
	}, s.KeyStakeholders)
	assert.Equal(t, []string{"Salesforce CRM", "SAP ERP", "Snowflake"}, s.TechnologyStack)
	assert.Equal(t, []string{"Uses legacy CRM", "Fragmented data"}, s.Challenges)
	assert.Equal(t, []string{"Unified customer data platform"}, s.Opportunities)
	assert.Equal(t, []string{"Lead with a data platform pilot"}, s.Recommendations)
}

func TestHeuristic_UnknownHeadingDoesNotLeak(t *testing.T) {
	s := New().Parse(sampleReport)
	assert.NotContains(t, s.Recommendations, "Revenue grew 4%")
}

func TestHeuristic_Deterministic(t *testing.T) {
	p := New()
	a, err := json.Marshal(p.Parse(sampleReport))
	require.NoError(t, err)
	b, err := json.Marshal(p.Parse(sampleReport))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHeuristic_NoHeaders(t *testing.T) {
	raw := "Acme is a retailer with strong regional presence.\n- It uses a legacy CRM.\n"
	s := New().Parse(raw)

	// 没有任何表头时，前导文本整体作为公司概览
	assert.Equal(t, "Acme is a retailer with strong regional presence.\n- It uses a legacy CRM.", s.CompanyOverview)
	assert.Empty(t, s.RecentDevelopments)
	assert.Empty(t, s.KeyStakeholders)
	assert.Empty(t, s.TechnologyStack)
	assert.Empty(t, s.Challenges)
	assert.Empty(t, s.Opportunities)
	assert.Empty(t, s.Recommendations)
	assert.NotNil(t, s.TechnologyStack)
	assert.NotNil(t, s.KeyStakeholders)
}

func TestHeuristic_PreambleDiscardedWhenOverviewPresent(t *testing.T) {
	raw := "Sure! Here is your report.\n\n## Executive Summary\nAcme sells widgets to hospitals.\n"
	s := New().Parse(raw)
	assert.Equal(t, "Acme sells widgets to hospitals.", s.CompanyOverview)
}

func TestHeuristic_EmptyInput(t *testing.T) {
	s := New().Parse("")
	assert.Equal(t, "", s.CompanyOverview)
	assert.Equal(t, model.NewSections(), s)
}

func TestHeuristic_BulletStripping(t *testing.T) {
	s := New().Parse("## Challenges\n- Uses legacy CRM\n")
	require.Len(t, s.Challenges, 1)
	assert.Equal(t, "Uses legacy CRM", s.Challenges[0])
}

func TestHeuristic_FirstPatternWins(t *testing.T) {
	// "Technology Challenges" 同时命中 technology 与 challenges，表中靠前者胜出
	s := New().Parse("## Technology Challenges\n- Aging mainframe\n")
	assert.Equal(t, []string{"Aging mainframe"}, s.TechnologyStack)
	assert.Empty(t, s.Challenges)
}

func TestHeuristic_CaseInsensitiveAndPlainHeaders(t *testing.T) {
	raw := "TECH STACK\n- Kubernetes\nPain points:\n- Slow releases\n"
	s := New().Parse(raw)
	assert.Equal(t, []string{"Kubernetes"}, s.TechnologyStack)
	assert.Equal(t, []string{"Slow releases"}, s.Challenges)
}

func TestHeuristic_StakeholderLineWithSectionWord(t *testing.T) {
	raw := "## Leadership\nAlex Kim: Head of Technology\nSam Lee - Director, Data Team\n"
	s := New().Parse(raw)
	assert.Equal(t, []model.Stakeholder{
		{Name: "Alex Kim", Role: "Head of Technology"},
		{Name: "Sam Lee", Role: "Director, Data Team"},
	}, s.KeyStakeholders)
	assert.Empty(t, s.TechnologyStack)
}

func TestHeuristic_CustomHeaders(t *testing.T) {
	p := NewWithHeaders([]HeaderPattern{
		{SectionTechnology, regexp.MustCompile(`(?i)systems`)},
	})
	s := p.Parse("## Systems\n- Oracle\n## Challenges\n- ignored\n")
	assert.Equal(t, []string{"Oracle"}, s.TechnologyStack)
	assert.Empty(t, s.Challenges)
}

func TestHeuristic_BareOverviewHeading(t *testing.T) {
	raw := "# Acme Research Brief\n\n## Overview\nAcme sells widgets.\n\n## Technology\n- SAP\n"
	s := New().Parse(raw)
	assert.Equal(t, "Acme sells widgets.", s.CompanyOverview)
	assert.Equal(t, []string{"SAP"}, s.TechnologyStack)
}

func TestHeuristic_PlainHeaderWordLimit(t *testing.T) {
	// 不超过 8 个词的普通文本行仍可作为表头
	s := New().Parse("Key technology platforms and tools in use today\n- Snowflake\n")
	assert.Equal(t, []string{"Snowflake"}, s.TechnologyStack)

	s = New().Parse("Key technology platforms and tools they are using today\n- Snowflake\n")
	assert.Empty(t, s.TechnologyStack)
}
