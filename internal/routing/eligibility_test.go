package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/backend/internal/models"
)

func eligibilityRoster() []models.Manager {
	return []models.Manager{
		{ID: "m-1", Office: "Астана", Position: models.PositionSpecialist, Skills: []string{"VIP"}},
		{ID: "m-2", Office: "Астана", Position: models.PositionSenior, Skills: []string{"KZ"}},
		{ID: "m-3", Office: "Астана", Position: models.PositionChief, Skills: []string{"VIP", "ENG"}},
		{ID: "m-4", Office: "Астана", Position: models.PositionSpecialist},
	}
}

func managerIDs(ms []models.Manager) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func TestFilterEligibleMassRussianKeepsEveryone(t *testing.T) {
	res := FilterEligible(eligibilityRoster(), TicketAttributes{
		Segment: models.SegmentMass, Type: models.TypeConsultation,
		Language: "RU", Sentiment: models.SentimentNeutral,
	})

	assert.Empty(t, res.ReasonCode)
	assert.Equal(t, []string{"m-1", "m-2", "m-3", "m-4"}, managerIDs(res.Eligible))
}

func TestFilterEligibleVIPSegmentRequiresSkill(t *testing.T) {
	for _, segment := range []string{models.SegmentVIP, models.SegmentPriority} {
		res := FilterEligible(eligibilityRoster(), TicketAttributes{
			Segment: segment, Type: models.TypeComplaint, Language: "RU",
		})
		assert.Equal(t, []string{"m-1", "m-3"}, managerIDs(res.Eligible), segment)
		assert.True(t, res.NeedsVIP)
	}
}

func TestFilterEligibleVIPSkillMissing(t *testing.T) {
	roster := []models.Manager{
		{ID: "m-10", Office: "Тараз", Position: models.PositionSpecialist},
	}
	res := FilterEligible(roster, TicketAttributes{Segment: models.SegmentVIP, Language: "RU"})

	assert.Empty(t, res.Eligible)
	assert.Equal(t, ReasonVIPRequired, res.ReasonCode)
}

func TestFilterEligibleDataChangeNeedsChief(t *testing.T) {
	res := FilterEligible(eligibilityRoster(), TicketAttributes{
		Segment: models.SegmentMass, Type: models.TypeDataChange, Language: "RU",
	})

	assert.Equal(t, []string{"m-3"}, managerIDs(res.Eligible))
	assert.True(t, res.NeedsChief)
}

func TestFilterEligibleLanguageSkill(t *testing.T) {
	res := FilterEligible(eligibilityRoster(), TicketAttributes{
		Segment: models.SegmentMass, Language: "KZ",
	})
	assert.Equal(t, []string{"m-2"}, managerIDs(res.Eligible))

	res = FilterEligible(eligibilityRoster(), TicketAttributes{
		Segment: models.SegmentMass, Language: "ENG",
	})
	assert.Equal(t, []string{"m-3"}, managerIDs(res.Eligible))

	// Unknown languages collapse to RU and impose nothing.
	res = FilterEligible(eligibilityRoster(), TicketAttributes{
		Segment: models.SegmentMass, Language: "DE",
	})
	assert.Len(t, res.Eligible, 4)
}

func TestFilterEligibleLanguageSkillMissing(t *testing.T) {
	roster := []models.Manager{
		{ID: "m-20", Office: "Тараз", Position: models.PositionSpecialist, Skills: []string{"VIP"}},
	}
	res := FilterEligible(roster, TicketAttributes{Segment: models.SegmentMass, Language: "ENG"})

	assert.Empty(t, res.Eligible)
	assert.Equal(t, ReasonLanguageRequired, res.ReasonCode)
}

func TestFilterEligibleNegativeSentimentPrefersSeniors(t *testing.T) {
	res := FilterEligible(eligibilityRoster(), TicketAttributes{
		Segment: models.SegmentMass, Language: "RU", Sentiment: models.SentimentNegative,
	})

	assert.Equal(t, []string{"m-2", "m-3"}, managerIDs(res.Eligible))
	assert.True(t, res.NeedsSenior)
}

func TestFilterEligibleSeniorPreferenceNeverEmptiesPool(t *testing.T) {
	roster := []models.Manager{
		{ID: "m-30", Office: "Тараз", Position: models.PositionSpecialist},
		{ID: "m-31", Office: "Тараз", Position: models.PositionSpecialist},
	}
	res := FilterEligible(roster, TicketAttributes{
		Segment: models.SegmentMass, Language: "RU", Sentiment: models.SentimentNegative,
	})

	assert.Equal(t, []string{"m-30", "m-31"}, managerIDs(res.Eligible))
	assert.Empty(t, res.ReasonCode)
}

func TestFilterEligibleEmptyOffice(t *testing.T) {
	res := FilterEligible(nil, TicketAttributes{Segment: models.SegmentMass, Language: "RU"})

	assert.Empty(t, res.Eligible)
	assert.Equal(t, ReasonNoManagers, res.ReasonCode)
}

func TestFilterEligibleRecordsStageTrace(t *testing.T) {
	res := FilterEligible(eligibilityRoster(), TicketAttributes{
		Segment: models.SegmentVIP, Type: models.TypeDataChange,
		Language: "ENG", Sentiment: models.SentimentNegative,
	})

	require.Len(t, res.Stages, 5)
	names := make([]string, 0, len(res.Stages))
	for _, s := range res.Stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"office_candidates", "position_rule", "vip_rule", "language_rule", "seniority_pref"}, names)
	assert.Equal(t, []string{"m-3"}, managerIDs(res.Eligible))
}
