package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSlotStartsAtUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	slot := TimeSlot{SlotDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), StartTime: "09:30:00"}

	start, err := slot.StartsAt(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC), start.UTC())
}

func TestTimeSlotParsesPostgresTimeForms(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"14:05", "14:05:00", "14:05:00.000000", "0000-01-01T14:05:00Z"} {
		slot := TimeSlot{SlotDate: date, StartTime: raw}
		start, err := slot.StartsAt(time.UTC)
		require.NoError(t, err, raw)
		assert.Equal(t, 14, start.Hour(), raw)
		assert.Equal(t, 5, start.Minute(), raw)
	}
	_, err := TimeSlot{SlotDate: date, StartTime: "noon"}.StartsAt(time.UTC)
	assert.Error(t, err)
}

func TestTimeSlotBookable(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	slot := TimeSlot{SlotDate: now, StartTime: "09:00", MaxBookings: 2, CurrentBookings: 1}
	assert.True(t, slot.Bookable(now, time.UTC))

	slot.CurrentBookings = 2
	assert.False(t, slot.Bookable(now, time.UTC))

	slot.CurrentBookings = 0
	slot.StartTime = "07:59"
	assert.False(t, slot.Bookable(now, time.UTC))
}

func TestCoachMatchesAnyIgnoresCase(t *testing.T) {
	coach := Coach{Specialties: []string{"Leadership", " Career Growth "}}
	assert.True(t, coach.MatchesAny([]string{"career growth"}))
	assert.True(t, coach.MatchesAny([]string{"x", "LEADERSHIP"}))
	assert.False(t, coach.MatchesAny([]string{"fitness"}))
	assert.False(t, coach.MatchesAny(nil))
}

func TestPayoutTransitions(t *testing.T) {
	cases := []struct {
		from, to PayoutStatus
		allowed  bool
	}{
		{PayoutStatusPending, PayoutStatusProcessing, true},
		{PayoutStatusPending, PayoutStatusPaid, true},
		{PayoutStatusPending, PayoutStatusFailed, false},
		{PayoutStatusProcessing, PayoutStatusFailed, true},
		{PayoutStatusFailed, PayoutStatusProcessing, true},
		{PayoutStatusFailed, PayoutStatusPaid, false},
		{PayoutStatusPaid, PayoutStatusCancelled, false},
		{PayoutStatusCancelled, PayoutStatusPending, false},
		{PayoutStatusPending, PayoutStatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, PayoutStatusPaid.Terminal())
	assert.False(t, PayoutStatusFailed.Terminal())
}

func TestParsePayoutStatus(t *testing.T) {
	status, err := ParsePayoutStatus(" PAID ")
	require.NoError(t, err)
	assert.Equal(t, PayoutStatusPaid, status)

	_, err = ParsePayoutStatus("refunded")
	assert.Error(t, err)
}

func TestDetailsAcceptsBothShapes(t *testing.T) {
	var structured Details[BankAccount]
	require.NoError(t, json.Unmarshal([]byte(`{"account_holder":"A. Coach","account_number":"0012","bank_name":"HDFC"}`), &structured))
	require.NotNil(t, structured.Structured)
	assert.Equal(t, "0012", structured.Structured.AccountNumber)

	var freeform Details[BankAccount]
	require.NoError(t, json.Unmarshal([]byte(`"pay via UPI coach@bank"`), &freeform))
	assert.Nil(t, freeform.Structured)
	assert.Equal(t, "pay via UPI coach@bank", freeform.Freeform)

	var unknown Details[TaxInfo]
	require.NoError(t, json.Unmarshal([]byte(`{"vat":"DE123"}`), &unknown))
	assert.Nil(t, unknown.Structured)
	assert.Empty(t, unknown.Freeform)
	assert.JSONEq(t, `{"vat":"DE123"}`, string(unknown.Raw))

	var empty Details[TaxInfo]
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`42`), &empty))
}

func TestDetailsUnknownObjectStaysAnObject(t *testing.T) {
	var bank Details[BankAccount]
	require.NoError(t, json.Unmarshal([]byte(`{"upi_id": "coach@upi"}`), &bank))

	encoded, err := json.Marshal(bank)
	require.NoError(t, err)
	assert.JSONEq(t, `{"upi_id":"coach@upi"}`, string(encoded))

	stored, err := bank.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"upi_id":"coach@upi"}`, string(stored.([]byte)))

	var scanned Details[BankAccount]
	require.NoError(t, scanned.Scan(stored))
	assert.Nil(t, scanned.Structured)
	assert.JSONEq(t, `{"upi_id":"coach@upi"}`, string(scanned.Raw))

	var text Details[BankAccount]
	require.NoError(t, json.Unmarshal([]byte(`"{\"upi_id\":\"coach@upi\"}"`), &text))
	encoded, err = json.Marshal(text)
	require.NoError(t, err)
	assert.Equal(t, `"{\"upi_id\":\"coach@upi\"}"`, string(encoded), "a string stays a string")
}

func TestDetailsScanAndValue(t *testing.T) {
	in := StructuredDetails(TaxInfo{PAN: "ABCDE1234F"})
	raw, err := in.Value()
	require.NoError(t, err)

	var out Details[TaxInfo]
	require.NoError(t, out.Scan(raw))
	require.NotNil(t, out.Structured)
	assert.Equal(t, "ABCDE1234F", out.Structured.PAN)

	text := FreeformDetails[TaxInfo]("exempt")
	raw, err = text.Value()
	require.NoError(t, err)
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, "exempt", out.Freeform)

	raw, err = Details[TaxInfo]{}.Value()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestWorkflowSessionGuards(t *testing.T) {
	s := NewWorkflowSession("u1", UserTypeIndividual, nil, time.Now())
	assert.False(t, s.Advance())

	s.Course = &Course{ID: "c1", Price: 500}
	assert.True(t, s.Advance())
	assert.Equal(t, StageCoachSelection, s.Stage)

	s.Coach = &Coach{ID: "k1"}
	s.NoMatchingCoach = true
	assert.False(t, s.Advance())
	s.NoMatchingCoach = false
	assert.True(t, s.Advance())

	assert.False(t, s.Advance())
	s.Slot = &TimeSlot{ID: "s1", CoachID: "k1"}
	assert.True(t, s.Advance())
	assert.True(t, s.Advance())
	assert.Equal(t, StagePayment, s.Stage)
	assert.False(t, s.Advance())

	assert.True(t, s.Retreat())
	assert.Equal(t, StageReview, s.Stage)
	assert.NotNil(t, s.Slot)
	assert.True(t, s.Complete())
	assert.True(t, s.RequiresPayment())

	s.Reset()
	assert.Equal(t, StageCoursePreview, s.Stage)
	assert.False(t, s.Complete())
	assert.False(t, s.Retreat())
}

func TestRequiresPayment(t *testing.T) {
	s := &WorkflowSession{UserType: UserTypeEmployee, Course: &Course{Price: 900}}
	assert.False(t, s.RequiresPayment())
	s.UserType = UserTypeIndividual
	assert.True(t, s.RequiresPayment())
	s.Course.Price = 0
	assert.False(t, s.RequiresPayment())
}
