package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("10:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(10, 30), tod)
	assert.Equal(t, "10:30", tod.String())

	tod, err = ParseTimeOfDay("09:15:20")
	require.NoError(t, err)
	assert.Equal(t, "09:15:20", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestTimeOfDayScan(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan([]byte("11:00:00")))
	assert.Equal(t, NewTimeOfDay(11, 0), tod)

	require.NoError(t, tod.Scan("08:45:00.000000"))
	assert.Equal(t, NewTimeOfDay(8, 45), tod)

	require.NoError(t, tod.Scan(time.Date(0, 1, 1, 14, 5, 0, 0, time.UTC)))
	assert.Equal(t, NewTimeOfDay(14, 5), tod)

	assert.Error(t, tod.Scan(42))

	v, err := NewTimeOfDay(7, 5).Value()
	require.NoError(t, err)
	assert.Equal(t, "07:05:00", v)
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2024, time.June, 3)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-06-03"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, d.Equal(back.Time))
	assert.Equal(t, Monday, back.DayOfWeek())
}

func TestDateScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 6, 3, 0, 0, 0, 0, time.Local)))
	assert.Equal(t, "2024-06-03", d.String())

	require.NoError(t, d.Scan([]byte("2024-06-04T00:00:00Z")))
	assert.Equal(t, Tuesday, d.DayOfWeek())
}

func TestParseDayOfWeek(t *testing.T) {
	d, err := ParseDayOfWeek("monday")
	require.NoError(t, err)
	assert.Equal(t, Monday, d)

	_, err = ParseDayOfWeek("funday")
	assert.Error(t, err)
}

func TestScheduleSlotCoversInclusive(t *testing.T) {
	slot := ScheduleSlot{StartTime: NewTimeOfDay(10, 0), EndTime: NewTimeOfDay(11, 0)}

	assert.True(t, slot.Covers(NewTimeOfDay(10, 0)))
	assert.True(t, slot.Covers(NewTimeOfDay(10, 30)))
	assert.True(t, slot.Covers(NewTimeOfDay(11, 0)))
	assert.False(t, slot.Covers(NewTimeOfDay(11, 1)))
}

func TestScheduleSlotValidate(t *testing.T) {
	slot := ScheduleSlot{
		ProviderID: uuid.New(),
		DayOfWeek:  Monday,
		StartTime:  NewTimeOfDay(11, 0),
		EndTime:    NewTimeOfDay(10, 0),
	}
	assert.Error(t, slot.Validate())

	slot.StartTime, slot.EndTime = slot.EndTime, slot.StartTime
	assert.NoError(t, slot.Validate())

	slot.DayOfWeek = "FUNDAY"
	assert.Error(t, slot.Validate())
}
