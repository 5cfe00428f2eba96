package utils

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type expectedTime struct {
	timestamp   any
	parsedValue time.Time
}

func TestToTime(t *testing.T) {
	t.Run("With supported time format", func(t *testing.T) {
		valueInt, _ := time.Parse(time.RFC3339, "2025-03-03T13:03:29Z")
		valueFloat, _ := time.Parse(time.RFC3339, "2025-03-03T13:03:29.344Z")

		expectations := []expectedTime{
			expectedTime{
				timestamp:   1741007009,
				parsedValue: valueInt,
			},
			expectedTime{
				timestamp:   int64(1741007009),
				parsedValue: valueInt,
			},
			expectedTime{
				timestamp:   float64(1741007009.344),
				parsedValue: valueFloat,
			},
			expectedTime{
				timestamp:   fmt.Sprintf("%f", 1741007009.344),
				parsedValue: valueFloat,
			},
		}

		for _, test := range expectations {
			result := ToTime(test.timestamp)
			assert.True(t, result.Success())
			assert.Equal(t, test.parsedValue, result.Value())
		}
	})

	t.Run("With unsuported time format", func(t *testing.T) {
		result := ToTime("2025-03-03T13:03:29Z")
		assert.False(t, result.Success())
		assert.Equal(t, "strconv.ParseFloat: parsing \"2025-03-03T13:03:29Z\": invalid syntax", result.ErrorMsg())
	})
}

func TestCustomTime(t *testing.T) {
	t.Run("With RFC3339 time format", func(t *testing.T) {
		ct := &CustomTime{}

		value := "2025-03-03T13:03:29Z"
		err := ct.UnmarshalJSON([]byte(value))
		assert.NoError(t, err)
		assert.Equal(t, value, ct.String())

		json, err := ct.MarshalJSON()
		assert.NoError(t, err)

		data := make([]byte, 0, 22)
		assert.Equal(t, json, fmt.Appendf(data, "\"%s\"", value))
	})

	t.Run("With zone-less time format", func(t *testing.T) {
		ct := &CustomTime{}

		err := ct.UnmarshalJSON([]byte("2025-03-03T13:03:29"))
		assert.NoError(t, err)
		assert.Equal(t, "2025-03-03T13:03:29Z", ct.String())
	})

	t.Run("With invalid time format", func(t *testing.T) {
		ct := &CustomTime{}

		err := ct.UnmarshalJSON([]byte("03/03/2025 13:03"))
		assert.Error(t, err)
	})

	t.Run("When timestamp is a unix timestamp sent as string", func(t *testing.T) {
		ct := &CustomTime{}
		value := "1744335427"
		expectedTime := "2025-04-11T01:37:07Z"

		err := ct.UnmarshalJSON([]byte(value))
		assert.NoError(t, err)
		assert.Equal(t, expectedTime, ct.String())

		json, err := ct.MarshalJSON()
		assert.NoError(t, err)

		data := make([]byte, 0, 22)
		assert.Equal(t, json, fmt.Appendf(data, "\"%s\"", expectedTime))
	})
}

func TestNullTime(t *testing.T) {
	t.Run("should unmarshal microseconds, RFC3339 strings and null", func(t *testing.T) {
		nt := &NullTime{}
		assert.NoError(t, nt.UnmarshalJSON([]byte("1744335427000000")))
		assert.True(t, nt.Valid)
		assert.Equal(t, int64(1744335427), nt.Time.Unix())

		nt = &NullTime{}
		assert.NoError(t, nt.UnmarshalJSON([]byte(`"2025-04-11T01:37:07Z"`)))
		assert.True(t, nt.Valid)
		assert.Equal(t, int64(1744335427), nt.Time.Unix())

		nt = &NullTime{}
		assert.NoError(t, nt.UnmarshalJSON([]byte("null")))
		assert.False(t, nt.Valid)
	})

	t.Run("should reject an unparseable string", func(t *testing.T) {
		nt := &NullTime{}
		assert.Error(t, nt.UnmarshalJSON([]byte(`"yesterday"`)))
	})

	t.Run("should marshal invalid as null and valid as microseconds", func(t *testing.T) {
		nt := &NullTime{}
		data, err := nt.MarshalJSON()
		assert.NoError(t, err)
		assert.Equal(t, "null", string(data))

		valid := NewNullTime(time.UnixMicro(1744335427000000).UTC())
		data, err = valid.MarshalJSON()
		assert.NoError(t, err)
		assert.Equal(t, "1744335427000000", string(data))
	})
}
