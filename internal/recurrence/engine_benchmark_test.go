package recurrence

import (
	"testing"
	"time"
)

func BenchmarkEngineExpand(b *testing.B) {
	engine := NewEngine(nil, 0)
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	def := Definition{
		Frequency: FrequencyWeekly,
		Interval:  1,
		Weekdays: []time.Weekday{
			time.Monday,
			time.Tuesday,
			time.Wednesday,
			time.Thursday,
			time.Friday,
		},
		End: AfterDate(start.AddDate(0, 3, 0)),
	}
	slot := TimeSlot{Start: 9 * time.Hour, End: 10*time.Hour + 30*time.Minute}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		instances, err := engine.Expand(def, start, slot)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(instances) == 0 {
			b.Fatal("expected instances to be generated")
		}
	}
}
