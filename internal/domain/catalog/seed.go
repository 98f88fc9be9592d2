package catalog

import (
	"context"
	"fmt"
	"time"
)

type demoVenue struct {
	name     string
	capacity int
	sections []Section
	musicals []string
}

// デモ用のカタログ
var (
	demoMusicals = []Musical{
		{
			Name: "Wicked", RunTimeMinutes: 165, Categories: []string{"Fantasy", "Family"},
			AgeRestriction: "8+", BasePrice: 8000, TotalTickets: 500, AvailableTickets: 500,
			AvailableDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		},
		{
			Name: "Les Misérables", RunTimeMinutes: 180, Categories: []string{"Drama", "Historical"},
			AgeRestriction: "12+", BasePrice: 7500, TotalTickets: 400, AvailableTickets: 400,
			AvailableDays: []time.Weekday{time.Tuesday, time.Thursday, time.Saturday, time.Sunday},
		},
		{
			Name: "The Lion King", RunTimeMinutes: 150, Categories: []string{"Family", "Musical"},
			AgeRestriction: "6+", BasePrice: 9000, TotalTickets: 600, AvailableTickets: 600,
			AvailableDays: []time.Weekday{time.Friday, time.Saturday, time.Sunday},
		},
	}

	demoVenues = []demoVenue{
		{
			name: "Apollo Victoria Theatre", capacity: 100,
			sections: []Section{
				{Name: "Stalls", Capacity: 10, BasePrice: 8000},
				{Name: "Dress Circle", Capacity: 20, BasePrice: 6500},
				{Name: "Grand Circle", Capacity: 30, BasePrice: 4500},
			},
			musicals: []string{"Wicked"},
		},
		{
			name: "Sondheim Theatre", capacity: 80,
			sections: []Section{
				{Name: "Stalls", Capacity: 40, BasePrice: 7500},
				{Name: "Balcony", Capacity: 30, BasePrice: 3500},
			},
			musicals: []string{"Les Misérables", "Wicked"},
		},
		{
			name: "Lyceum Theatre", capacity: 120,
			sections: []Section{
				{Name: "Stalls", Capacity: 60, BasePrice: 9000},
				{Name: "Royal Circle", Capacity: 40, BasePrice: 6000},
			},
			musicals: []string{"The Lion King"},
		},
	}
)

// SeedDemo はデモ用のミュージカル・会場・セクションを投入する
// セクションは会場の残り容量を超えないものだけを追加する
func SeedDemo(ctx context.Context, w Writer) error {
	ids := make(map[string]int64, len(demoMusicals))
	for _, dm := range demoMusicals {
		m := dm
		if err := m.Validate(); err != nil {
			return fmt.Errorf("デモ作品 %s: %w", m.Name, err)
		}
		if err := w.CreateMusical(ctx, &m); err != nil {
			return fmt.Errorf("デモ作品 %s の作成に失敗: %w", m.Name, err)
		}
		ids[m.Name] = m.ID
	}

	for _, dv := range demoVenues {
		v := &Venue{Name: dv.name, TotalCapacity: dv.capacity}
		for _, s := range dv.sections {
			if err := v.AddSection(s); err != nil {
				return fmt.Errorf("デモ会場 %s: %w", v.Name, err)
			}
		}
		if err := w.CreateVenue(ctx, v); err != nil {
			return fmt.Errorf("デモ会場 %s の作成に失敗: %w", v.Name, err)
		}
		for _, name := range dv.musicals {
			if err := w.AddVenueToMusical(ctx, ids[name], v.ID); err != nil {
				return fmt.Errorf("上演会場の登録に失敗: %w", err)
			}
		}
	}
	return nil
}
