package places

import (
	"github.com/FACorreiaa/loci-search/internal/app/domain/mapper"
	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// apiPlace is the Places API (New) wire shape, limited to the requested
// field mask.
type apiPlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Types            []string `json:"types"`
	FormattedAddress string   `json:"formattedAddress"`
	Location         struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Rating              *float64         `json:"rating"`
	UserRatingCount     *int             `json:"userRatingCount"`
	PriceLevel          string           `json:"priceLevel"`
	CurrentOpeningHours *apiOpeningHours `json:"currentOpeningHours"`
	RegularOpeningHours *apiOpeningHours `json:"regularOpeningHours"`
}

type apiOpeningHours struct {
	OpenNow *bool       `json:"openNow"`
	Periods []apiPeriod `json:"periods"`
}

type apiPeriod struct {
	Open  *apiTimePoint `json:"open"`
	Close *apiTimePoint `json:"close"`
}

type apiTimePoint struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// priceLevelValues maps the wire enum to the 0..4 scale the bucket tables
// use. Unknown strings stay nil.
var priceLevelValues = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

func (p apiPlace) normalize() models.Place {
	place := models.Place{
		PlaceID:          p.ID,
		Name:             p.DisplayName.Text,
		Types:            p.Types,
		Address:          p.FormattedAddress,
		Location:         models.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude},
		Rating:           p.Rating,
		UserRatingsTotal: p.UserRatingCount,
	}
	if level, ok := priceLevelValues[p.PriceLevel]; ok {
		place.PriceLevel = &level
	}

	hours := normalizeHours(p.CurrentOpeningHours, p.RegularOpeningHours)
	if hours != nil {
		place.OpeningHours = hours
	}
	return place
}

// normalizeHours merges the two hour views: openNow comes from the current
// snapshot, periods from the regular schedule.
func normalizeHours(current, regular *apiOpeningHours) *models.OpeningHours {
	if current == nil && regular == nil {
		return nil
	}
	hours := &models.OpeningHours{}
	if current != nil {
		hours.OpenNow = current.OpenNow
	}
	if regular != nil {
		for _, period := range regular.Periods {
			if period.Open == nil {
				continue
			}
			span := models.OpeningSpan{
				Weekday: period.Open.Day,
				OpenMin: period.Open.Hour*60 + period.Open.Minute,
			}
			if period.Close != nil {
				span.CloseMin = period.Close.Hour*60 + period.Close.Minute
			} else {
				// No close point means open around the clock.
				span.CloseMin = 24 * 60
			}
			hours.Periods = append(hours.Periods, span)
		}
	}
	if hours.OpenNow == nil && len(hours.Periods) == 0 {
		return nil
	}
	return hours
}

func includedTypesFor(cuisineKey, typeKey string) []string {
	return mapper.IncludedTypes(cuisineKey, typeKey)
}
