package meteofrance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/rain-nowcast-service/internal/domain"
)

// echeanceLayout is the local-time layout of a forecast window start.
const echeanceLayout = "200601021504"

// Météo-France API response types.

type placeEntry struct {
	ID         string  `json:"id"`
	Display    string  `json:"nomAffiche"`
	PostalCode string  `json:"codePostal"`
	Timezone   string  `json:"timezone"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

type rainResponse struct {
	PlaceID     string     `json:"idLieu"`
	Echeance    string     `json:"echeance"`
	LastUpdate  string     `json:"lastUpdate"`
	IsAvailable bool       `json:"isAvailable"`
	HasData     bool       `json:"hasData"`
	Slots       []rainSlot `json:"dataCadran"`
}

type rainSlot struct {
	Text  string `json:"niveauPluieText"`
	Level int    `json:"niveauPluie"`
	Color string `json:"color"`
}

// DecodeAreaCode reads the area code of the first place returned by a
// postal code search.
func DecodeAreaCode(body []byte) (domain.AreaCode, error) {
	var places []placeEntry
	if err := json.Unmarshal(body, &places); err != nil {
		return 0, fmt.Errorf("%w: decode place search: %v", domain.ErrMalformedData, err)
	}
	if len(places) == 0 {
		return 0, fmt.Errorf("%w: no forecast area for this postal code", domain.ErrNotFound)
	}
	id, err := strconv.Atoi(places[0].ID)
	if err != nil {
		return 0, fmt.Errorf("%w: area id %q is not numeric", domain.ErrMalformedData, places[0].ID)
	}
	return domain.AreaCode(id), nil
}

// DecodeForecast converts a rain response into a Forecast. The window start
// is read in loc; fetchedAt is stamped on the result.
func DecodeForecast(body []byte, loc *time.Location, fetchedAt time.Time) (domain.Forecast, error) {
	var res rainResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.Forecast{}, fmt.Errorf("%w: decode rain forecast: %v", domain.ErrMalformedData, err)
	}
	if !res.IsAvailable {
		return domain.Forecast{}, fmt.Errorf("%w: area %s", domain.ErrForecastUnavailable, res.PlaceID)
	}

	levels := make([]domain.RainIndex, 0, len(res.Slots))
	for i, slot := range res.Slots {
		level := domain.RainIndex(slot.Level)
		if !level.Valid() {
			return domain.Forecast{}, fmt.Errorf("%w: slot %d has rain level %d", domain.ErrMalformedData, i, slot.Level)
		}
		levels = append(levels, level)
	}

	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(echeanceLayout, res.Echeance, loc)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("%w: echeance %q: %v", domain.ErrMalformedData, res.Echeance, err)
	}

	return domain.NewForecast(levels, start, fetchedAt), nil
}
