package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultWeatherURL is the OpenWeatherMap current-weather endpoint.
const DefaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// Reading is a current temperature observation.
type Reading struct {
	City        string
	Country     string
	Temp        float64
	Units       string
	Description string
}

// Symbol returns the temperature unit suffix for r.Units.
func (r Reading) Symbol() string {
	switch r.Units {
	case "imperial":
		return "°F"
	case "standard":
		return "K"
	default:
		return "°C"
	}
}

// WeatherClient looks up current temperatures from OpenWeatherMap.
type WeatherClient struct {
	APIKey     string
	Units      string
	BaseURL    string
	HTTPClient *http.Client
}

func (w *WeatherClient) http() *http.Client {
	if w.HTTPClient != nil {
		return w.HTTPClient
	}
	return http.DefaultClient
}

// Temperature returns the current reading for city in country.
func (w *WeatherClient) Temperature(ctx context.Context, city, country string) (Reading, error) {
	if w.APIKey == "" {
		return Reading{}, errors.New("weather api key not configured")
	}
	base := w.BaseURL
	if base == "" {
		base = DefaultWeatherURL
	}
	units := w.Units
	if units == "" {
		units = "metric"
	}
	q := url.Values{}
	q.Set("q", city+","+country)
	q.Set("appid", w.APIKey)
	q.Set("units", units)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return Reading{}, err
	}
	resp, err := w.http().Do(req)
	if err != nil {
		return Reading{}, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		return Reading{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Reading{}, fmt.Errorf("weather lookup failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var body struct {
		Name string `json:"name"`
		Sys  struct {
			Country string `json:"country"`
		} `json:"sys"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Reading{}, fmt.Errorf("decode weather: %w", err)
	}
	r := Reading{City: body.Name, Country: body.Sys.Country, Temp: body.Main.Temp, Units: units}
	if r.City == "" {
		r.City = city
	}
	if r.Country == "" {
		r.Country = country
	}
	if len(body.Weather) > 0 {
		r.Description = body.Weather[0].Description
	}
	return r, nil
}
