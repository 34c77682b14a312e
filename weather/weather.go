// Package weather looks up current conditions from Open-Meteo. Weather is
// optional enrichment for a plan: failures return an error the caller can
// ignore, and nothing here ever blocks plan generation.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"verda/models"
)

var endpoint = "https://api.open-meteo.com/v1/forecast"

var httpClient = &http.Client{Timeout: 10 * time.Second}

type openMeteoResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

// WMO weather interpretation codes, collapsed to the buckets the app shows.
func describe(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 3:
		return "Partly cloudy"
	case code <= 48:
		return "Fog"
	case code <= 57:
		return "Drizzle"
	case code <= 67:
		return "Rain"
	case code <= 77:
		return "Snow"
	case code <= 82:
		return "Rain showers"
	case code <= 86:
		return "Snow showers"
	default:
		return "Thunderstorm"
	}
}

// Current fetches the current weather at a point.
func Current(ctx context.Context, lat, lng float64) (*models.WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", lat))
	params.Set("longitude", fmt.Sprintf("%f", lng))
	params.Set("current_weather", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather lookup returned %s", resp.Status)
	}

	var om openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&om); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	return &models.WeatherSnapshot{
		Temperature: om.CurrentWeather.Temperature,
		Description: describe(om.CurrentWeather.WeatherCode),
	}, nil
}
