package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// #region client

// OpenWeatherMap fetches current conditions from the OpenWeatherMap API.
type OpenWeatherMap struct {
	config Config
	client *http.Client
}

// NewOpenWeatherMap creates a client. A nil httpClient uses one with the
// configured timeout.
func NewOpenWeatherMap(config Config, httpClient *http.Client) *OpenWeatherMap {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &OpenWeatherMap{config: config, client: httpClient}
}

type owmResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

// Fetch requests the current weather for the configured city in metric units.
func (o *OpenWeatherMap) Fetch(ctx context.Context) (Reading, error) {
	q := url.Values{}
	q.Set("q", o.config.City)
	q.Set("appid", o.config.APIKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Reading{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Reading{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	r := Reading{
		Temperature:   body.Main.Temp,
		Humidity:      body.Main.Humidity,
		WindSpeed:     body.Wind.Speed,
		WindDirection: body.Wind.Deg,
		CloudCover:    body.Clouds.All,
	}
	if len(body.Weather) > 0 {
		r.Condition = body.Weather[0].Main
	}
	return r, nil
}

// #endregion client
