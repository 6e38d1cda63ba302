package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// gramsPerTroyOunce converts the feed's XAU quote (per troy ounce) to a
// per-gram price.
var gramsPerTroyOunce = decimal.NewFromFloat(31.1035)

// Source supplies the raw spot price of gold in INR per gram.
type Source interface {
	FetchSpotPrice(ctx context.Context) (decimal.Decimal, error)
}

// GoldAPISource fetches the XAU/INR spot price from goldapi.io.
type GoldAPISource struct {
	client *http.Client
	url    string
	apiKey string
}

func NewGoldAPISource() *GoldAPISource {
	viper.SetDefault("gold.api_url", "https://www.goldapi.io/api/XAU/INR")

	return &GoldAPISource{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    viper.GetString("gold.api_url"),
		apiKey: viper.GetString("gold.api_key"),
	}
}

func (s *GoldAPISource) FetchSpotPrice(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("x-access-token", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("gold price feed returned status %d", resp.StatusCode)
	}

	var result struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, err
	}

	if result.Price <= 0 {
		return decimal.Zero, fmt.Errorf("gold price feed returned non-positive price %f", result.Price)
	}

	// The feed quotes one troy ounce.
	pricePerGram := decimal.NewFromFloat(result.Price).Div(gramsPerTroyOunce)
	return pricePerGram, nil
}
