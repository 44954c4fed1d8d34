// CLAUDE:SUMMARY Generic JSON-endpoint collector: dot-notation result path, field mapping, ${ENV} header expansion.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxAPIBody = 10 * 1024 * 1024

// APIConfig describes how to call a retailer's JSON endpoint and map its
// items onto offers. Header values support ${ENV_VAR} expansion so captured
// API keys never land in configuration files.
type APIConfig struct {
	URL        string            `yaml:"url"`
	Method     string            `yaml:"method"`      // default GET
	Headers    map[string]string `yaml:"headers"`     // ${ENV_VAR} expanded
	ResultPath string            `yaml:"result_path"` // dot-notation: "data.products"
	Fields     APIFields         `yaml:"fields"`
	Currency   string            `yaml:"currency"` // default CLP
}

// APIFields maps offer attributes to JSON keys inside each result item.
type APIFields struct {
	ExternalID   string `yaml:"external_id"`
	URL          string `yaml:"url"`
	Title        string `yaml:"title"`
	Brand        string `yaml:"brand"`
	Size         string `yaml:"size"`
	Category     string `yaml:"category"`
	PriceCurrent string `yaml:"price_current"`
	PriceList    string `yaml:"price_list"`
	PromoText    string `yaml:"promo_text"`
	InStock      string `yaml:"in_stock"`
}

// API is a Collector that pulls offers from a JSON endpoint.
type API struct {
	retailerName   string
	retailerDomain string
	cfg            APIConfig
	client         *http.Client
}

// NewAPI creates an API collector. A nil client gets a 30s-timeout default.
func NewAPI(retailerName, retailerDomain string, cfg APIConfig, client *http.Client) *API {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{
		retailerName:   retailerName,
		retailerDomain: retailerDomain,
		cfg:            cfg,
		client:         client,
	}
}

// Name implements Collector.
func (a *API) Name() string { return a.retailerName }

// Kind implements Collector.
func (a *API) Kind() Kind { return KindAPI }

// Collect calls the endpoint, walks the result path, and maps each item to
// an Offer. Items without an external id or a positive current price are
// dropped rather than failing the batch.
func (a *API) Collect(ctx context.Context) ([]Offer, error) {
	method := a.cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("collector %s: new request: %w", a.retailerName, err)
	}
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, expandEnv(v))
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collector %s: http: %w", a.retailerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("collector %s: http %d", a.retailerName, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, fmt.Errorf("collector %s: read body: %w", a.retailerName, err)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("collector %s: json decode: %w", a.retailerName, err)
	}

	items, err := walkPath(raw, a.cfg.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("collector %s: walk path %q: %w", a.retailerName, a.cfg.ResultPath, err)
	}

	now := time.Now().UTC()
	offers := make([]Offer, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		o, ok := a.mapItem(obj, now)
		if !ok {
			continue
		}
		offers = append(offers, o)
	}
	return offers, nil
}

func (a *API) mapItem(obj map[string]any, now time.Time) (Offer, bool) {
	f := a.cfg.Fields

	price, ok := parsePrice(obj[f.PriceCurrent])
	if !ok || price <= 0 {
		return Offer{}, false
	}
	externalID := stringField(obj, f.ExternalID)
	if externalID == "" {
		return Offer{}, false
	}

	o := Offer{
		RetailerName:   a.retailerName,
		RetailerDomain: a.retailerDomain,
		ExternalID:     externalID,
		URL:            stringField(obj, f.URL),
		Title:          stringField(obj, f.Title),
		Brand:          stringField(obj, f.Brand),
		SizeRaw:        stringField(obj, f.Size),
		CategoryRaw:    stringField(obj, f.Category),
		PriceCurrent:   price,
		Currency:       a.cfg.Currency,
		PromoText:      stringField(obj, f.PromoText),
		InStock:        true,
		ObservedAt:     now,
	}
	if list, ok := parsePrice(obj[f.PriceList]); ok && list > 0 {
		o.PriceList = &list
	}
	if f.InStock != "" {
		if b, ok := obj[f.InStock].(bool); ok {
			o.InStock = b
		}
	}
	return o, true
}

// walkPath walks a dot-notation path into a JSON value, returning the items
// found at that path. An empty path requires the root to be an array.
func walkPath(v any, path string) ([]any, error) {
	if path == "" {
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("root is not an array")
		}
		return arr, nil
	}

	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object at %q, got %T", part, current)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("key %q not found", part)
		}
	}

	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("path is not an array")
	}
	return arr, nil
}

var thousandsRe = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)

// parsePrice accepts JSON numbers and the price strings Chilean retailers
// emit ("$ 12.990", "12,990"), where dot/comma are thousands separators.
func parsePrice(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(x), "$"))
		if s == "" {
			return 0, false
		}
		if thousandsRe.MatchString(s) {
			s = strings.NewReplacer(".", "", ",", "").Replace(s)
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringField(obj map[string]any, key string) string {
	if key == "" {
		return ""
	}
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

var envRe = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

func expandEnv(s string) string {
	return envRe.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(m, "${"), "}"))
	})
}
