package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradefolio/src/logger"
	"golang.org/x/net/publicsuffix"
)

// PriceInfo is a quote for one symbol. Status is "OK" or "UNAVAILABLE".
type PriceInfo struct {
	Status   string  `json:"status"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// PriceService resolves current market prices for ticker symbols.
type PriceService interface {
	GetCurrentPrices(symbols []string) (map[string]PriceInfo, error)
}

const (
	priceCacheExpiration = 5 * time.Minute
	yahooUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"
)

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string  `json:"symbol"`
			RegularMarketPrice float64 `json:"regularMarketPrice"`
			Currency           string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// priceServiceImpl fetches quotes from Yahoo Finance. The quote endpoint
// needs session cookies plus a crumb token, so the client carries a jar.
type priceServiceImpl struct {
	httpClient http.Client
	crumb      string
	quoteCache *cache.Cache
}

// NewPriceService creates a new instance of the price service.
// It initializes the HTTP client with a cookie jar and fetches the Yahoo crumb.
func NewPriceService() PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: 20 * time.Second,
	}

	s := &priceServiceImpl{
		httpClient: client,
		quoteCache: cache.New(priceCacheExpiration, 2*priceCacheExpiration),
	}

	if err := s.initializeYahooSession(); err != nil {
		logger.L.Error("Failed to initialize Yahoo Finance session. Price fetching may fail.", "error", err)
	}

	return s
}

// initializeYahooSession visits a Yahoo Finance page to get necessary cookies and the crumb.
func (s *priceServiceImpl) initializeYahooSession() error {
	logger.L.Info("Initializing Yahoo Finance session to get crumb and cookies...")
	initURL := "https://finance.yahoo.com/quote/SPY"
	req, err := http.NewRequest("GET", initURL, nil)
	if err != nil {
		return err
	}
	// A valid User-Agent is crucial.
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make initial request to Yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Yahoo response body: %w", err)
	}

	re := regexp.MustCompile(`"CrumbStore":{"crumb":"(.*?)"}`)
	matches := re.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return fmt.Errorf("could not find crumb in Yahoo Finance response. The page structure may have changed")
	}

	s.crumb = matches[1]
	logger.L.Info("Successfully obtained Yahoo Finance crumb.")
	return nil
}

// GetCurrentPrices resolves quotes for the given symbols, serving cached
// values where available.
func (s *priceServiceImpl) GetCurrentPrices(symbols []string) (map[string]PriceInfo, error) {
	result := make(map[string]PriceInfo)
	var symbolsToFetch []string
	for _, symbol := range symbols {
		if symbol == "" {
			continue
		}
		if _, done := result[symbol]; done {
			continue
		}
		if cached, found := s.quoteCache.Get(symbol); found {
			result[symbol] = cached.(PriceInfo)
			continue
		}
		result[symbol] = PriceInfo{Status: "UNAVAILABLE"}
		symbolsToFetch = append(symbolsToFetch, symbol)
	}
	if len(symbolsToFetch) == 0 {
		return result, nil
	}

	if s.crumb == "" {
		logger.L.Warn("Yahoo crumb is missing, attempting to re-initialize session.")
		if err := s.initializeYahooSession(); err != nil {
			return result, fmt.Errorf("failed to re-initialize Yahoo session: %w", err)
		}
	}

	for _, symbol := range symbolsToFetch {
		time.Sleep(250 * time.Millisecond) // Respectful delay

		price, currency, err := s.getPriceForTicker(symbol)
		if err != nil {
			logger.L.Warn("Yahoo Fetch: Could not get price", "ticker", symbol, "error", err)
			continue
		}

		info := PriceInfo{Status: "OK", Price: price, Currency: currency}
		result[symbol] = info
		s.quoteCache.Set(symbol, info, cache.DefaultExpiration)
		logger.L.Info("Yahoo Fetch: Successfully got price", "ticker", symbol, "price", price, "currency", currency)
	}

	return result, nil
}

// getPriceForTicker uses Yahoo's quote endpoint, which requires the crumb.
func (s *priceServiceImpl) getPriceForTicker(ticker string) (float64, string, error) {
	quoteURL := fmt.Sprintf("https://query2.finance.yahoo.com/v7/finance/quote?symbols=%s&crumb=%s", ticker, s.crumb)
	req, err := http.NewRequest("GET", quoteURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to call Yahoo quote API for ticker %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, "", fmt.Errorf("yahoo quote API returned non-OK status %d for ticker %s. Body: %s", resp.StatusCode, ticker, string(bodyBytes))
	}

	var quoteData yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteData); err != nil {
		return 0, "", fmt.Errorf("failed to decode Yahoo quote response for ticker %s: %w", ticker, err)
	}

	if quoteData.QuoteResponse.Error != nil || len(quoteData.QuoteResponse.Result) == 0 {
		return 0, "", fmt.Errorf("yahoo quote API returned an error or no result for ticker %s", ticker)
	}

	price := quoteData.QuoteResponse.Result[0].RegularMarketPrice
	currency := quoteData.QuoteResponse.Result[0].Currency
	return price, currency, nil
}
