package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/moex-anomaly/models"

	platformhttp "github.com/Alias1177/moex-anomaly/internal/platform/http"
)

const (
	defaultBaseURL = "https://iss.moex.com/iss"

	// ISS pages history responses at 100 rows.
	pageSize = 100

	// Main equities board; requesting a single board avoids duplicate
	// rows for the same date from off-board trading modes.
	board = "TQBR"
)

// Client is the MOEX ISS history API client.
type Client struct {
	baseURL    string
	httpClient *platformhttp.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new ISS client.
type ClientOptions struct {
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryElapsed time.Duration
}

// NewClient creates a new MOEX ISS API client.
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = defaultBaseURL
	}

	return &Client{
		baseURL: options.BaseURL,
		httpClient: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:         options.RequestTimeout,
			RequestsPerSec:  options.RequestsPerSec,
			MaxRetryElapsed: options.MaxRetryElapsed,
		}),
		logger: log.With().Str("component", "moex_client").Logger(),
	}
}

// historyResponse is the shape of an ISS history page with explicit
// history.columns requested, so row positions are fixed.
type historyResponse struct {
	History struct {
		Columns []string          `json:"columns"`
		Data    []json.RawMessage `json:"data"`
	} `json:"history"`
}

// History fetches daily bars for a symbol over [from, till], ascending by
// date. Dates with no trading are simply absent from the result.
func (c *Client) History(ctx context.Context, symbol, from, till string) ([]models.TradingDay, error) {
	var days []models.TradingDay

	for start := 0; ; start += pageSize {
		rows, rawCount, err := c.historyPage(ctx, symbol, from, till, start)
		if err != nil {
			return nil, err
		}
		days = append(days, rows...)
		// rawCount, not len(rows): rows with null prices are dropped but
		// still count against the page.
		if rawCount < pageSize {
			break
		}
	}

	// ISS returns ascending pages already; sort to make the contract
	// independent of the upstream ordering.
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})

	c.logger.Debug().
		Str("symbol", symbol).
		Str("from", from).
		Str("till", till).
		Int("count", len(days)).
		Msg("Fetched history")

	return days, nil
}

func (c *Client) historyPage(ctx context.Context, symbol, from, till string, start int) ([]models.TradingDay, int, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("till", till)
	q.Set("iss.meta", "off")
	q.Set("iss.only", "history")
	q.Set("history.columns", "TRADEDATE,OPEN,HIGH,LOW,CLOSE,VOLUME,VALUE")
	q.Set("start", fmt.Sprintf("%d", start))

	endpoint := fmt.Sprintf("%s/history/engines/stock/markets/shares/boards/%s/securities/%s.json?%s",
		c.baseURL, board, symbol, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, 0, classify(symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, classify(symbol, err)
	}

	var data historyResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("symbol", symbol).Msg("Error parsing ISS response")
		return nil, 0, malformed(symbol, err)
	}

	rows := make([]models.TradingDay, 0, len(data.History.Data))
	for _, raw := range data.History.Data {
		day, ok, err := parseRow(symbol, raw)
		if err != nil {
			c.logger.Error().Err(err).Str("symbol", symbol).Msg("Error parsing ISS row")
			return nil, 0, malformed(symbol, err)
		}
		if ok {
			rows = append(rows, day)
		}
	}

	return rows, len(data.History.Data), nil
}

// parseRow decodes one ISS history row. Rows with null prices (dates the
// board had no trades) are dropped, not errors.
func parseRow(symbol string, raw json.RawMessage) (models.TradingDay, bool, error) {
	var fields []any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.TradingDay{}, false, err
	}
	if len(fields) < 7 {
		return models.TradingDay{}, false, fmt.Errorf("history row has %d fields, want 7", len(fields))
	}

	date, ok := fields[0].(string)
	if !ok {
		return models.TradingDay{}, false, fmt.Errorf("TRADEDATE is not a string: %v", fields[0])
	}
	if _, err := time.Parse(models.DateFormat, date); err != nil {
		return models.TradingDay{}, false, fmt.Errorf("bad TRADEDATE %q: %w", date, err)
	}

	nums := make([]float64, 6)
	for i := 1; i < 7; i++ {
		if fields[i] == nil {
			return models.TradingDay{}, false, nil
		}
		f, ok := fields[i].(float64)
		if !ok {
			return models.TradingDay{}, false, fmt.Errorf("field %d is not a number: %v", i, fields[i])
		}
		nums[i-1] = f
	}

	return models.TradingDay{
		Symbol: symbol,
		Date:   date,
		Open:   nums[0],
		High:   nums[1],
		Low:    nums[2],
		Close:  nums[3],
		Volume: nums[4],
		Value:  nums[5],
	}, true, nil
}
