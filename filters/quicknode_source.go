package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

const (
	DefaultQuickNodeListsURL = "https://api.quicknode.com/kv/rest/v1/lists"
	quickNodeTimeout         = 10 * time.Second
	maxErrorBody             = 512
)

var _ types.AddressSource = (*QuickNodeSource)(nil)

// QuickNodeSource reads address lists from the QuickNode key-value store.
type QuickNodeSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewQuickNodeSource() *QuickNodeSource {
	return &QuickNodeSource{
		baseURL: DefaultQuickNodeListsURL,
		client:  &http.Client{Timeout: quickNodeTimeout},
	}
}

func (s *QuickNodeSource) Name() string { return "quicknode-kv" }

func (s *QuickNodeSource) Configure(config map[string]interface{}) error {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		return fmt.Errorf("%s source requires 'api_key'", s.Name())
	}
	s.apiKey = apiKey
	if base, _ := config["base_url"].(string); base != "" {
		if _, err := url.ParseRequestURI(base); err != nil {
			return fmt.Errorf("%s source: invalid base_url %q: %w", s.Name(), base, err)
		}
		s.baseURL = strings.TrimRight(base, "/")
	}
	return nil
}

// Addresses fetches list and normalizes its items. Transport failures and server errors wrap
// types.ErrProviderUnavailable; any other non-200 status is a configuration problem.
func (s *QuickNodeSource) Addresses(ctx context.Context, list string) (types.AddressList, error) {
	if list == "" {
		return types.AddressList{}, fmt.Errorf("%s source: list name is empty", s.Name())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+url.PathEscape(list), nil)
	if err != nil {
		return types.AddressList{}, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.AddressList{}, fmt.Errorf("%w: %s: %w", types.ErrProviderUnavailable, s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("%s list %q: status %d: %s", s.Name(), list, resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= http.StatusInternalServerError {
			return types.AddressList{}, fmt.Errorf("%w: %w", types.ErrProviderUnavailable, err)
		}
		return types.AddressList{}, err
	}

	var payload struct {
		Data struct {
			Items []string `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.AddressList{}, fmt.Errorf("%s list %q: decoding response: %w", s.Name(), list, err)
	}
	return types.NewAddressList(payload.Data.Items), nil
}

func (s *QuickNodeSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
