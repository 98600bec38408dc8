// Package badge calls the external achievement-badge generation service.
// The call is best-effort: callers substitute a fixed fallback badge on any
// error, and it is never on the session-termination path.
package badge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"dailyquiz-service/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Client talks to the badge generation HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a badge API client. timeout <= 0 uses the default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Milestone string `json:"milestone"`
	Username  string `json:"username"`
}

type generateResponse struct {
	BadgeDescription string `json:"badgeDescription"`
	BadgeImageURL    string `json:"badgeImageUrl"`
}

// Generate requests a badge for the milestone achieved by username.
func (c *Client) Generate(ctx context.Context, milestone, username string) (domain.Badge, error) {
	reqBody := generateRequest{Milestone: milestone, Username: username}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Badge{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(reqJSON))
	if err != nil {
		return domain.Badge{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Badge{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Badge{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Badge{}, fmt.Errorf("badge API returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Badge{}, fmt.Errorf("parse badge response: %w", err)
	}
	if parsed.BadgeDescription == "" {
		return domain.Badge{}, fmt.Errorf("badge API returned empty description")
	}

	log.Printf("badge generated for %s milestone %s in %v", username, milestone, time.Since(start))
	return domain.Badge{
		Description: parsed.BadgeDescription,
		ImageURL:    parsed.BadgeImageURL,
	}, nil
}

// StaticGenerator serves canned badges when no external service is
// configured. Descriptions follow the milestone names used by the API.
type StaticGenerator struct{}

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

var staticBadges = map[string]domain.Badge{
	"dailyCompletion": {Description: "Daily streak badge: another day in the books.", ImageURL: "/badges/daily.svg"},
	"bronzeMedal":     {Description: "Bronze medal badge: a solid showing.", ImageURL: "/badges/bronze.svg"},
	"silverMedal":     {Description: "Silver medal badge: nearly flawless.", ImageURL: "/badges/silver.svg"},
	"goldMedal":       {Description: "Gold medal badge: a perfect daily quiz.", ImageURL: "/badges/gold.svg"},
	"platinumMedal":   {Description: "Platinum medal badge: mega quiz mastery.", ImageURL: "/badges/platinum.svg"},
	"emeraldMedal":    {Description: "Emerald medal badge: a perfect mega quiz.", ImageURL: "/badges/emerald.svg"},
}

func (g *StaticGenerator) Generate(_ context.Context, milestone, username string) (domain.Badge, error) {
	b, ok := staticBadges[milestone]
	if !ok {
		return domain.Badge{}, fmt.Errorf("unknown milestone %q", milestone)
	}
	b.Description = fmt.Sprintf("%s %s", username, b.Description)
	return b, nil
}
