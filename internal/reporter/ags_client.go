package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// AGSClient posts scores to an LMS Assignment and Grade Services endpoint.
// Auth is OAuth2 client_credentials; tokens are cached until shortly before
// expiry. Scores carry the high-water mark so the gradebook never sees a
// decrease.
type AGSClient struct {
	HTTP         *http.Client
	ScoreURL     string // lineitem scores collection URL
	TokenURL     string
	ClientID     string
	ClientSecret string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewAGSClient(scoreURL, tokenURL, clientID, clientSecret string) *AGSClient {
	return &AGSClient{
		HTTP:         &http.Client{Timeout: 15 * time.Second},
		ScoreURL:     scoreURL,
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// scorePayload mirrors the AGS score publication shape, trimmed to what the
// engine reports.
type scorePayload struct {
	UserID           string  `json:"userId"`
	Timestamp        string  `json:"timestamp"`
	ScoreGiven       float64 `json:"scoreGiven"`
	ScoreMaximum     float64 `json:"scoreMaximum"`
	ActivityProgress string  `json:"activityProgress"`
	GradingProgress  string  `json:"gradingProgress"`
	Comment          string  `json:"comment,omitempty"`
}

func (c *AGSClient) PostScore(ctx context.Context, assignmentID, learnerID string, score, max int) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("ags token: %w", err)
	}

	payload := scorePayload{
		UserID:           learnerID,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ScoreGiven:       float64(score),
		ScoreMaximum:     float64(max),
		ActivityProgress: "InProgress",
		GradingProgress:  "FullyGraded",
		Comment:          "assignment " + assignmentID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ScoreURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.ims.lis.v1.score+json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("post score: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post score: platform returned %s", resp.Status)
	}
	return nil
}

func (c *AGSClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"scope":         {"https://purl.imsglobal.org/spec/lti-ags/scope/score"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	c.token = tok.AccessToken
	expires := time.Duration(tok.ExpiresIn) * time.Second
	if expires <= 0 {
		expires = time.Minute
	}
	// renew a little early so in-flight posts don't race expiry
	c.tokenExpiry = time.Now().Add(expires - 30*time.Second)
	return c.token, nil
}
