package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dotsama/identity-registrar/identity"
)

// defaultTwitterBaseURL is the production v2 API root.
const defaultTwitterBaseURL = "https://api.twitter.com"

// Twitter polls the v2 API's mentions timeline for the registrar's own
// account, treating every mention as the DM-equivalent contact channel
// (spec.md §4.1 requires the challenge token to be sent publicly as a
// mention since Twitter DMs are not available to this API tier).
type Twitter struct {
	Token    string
	Username string
	BaseURL  string

	client  *http.Client
	sinceID string
}

// NewTwitter builds a Twitter adapter authenticating with a bearer token.
func NewTwitter(token, username string) *Twitter {
	return &Twitter{
		Token:    token,
		Username: username,
		BaseURL:  defaultTwitterBaseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Twitter) Name() string { return "twitter" }

type mentionsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// FetchMessages requests every mention newer than the last seen tweet ID.
func (t *Twitter) FetchMessages(ctx context.Context) ([]identity.ExternalMessage, error) {
	url := fmt.Sprintf("%s/2/users/by/username/%s/mentions?expansions=author_id&tweet.fields=created_at", t.BaseURL, t.Username)
	if t.sinceID != "" {
		url += "&since_id=" + t.sinceID
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("twitter: build mentions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.Token)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: fetch mentions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter: mentions returned status %d", resp.StatusCode)
	}

	var decoded mentionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("twitter: decode mentions response: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, nil
	}

	handles := make(map[string]string, len(decoded.Includes.Users))
	for _, u := range decoded.Includes.Users {
		handles[u.ID] = u.Username
	}

	out := make([]identity.ExternalMessage, 0, len(decoded.Data))
	for _, tweet := range decoded.Data {
		handle := handles[tweet.AuthorID]
		if handle == "" {
			handle = tweet.AuthorID
		}
		out = append(out, identity.ExternalMessage{
			Origin:    identity.TwitterOrigin(strings.ToLower(handle)),
			ID:        idFromTweetID(tweet.ID),
			Timestamp: parseTwitterTimestamp(tweet.CreatedAt),
			Values:    []string{tweet.Text},
		})
	}
	t.sinceID = decoded.Data[0].ID
	return out, nil
}

func idFromTweetID(id string) uint64 {
	n, err := strconv.ParseUint(id, 10, 64)
	if err == nil {
		return n
	}
	return idFromEventID(id)
}

func parseTwitterTimestamp(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
