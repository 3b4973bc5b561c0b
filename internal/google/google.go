// Package google talks to the Gmail, Calendar and Drive REST APIs on behalf
// of a user whose OAuth tokens are held in the credential store.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var ErrNotConnected = errors.New("google integration not connected")

const (
	gmailBaseURL    = "https://gmail.googleapis.com/gmail/v1"
	calendarBaseURL = "https://www.googleapis.com/calendar/v3"
	driveBaseURL    = "https://www.googleapis.com/drive/v3"
	userinfoURL     = "https://www.googleapis.com/oauth2/v2/userinfo"

	maxResponseBytes = 4 << 20
)

// Email is the minimal mail shape kept for summarization.
type Email struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// Event keeps Start and End as the raw strings the Calendar API returns:
// RFC 3339 for timed events, YYYY-MM-DD for all-day events.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Modified string `json:"modified"`
	Link     string `json:"link,omitempty"`
}

type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger

	gmailBase    string
	calendarBase string
	driveBase    string
	userinfoBase string
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/gmail.readonly",
				"https://www.googleapis.com/auth/calendar.readonly",
				"https://www.googleapis.com/auth/drive.metadata.readonly",
			},
		},
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		gmailBase:    gmailBaseURL,
		calendarBase: calendarBaseURL,
		driveBase:    driveBaseURL,
		userinfoBase: userinfoURL,
	}
}

func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh trades a refresh token for a fresh access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: no refresh token on file", ErrNotConnected)
	}
	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	return token, nil
}

func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	var info UserInfo
	if err := c.getJSON(ctx, accessToken, c.userinfoBase, &info); err != nil {
		return UserInfo{}, err
	}
	if strings.TrimSpace(info.ID) == "" {
		return UserInfo{}, fmt.Errorf("userinfo response missing id")
	}
	return info, nil
}

func (c *Client) FetchEmails(ctx context.Context, accessToken string, maxResults int) ([]Email, error) {
	if maxResults < 1 {
		maxResults = 10
	}

	listURL := fmt.Sprintf(
		"%s/users/me/messages?maxResults=%d&q=%s",
		c.gmailBase, maxResults, url.QueryEscape("is:unread"),
	)
	var listing struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.getJSON(ctx, accessToken, listURL, &listing); err != nil {
		return nil, err
	}

	emails := make([]Email, 0, len(listing.Messages))
	for _, ref := range listing.Messages {
		detailURL := fmt.Sprintf(
			"%s/users/me/messages/%s?format=metadata&metadataHeaders=Subject&metadataHeaders=From&metadataHeaders=Date",
			c.gmailBase, url.PathEscape(ref.ID),
		)
		var detail struct {
			ID      string `json:"id"`
			Snippet string `json:"snippet"`
			Payload struct {
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
			} `json:"payload"`
		}
		if err := c.getJSON(ctx, accessToken, detailURL, &detail); err != nil {
			c.logger.Warn("skipping unreadable gmail message", "id", ref.ID, "error", err)
			continue
		}

		email := Email{ID: detail.ID, Subject: "No Subject", Sender: "Unknown Sender", Snippet: detail.Snippet}
		for _, header := range detail.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "subject":
				email.Subject = header.Value
			case "from":
				email.Sender = header.Value
			case "date":
				email.Date = header.Value
			}
		}
		emails = append(emails, email)
	}
	return emails, nil
}

func (c *Client) FetchEvents(ctx context.Context, accessToken string, daysAhead int) ([]Event, error) {
	if daysAhead < 1 {
		daysAhead = 7
	}
	now := time.Now().UTC()

	query := url.Values{}
	query.Set("timeMin", now.Format(time.RFC3339))
	query.Set("timeMax", now.AddDate(0, 0, daysAhead).Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", strconv.Itoa(50))

	var listing struct {
		Items []struct {
			ID          string `json:"id"`
			Summary     string `json:"summary"`
			Description string `json:"description"`
			Start       struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
				Date     string `json:"date"`
			} `json:"end"`
		} `json:"items"`
	}
	endpoint := c.calendarBase + "/calendars/primary/events?" + query.Encode()
	if err := c.getJSON(ctx, accessToken, endpoint, &listing); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(listing.Items))
	for _, item := range listing.Items {
		title := item.Summary
		if strings.TrimSpace(title) == "" {
			title = "No Title"
		}
		start := item.Start.DateTime
		if start == "" {
			start = item.Start.Date
		}
		end := item.End.DateTime
		if end == "" {
			end = item.End.Date
		}
		events = append(events, Event{
			ID:          item.ID,
			Title:       title,
			Description: item.Description,
			Start:       start,
			End:         end,
		})
	}
	return events, nil
}

func (c *Client) FetchFiles(ctx context.Context, accessToken string, maxResults int) ([]File, error) {
	if maxResults < 1 {
		maxResults = 10
	}

	query := url.Values{}
	query.Set("pageSize", strconv.Itoa(maxResults))
	query.Set("orderBy", "modifiedTime desc")
	query.Set("fields", "files(id,name,modifiedTime,webViewLink)")

	var listing struct {
		Files []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			ModifiedTime string `json:"modifiedTime"`
			WebViewLink  string `json:"webViewLink"`
		} `json:"files"`
	}
	if err := c.getJSON(ctx, accessToken, c.driveBase+"/files?"+query.Encode(), &listing); err != nil {
		return nil, err
	}

	files := make([]File, 0, len(listing.Files))
	for _, item := range listing.Files {
		files = append(files, File{
			ID:       item.ID,
			Name:     item.Name,
			Modified: item.ModifiedTime,
			Link:     item.WebViewLink,
		})
	}
	return files, nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, endpoint string, out any) error {
	if strings.TrimSpace(accessToken) == "" {
		return ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("google api returned status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode google response: %w", err)
	}
	return nil
}
