// Package jira is a minimal Jira Cloud REST v3 client scoped to the issue
// queries the copilot needs: connection probe, assigned issues, projects.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var ErrNotConnected = errors.New("jira integration not connected")

const maxResponseBytes = 4 << 20

type Issue struct {
	Key            string `json:"key"`
	ID             string `json:"id"`
	Summary        string `json:"summary"`
	Description    string `json:"description"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	Assignee       string `json:"assignee"`
	Reporter       string `json:"reporter"`
	Project        string `json:"project"`
	IssueType      string `json:"issue_type"`
	Created        string `json:"created"`
	Updated        string `json:"updated"`
	DueDate        string `json:"due_date"`
	ResolutionDate string `json:"resolution_date,omitempty"`
	URL            string `json:"url"`
}

type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Lead        string `json:"lead"`
	URL         string `json:"url"`
}

// Credential is a per-user Jira Cloud API credential.
type Credential struct {
	Server   string
	Email    string
	APIToken string
}

func (c Credential) complete() bool {
	return strings.TrimSpace(c.Server) != "" &&
		strings.TrimSpace(c.Email) != "" &&
		strings.TrimSpace(c.APIToken) != ""
}

type Client struct {
	cred       Credential
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cred Credential, logger *slog.Logger) (*Client, error) {
	if !cred.complete() {
		return nil, ErrNotConnected
	}
	if logger == nil {
		logger = slog.Default()
	}
	cred.Server = strings.TrimRight(strings.TrimSpace(cred.Server), "/")
	return &Client{
		cred:       cred,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// TestConnection probes /myself; it reports reachability, not an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	var myself struct {
		AccountID string `json:"accountId"`
	}
	if err := c.do(ctx, http.MethodGet, "/myself", nil, &myself); err != nil {
		return false
	}
	return myself.AccountID != ""
}

// FetchAssignedIssues returns open issues assigned to the credential owner,
// most recently updated first.
func (c *Client) FetchAssignedIssues(ctx context.Context, maxResults int) ([]Issue, error) {
	if maxResults < 1 {
		maxResults = 20
	}

	var myself struct {
		AccountID string `json:"accountId"`
	}
	if err := c.do(ctx, http.MethodGet, "/myself", nil, &myself); err != nil {
		return nil, fmt.Errorf("resolve current jira user: %w", err)
	}
	if myself.AccountID == "" {
		return nil, fmt.Errorf("jira returned an empty account id")
	}

	payload := map[string]any{
		"jql":        fmt.Sprintf("assignee = %q AND status != Done ORDER BY updated DESC", myself.AccountID),
		"maxResults": maxResults,
		"fields": []string{
			"summary", "status", "priority", "assignee", "reporter",
			"created", "updated", "duedate", "resolutiondate",
			"description", "project", "issuetype",
		},
	}

	var result struct {
		Issues []rawIssue `json:"issues"`
	}
	if err := c.do(ctx, http.MethodPost, "/search", payload, &result); err != nil {
		return nil, fmt.Errorf("search jira issues: %w", err)
	}
	return c.formatIssues(result.Issues), nil
}

func (c *Client) FetchProjects(ctx context.Context) ([]Project, error) {
	var raw []struct {
		ID          string `json:"id"`
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Self        string `json:"self"`
		Lead        struct {
			DisplayName string `json:"displayName"`
		} `json:"lead"`
	}
	if err := c.do(ctx, http.MethodGet, "/project", nil, &raw); err != nil {
		return nil, fmt.Errorf("list jira projects: %w", err)
	}

	projects := make([]Project, 0, len(raw))
	for _, item := range raw {
		lead := item.Lead.DisplayName
		if lead == "" {
			lead = "Unknown"
		}
		projects = append(projects, Project{
			ID:          item.ID,
			Key:         item.Key,
			Name:        item.Name,
			Description: item.Description,
			Lead:        lead,
			URL:         item.Self,
		})
	}
	return projects, nil
}

type rawIssue struct {
	Key    string `json:"key"`
	ID     string `json:"id"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Created     string          `json:"created"`
		Updated     string          `json:"updated"`
		DueDate     string          `json:"duedate"`
		Resolution  string          `json:"resolutiondate"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority *struct {
			Name string `json:"name"`
		} `json:"priority"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Reporter *struct {
			DisplayName string `json:"displayName"`
		} `json:"reporter"`
		Project struct {
			Name string `json:"name"`
		} `json:"project"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
}

func (c *Client) formatIssues(raw []rawIssue) []Issue {
	issues := make([]Issue, 0, len(raw))
	for _, item := range raw {
		issue := Issue{
			Key:            item.Key,
			ID:             item.ID,
			Summary:        item.Fields.Summary,
			Description:    flattenDescription(item.Fields.Description),
			Status:         item.Fields.Status.Name,
			Priority:       "None",
			Assignee:       "Unassigned",
			Reporter:       "Unknown",
			Project:        item.Fields.Project.Name,
			IssueType:      item.Fields.IssueType.Name,
			Created:        item.Fields.Created,
			Updated:        item.Fields.Updated,
			DueDate:        item.Fields.DueDate,
			ResolutionDate: item.Fields.Resolution,
			URL:            fmt.Sprintf("%s/browse/%s", c.cred.Server, item.Key),
		}
		if item.Fields.Priority != nil && item.Fields.Priority.Name != "" {
			issue.Priority = item.Fields.Priority.Name
		}
		if item.Fields.Assignee != nil && item.Fields.Assignee.DisplayName != "" {
			issue.Assignee = item.Fields.Assignee.DisplayName
		}
		if item.Fields.Reporter != nil && item.Fields.Reporter.DisplayName != "" {
			issue.Reporter = item.Fields.Reporter.DisplayName
		}
		issues = append(issues, issue)
	}
	return issues
}

// flattenDescription pulls plain text out of an Atlassian Document Format
// description. Anything it cannot walk collapses to an empty string.
func flattenDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}

	var doc struct {
		Content []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var parts []string
	for _, block := range doc.Content {
		for _, inline := range block.Content {
			if strings.TrimSpace(inline.Text) != "" {
				parts = append(parts, inline.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal jira request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cred.Server+"/rest/api/3"+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cred.Email, c.cred.APIToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jira api returned status %d: %s", res.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode jira response: %w", err)
	}
	return nil
}
