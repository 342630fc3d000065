package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WorkspaceClient asks the workspace service whether a user is a member of a
// workspace. It is the authorization collaborator of the presence core; the
// core itself never decides access.
type WorkspaceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewWorkspaceClient(baseURL string, timeout time.Duration) *WorkspaceClient {
	return &WorkspaceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CanAccess returns nil when the user may join the workspace, and an error
// describing the denial otherwise. Not-found and denied are indistinguishable
// to the caller on purpose.
func (c *WorkspaceClient) CanAccess(ctx context.Context, userID, workspaceID uuid.UUID) error {
	url := fmt.Sprintf("%s/workspaces/%s/members/%s", c.baseURL, workspaceID, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("workspace service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusForbidden:
		return fmt.Errorf("user %s is not a member of workspace %s", userID, workspaceID)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("membership check failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Member bool `json:"member"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Member {
		return fmt.Errorf("user %s is not a member of workspace %s", userID, workspaceID)
	}
	return nil
}
