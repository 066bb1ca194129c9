package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/estia-labs/chatbridge/components"
)

const defaultDescriptionTimeout = 30 * time.Second

type (
	// DescriptionOptions configures the description client.
	DescriptionOptions struct {
		// BaseURL is the description service base URL.
		BaseURL string
		// AssistantID selects the generation graph. Defaults to "agent".
		AssistantID string
		// HTTPClient overrides the HTTP client.
		HTTPClient *http.Client
	}

	// DescriptionClient generates item descriptions through the dedicated
	// description agent. Each request runs on a fresh upstream thread and
	// blocks until the run completes.
	DescriptionClient struct {
		http        *http.Client
		baseURL     string
		assistantID string
	}

	descriptionRequest struct {
		AssistantID string           `json:"assistant_id"`
		Input       descriptionInput `json:"input"`
		IfNotExists string           `json:"if_not_exists"`
	}

	descriptionInput struct {
		HouseData json.RawMessage `json:"house_data"`
		Language  string          `json:"description_language"`
		Mode      string          `json:"mode"`
	}

	descriptionResponse struct {
		FinalDescription string `json:"final_description"`
		FinalResponse    string `json:"final_response"`
	}
)

// NewDescriptionClient returns a description client for the given service.
func NewDescriptionClient(opts DescriptionOptions) (*DescriptionClient, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	assistantID := opts.AssistantID
	if assistantID == "" {
		assistantID = defaultAssistantID
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultDescriptionTimeout}
	}
	return &DescriptionClient{
		http:        httpClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		assistantID: assistantID,
	}, nil
}

// Generate produces a description for the item in the given language. The
// item marshals with its geoPoint in the "lat,lng" string form the
// description service expects, regardless of how it arrived.
func (c *DescriptionClient) Generate(ctx context.Context, item components.Item, language string) (string, error) {
	if language == "" {
		language = "english"
	}
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("encode item: %w", err)
	}
	body, err := json.Marshal(descriptionRequest{
		AssistantID: c.assistantID,
		Input: descriptionInput{
			HouseData: itemJSON,
			Language:  language,
			Mode:      "auto",
		},
		IfNotExists: "create",
	})
	if err != nil {
		return "", fmt.Errorf("encode description request: %w", err)
	}

	url := fmt.Sprintf("%s/threads/%s/runs/wait", c.baseURL, uuid.NewString())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build description request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call description service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("description service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out descriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode description response: %w", err)
	}
	description := out.FinalDescription
	if description == "" {
		description = out.FinalResponse
	}
	if description == "" {
		return "", errors.New("description response missing final_description and final_response")
	}
	return description, nil
}
