// Package agentapi is the HTTP client surface of the upstream agent
// service: a streaming run client consuming server-sent state frames and a
// blocking client for generated item descriptions.
package agentapi

import (
	"bufio"
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
	"goa.design/clue/log"
)

const (
	defaultAssistantID   = "agent"
	defaultStreamTimeout = 60 * time.Second
)

type (
	// ClientOptions configures the streaming client.
	ClientOptions struct {
		// BaseURL is the upstream agent API base URL.
		BaseURL string
		// AssistantID selects the agent graph. Defaults to "agent".
		AssistantID string
		// HTTPClient overrides the HTTP client. The default carries the
		// stream timeout.
		HTTPClient *http.Client
	}

	// Client streams agent runs over SSE.
	Client struct {
		http        *http.Client
		baseURL     string
		assistantID string
	}

	// Stream is one in-flight run. Next returns successive parsed frames
	// until the upstream closes the connection, then io.EOF. Closing the
	// stream (or cancelling the request context) releases the upstream
	// connection.
	Stream struct {
		ctx    context.Context
		body   io.ReadCloser
		reader *bufio.Reader
	}

	runRequest struct {
		Input       runInput `json:"input"`
		StreamMode  []string `json:"stream_mode"`
		AssistantID string   `json:"assistant_id"`
		IfNotExists string   `json:"if_not_exists,omitempty"`
	}

	runInput struct {
		Messages []Message `json:"messages"`
	}
)

// NewClient returns a streaming client for the given upstream.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	assistantID := opts.AssistantID
	if assistantID == "" {
		assistantID = defaultAssistantID
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultStreamTimeout}
	}
	return &Client{
		http:        httpClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		assistantID: assistantID,
	}, nil
}

// Stream starts a run on the given agent thread with the user's message and
// returns the event stream. The thread is created upstream when missing.
func (c *Client) Stream(ctx context.Context, threadID, userMessage string) (*Stream, error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}

	payload := runRequest{
		Input: runInput{
			Messages: []Message{{
				Type:    "human",
				Content: userMessage,
				ID:      uuid.NewString(),
			}},
		},
		StreamMode:  []string{"values"},
		AssistantID: c.assistantID,
		IfNotExists: "create",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}

	url := fmt.Sprintf("%s/threads/%s/runs/stream", c.baseURL, threadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("start run stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("agent API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return &Stream{
		ctx:    ctx,
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// Next returns the next parsed frame. Malformed data frames are logged and
// skipped. Returns io.EOF once the upstream closes the stream.
func (s *Stream) Next() (StateEvent, error) {
	for {
		_, data, err := readSSEEvent(s.reader)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return StateEvent{}, io.EOF
			}
			return StateEvent{}, err
		}
		if len(data) == 0 {
			continue
		}
		ev, err := parseStateEvent(data)
		if err != nil {
			log.Errorf(s.ctx, err, "skipping malformed stream frame")
			continue
		}
		return ev, nil
	}
}

// Close releases the upstream connection. Safe to call more than once.
func (s *Stream) Close() error {
	return s.body.Close()
}

// readSSEEvent reads one server-sent event, returning its event name and
// accumulated data payload. Comment lines are skipped; multi-line data is
// joined with newlines.
func readSSEEvent(reader *bufio.Reader) (string, []byte, error) {
	var event string
	var data []byte
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && (event != "" || len(data) > 0) {
				return event, data, nil
			}
			return "", nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if event == "" && len(data) == 0 {
				continue
			}
			return event, data, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if after, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(after)
			continue
		}
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			chunk := strings.TrimPrefix(after, " ")
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
			continue
		}
	}
}
