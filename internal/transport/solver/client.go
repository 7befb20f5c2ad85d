package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
)

// maximum number of bytes of an error body kept in StatusError
const maxErrorBody = 512

// StatusError is returned for any non-2xx answer from the solver API.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("solver api %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client talks to the remote solver API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Move submits the human move and returns the verdict plus the solver reply.
func (c *Client) Move(ctx context.Context, req domain.MoveRequest) (*domain.MoveResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode move request: %w", err)
	}

	var resp domain.MoveResponse
	path := "/move/" + solverPath(req.Solver)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FirstMove asks the solver to open the game.
func (c *Client) FirstMove(ctx context.Context, solver domain.SolverIdentity) (domain.Move, error) {
	var move domain.Move
	if err := c.do(ctx, http.MethodGet, "/first-move/"+solverPath(solver), nil, &move); err != nil {
		return domain.Move{}, err
	}
	return move, nil
}

func (c *Client) Solvers(ctx context.Context) ([]domain.SolverIdentity, error) {
	var solvers []domain.SolverIdentity
	if err := c.do(ctx, http.MethodGet, "/solvers", nil, &solvers); err != nil {
		return nil, err
	}
	return solvers, nil
}

func (c *Client) Models(ctx context.Context, provider string) ([]domain.ModelInfo, error) {
	var models []domain.ModelInfo
	if err := c.do(ctx, http.MethodGet, "/models/"+url.PathEscape(provider), nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// Ping checks that the solver API answers with a 2xx status. The body is
// ignored, so older deployments that skip the data envelope still count.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/ping", nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	envelope := domain.Envelope[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode solver api response: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("solver api %s %s: response has no data", method, path)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode solver api data: %w", err)
	}
	return nil
}

// send performs the request and turns non-2xx answers into a StatusError.
// The caller closes the body on success.
func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("solver api %s %s: %w", method, path, err)
	}

	log.Debug().Str("component", "solver").Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("solver api call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

func solverPath(s domain.SolverIdentity) string {
	return url.PathEscape(s.Type) + "/" + url.PathEscape(s.Name)
}
