package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terra-clan/codeladder/internal/models"
)

// Client is a Go SDK for the ladder backend API.
// It performs no caching and no retries: each method is one request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new ladder backend client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the backend origin the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errorBody is the backend's failure envelope
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do performs one JSON request. creds is nil for unauthenticated calls.
// out may be nil when the response body is only an acknowledgement.
func (c *Client) do(ctx context.Context, creds *models.Credentials, method, path string, in, out any) error {
	if creds != nil && !creds.Valid() {
		return &APIError{Kind: ErrUnauthorized, Message: "missing credentials"}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &APIError{Kind: ErrConflict, Message: "failed to marshal request: " + err.Error()}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Kind: ErrNetwork, Message: "failed to create request: " + err.Error()}
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
		req.Header.Set("x-username", creds.Username)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "method", method, "path", path, "error", err)
		return &APIError{Kind: ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: ErrNetwork, Status: resp.StatusCode, Message: "failed to read response: " + err.Error()}
	}

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 400 {
		return &APIError{
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: errorMessage(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{Kind: ErrServer, Status: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}

	return nil
}

// errorMessage extracts the backend error text from a failure body
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// missingField reports a 2xx response whose object lacks its identifier,
// including empty, null and {} bodies
func missingField(name string) error {
	return &APIError{Kind: ErrServer, Message: "malformed response: missing " + name}
}

// pathID escapes an identifier for use as a path segment
func pathID(id models.ID) string {
	return url.PathEscape(id.String())
}

// --- Authentication ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges a username/password for a backend token
func (c *Client) Login(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	var result models.AuthResponse
	if err := c.do(ctx, nil, http.MethodPost, "/authen/login", loginRequest{Username: username, Password: password}, &result); err != nil {
		return nil, err
	}
	if result.Token == "" || result.User.Username == "" {
		return nil, &APIError{Kind: ErrServer, Message: "login response missing user or token"}
	}
	return &result, nil
}

// Signup registers a new account and returns its token
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	var result models.AuthResponse
	if err := c.do(ctx, nil, http.MethodPost, "/authen/signup", req, &result); err != nil {
		return nil, err
	}
	if result.Token == "" || result.User.Username == "" {
		return nil, &APIError{Kind: ErrServer, Message: "signup response missing user or token"}
	}
	return &result, nil
}

// --- Questions ---

type markRequest struct {
	QuestionID models.ID `json:"questionid"`
	User       string    `json:"user"`
}

// ListProblemSet retrieves the whole question catalog
func (c *Client) ListProblemSet(ctx context.Context, creds models.Credentials) ([]models.Question, error) {
	var questions []models.Question
	if err := c.do(ctx, &creds, http.MethodGet, "/problemset", nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// GetQuestion retrieves one question by ID
func (c *Client) GetQuestion(ctx context.Context, creds models.Credentials, id models.ID) (*models.Question, error) {
	var q models.Question
	if err := c.do(ctx, &creds, http.MethodGet, "/question/"+pathID(id), nil, &q); err != nil {
		return nil, err
	}
	if q.ID.IsZero() {
		return nil, missingField("question_id")
	}
	return &q, nil
}

// MarkSolved adds the session user to the question's solved set
func (c *Client) MarkSolved(ctx context.Context, creds models.Credentials, id models.ID) error {
	return c.do(ctx, &creds, http.MethodPatch, "/markquestion", markRequest{QuestionID: id, User: creds.Username}, nil)
}

// UnmarkSolved removes the session user from the question's solved set
func (c *Client) UnmarkSolved(ctx context.Context, creds models.Credentials, id models.ID) error {
	return c.do(ctx, &creds, http.MethodPatch, "/unmarkquestion", markRequest{QuestionID: id, User: creds.Username}, nil)
}

// --- Ladders ---

type listLaddersRequest struct {
	Username string `json:"username"`
}

type createLadderRequest struct {
	Title string `json:"table_title"`
	User  string `json:"user"`
}

type copyLadderRequest struct {
	SourceID models.ID `json:"source_table_id"`
	Title    string    `json:"new_table_title"`
	User     string    `json:"new_user_id"`
}

type deleteLadderRequest struct {
	LadderID models.ID `json:"table_id"`
	User     string    `json:"user_id"`
}

type editLadderRequest struct {
	LadderID    models.ID         `json:"table_id"`
	QuestionIDs []models.ID       `json:"questionIds"`
	Action      models.EditAction `json:"action"`
}

type addCollaboratorRequest struct {
	LadderID models.ID `json:"source_table_id"`
	User     string    `json:"new_user_id"`
}

type removeCollaboratorRequest struct {
	LadderID models.ID `json:"source_table_id"`
	User     string    `json:"user_to_remove"`
}

type removeCollaboratorResponse struct {
	Users []string `json:"users"`
}

// ListLadders retrieves every ladder visible to the session user
func (c *Client) ListLadders(ctx context.Context, creds models.Credentials) ([]models.Ladder, error) {
	var ladders []models.Ladder
	if err := c.do(ctx, &creds, http.MethodPost, "/ladders", listLaddersRequest{Username: creds.Username}, &ladders); err != nil {
		return nil, err
	}
	return ladders, nil
}

// GetLadder retrieves a ladder by ID
func (c *Client) GetLadder(ctx context.Context, creds models.Credentials, id models.ID) (*models.Ladder, error) {
	var ladder models.Ladder
	if err := c.do(ctx, &creds, http.MethodGet, "/ladder/"+pathID(id), nil, &ladder); err != nil {
		return nil, err
	}
	if ladder.ID.IsZero() {
		return nil, missingField("table_id")
	}
	return &ladder, nil
}

// CreateLadder creates an empty ladder owned by the session user
func (c *Client) CreateLadder(ctx context.Context, creds models.Credentials, title string) (*models.Ladder, error) {
	var ladder models.Ladder
	if err := c.do(ctx, &creds, http.MethodPost, "/createtable", createLadderRequest{Title: title, User: creds.Username}, &ladder); err != nil {
		return nil, err
	}
	return &ladder, nil
}

// CopyLadder copies sourceID into a new ladder owned by the session user
func (c *Client) CopyLadder(ctx context.Context, creds models.Credentials, sourceID models.ID, title string) (*models.Ladder, error) {
	req := copyLadderRequest{SourceID: sourceID, Title: title, User: creds.Username}
	var ladder models.Ladder
	if err := c.do(ctx, &creds, http.MethodPost, "/copytable", req, &ladder); err != nil {
		return nil, err
	}
	return &ladder, nil
}

// DeleteLadder deletes a ladder
func (c *Client) DeleteLadder(ctx context.Context, creds models.Credentials, id models.ID) error {
	return c.do(ctx, &creds, http.MethodDelete, "/deleteladder", deleteLadderRequest{LadderID: id, User: creds.Username}, nil)
}

// EditLadder adds or removes questions from a ladder
func (c *Client) EditLadder(ctx context.Context, creds models.Credentials, id models.ID, questionIDs []models.ID, action models.EditAction) error {
	req := editLadderRequest{LadderID: id, QuestionIDs: questionIDs, Action: action}
	return c.do(ctx, &creds, http.MethodPatch, "/edittable", req, nil)
}

// AddCollaborator grants username access to a ladder
func (c *Client) AddCollaborator(ctx context.Context, creds models.Credentials, id models.ID, username string) (*models.Ladder, error) {
	var ladder models.Ladder
	if err := c.do(ctx, &creds, http.MethodPost, "/collabtable", addCollaboratorRequest{LadderID: id, User: username}, &ladder); err != nil {
		return nil, err
	}
	return &ladder, nil
}

// RemoveCollaborator revokes username's access and returns the remaining collaborators
func (c *Client) RemoveCollaborator(ctx context.Context, creds models.Credentials, id models.ID, username string) ([]string, error) {
	var result removeCollaboratorResponse
	if err := c.do(ctx, &creds, http.MethodPost, "/removecollab", removeCollaboratorRequest{LadderID: id, User: username}, &result); err != nil {
		return nil, err
	}
	return result.Users, nil
}

// --- Admin ---

// AddQuestion appends a question to the problem set
func (c *Client) AddQuestion(ctx context.Context, creds models.Credentials, q models.NewQuestion) error {
	if q.Tags == nil {
		q.Tags = []string{}
	}
	return c.do(ctx, &creds, http.MethodPost, "/addquestion", q, nil)
}

// AdminListUsers lists every account
func (c *Client) AdminListUsers(ctx context.Context, creds models.Credentials) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, &creds, http.MethodGet, "/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AdminListQuestions lists every question
func (c *Client) AdminListQuestions(ctx context.Context, creds models.Credentials) ([]models.Question, error) {
	var questions []models.Question
	if err := c.do(ctx, &creds, http.MethodGet, "/admin/questions", nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// AdminListLadders lists every ladder regardless of membership
func (c *Client) AdminListLadders(ctx context.Context, creds models.Credentials) ([]models.Ladder, error) {
	var ladders []models.Ladder
	if err := c.do(ctx, &creds, http.MethodGet, "/admin/ladders", nil, &ladders); err != nil {
		return nil, err
	}
	return ladders, nil
}

// AdminDeleteUser deletes an account
func (c *Client) AdminDeleteUser(ctx context.Context, creds models.Credentials, username string) error {
	return c.do(ctx, &creds, http.MethodDelete, "/admin/users/"+pathID(models.ID(username)), nil, nil)
}

// AdminDeleteQuestion deletes a question from the problem set
func (c *Client) AdminDeleteQuestion(ctx context.Context, creds models.Credentials, id models.ID) error {
	return c.do(ctx, &creds, http.MethodDelete, "/admin/questions/"+pathID(id), nil, nil)
}

// AdminDeleteLadder deletes any ladder
func (c *Client) AdminDeleteLadder(ctx context.Context, creds models.Credentials, id models.ID) error {
	return c.do(ctx, &creds, http.MethodDelete, "/admin/ladders/"+pathID(id), nil, nil)
}
