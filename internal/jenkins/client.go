package jenkins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultLogLength = 10000
)

var buildNumberPattern = regexp.MustCompile(`/build/(\d+)/`)

// Client talks to a single CI server using the basic auth credentials of
// one job credential.
type Client struct {
	baseURL    string
	username   string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(baseURL, username, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		secret:     secret,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JobName returns the last non-empty path segment of jobURL.
func JobName(jobURL string) string {
	path := jobURL
	if u, err := url.Parse(jobURL); err == nil && u.Path != "" {
		path = u.Path
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	return segments[len(segments)-1]
}

func (c *Client) jobPath(jobURL string) string {
	return "/job/" + url.PathEscape(JobName(jobURL))
}

func (c *Client) do(
	ctx context.Context,
	op, method, path string,
	body io.Reader,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &ServiceError{Op: op, Err: err}
	}
	req.SetBasicAuth(c.username, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("jenkins request", zap.String("method", method), zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("jenkins request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &ServiceError{Op: op, Err: err}
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrNoData
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &ServiceError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        errors.New(strings.TrimSpace(string(msg))),
	}
}

func (c *Client) getJSON(ctx context.Context, op, path string, dst any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// GetJobInfo returns the raw job description.
func (c *Client) GetJobInfo(ctx context.Context, jobURL string) (map[string]any, error) {
	info := map[string]any{}
	if err := c.getJSON(ctx, "job info", c.jobPath(jobURL)+"/api/json", &info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetJobParameters returns the parameter definitions of a job. A job without
// parameters yields an empty list and ErrNoData.
func (c *Client) GetJobParameters(ctx context.Context, jobURL string) ([]ParamInfo, error) {
	info, err := c.GetJobInfo(ctx, jobURL)
	if err != nil {
		return []ParamInfo{}, err
	}

	definitions, ok := parameterDefinitions(info)
	if !ok {
		return []ParamInfo{}, ErrNoData
	}

	params := make([]ParamInfo, 0, len(definitions))
	for _, d := range definitions {
		def, ok := d.(map[string]any)
		if !ok {
			continue
		}
		name := stringValue(def["name"])
		p := ParamInfo{
			Name:        name,
			DisplayName: name,
			Type:        "StringParameterDefinition",
			Choices:     []string{},
		}
		if desc := stringValue(def["description"]); desc != "" {
			p.DisplayName = desc
		}
		if t := stringValue(def["type"]); t != "" {
			p.Type = t[strings.LastIndex(t, ".")+1:]
		}
		if v, ok := def["defaultValue"]; ok {
			p.DefaultValue = stringValue(v)
		} else if dv, ok := def["defaultParameterValue"].(map[string]any); ok {
			p.DefaultValue = stringValue(dv["value"])
		}
		if choices, ok := def["choices"].([]any); ok {
			for _, choice := range choices {
				p.Choices = append(p.Choices, stringValue(choice))
			}
		}
		params = append(params, p)
	}
	return params, nil
}

func parameterDefinitions(info map[string]any) ([]any, bool) {
	for _, key := range []string{"actions", "property"} {
		entries, ok := info[key].([]any)
		if !ok {
			continue
		}
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok || entry["_class"] != parametersPropertyClass {
				continue
			}
			if defs, ok := entry["parameterDefinitions"].([]any); ok {
				return defs, true
			}
		}
	}
	return nil, false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// TriggerBuild queues a build of the job and returns the number parsed from
// the Location header. It returns 0 when no number could be determined.
func (c *Client) TriggerBuild(
	ctx context.Context,
	jobURL string,
	params map[string]string,
) (int64, error) {
	const op = "trigger build"

	payload := triggerRequest{Parameters: make([]triggerParameter, 0, len(params))}
	for name, value := range params {
		payload.Parameters = append(payload.Parameters, triggerParameter{Name: name, Value: value})
	}
	sort.Slice(payload.Parameters, func(i, j int) bool {
		return payload.Parameters[i].Name < payload.Parameters[j].Name
	})
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, &ServiceError{Op: op, Err: err}
	}

	resp, err := c.do(ctx, op, http.MethodPost, c.jobPath(jobURL)+"/build", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, statusError(op, resp)
	}
	m := buildNumberPattern.FindStringSubmatch(resp.Header.Get("Location"))
	if m == nil {
		return 0, ErrNoData
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, ErrNoData
	}
	return n, nil
}

// GetBuildInfo returns the raw description of build n.
func (c *Client) GetBuildInfo(ctx context.Context, jobURL string, n int64) (map[string]any, error) {
	info := map[string]any{}
	path := fmt.Sprintf("%s/%d/api/json", c.jobPath(jobURL), n)
	if err := c.getJSON(ctx, "build info", path, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// GetBuildLog returns a window of the console output of build n. A length
// of 0 or less uses DefaultLogLength.
func (c *Client) GetBuildLog(
	ctx context.Context,
	jobURL string,
	n, start, length int64,
) (string, error) {
	const op = "build log"
	if length <= 0 {
		length = DefaultLogLength
	}
	q := url.Values{}
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("length", strconv.FormatInt(length, 10))
	path := fmt.Sprintf("%s/%d/consoleText?%s", c.jobPath(jobURL), n, q.Encode())

	resp, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(op, resp)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return string(out), nil
}

// GetBuildStatus maps the state of build n onto a Status. Any failure
// yields StatusPending along with the error.
func (c *Client) GetBuildStatus(ctx context.Context, jobURL string, n int64) (Status, error) {
	var info buildInfo
	path := fmt.Sprintf("%s/%d/api/json", c.jobPath(jobURL), n)
	if err := c.getJSON(ctx, "build status", path, &info); err != nil {
		return StatusPending, err
	}
	if info.Building {
		return StatusRunning, nil
	}
	if info.Result == nil {
		return StatusPending, nil
	}
	switch *info.Result {
	case "SUCCESS":
		return StatusSuccess, nil
	case "FAILURE":
		return StatusFailed, nil
	case "ABORTED":
		return StatusAborted, nil
	}
	return StatusPending, nil
}
