package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"social-publisher/domain/apperror"
	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

type Options struct {
	HTTPClient      *http.Client
	RatePerSecond   float64
	Burst           int
	MetadataTimeout time.Duration
	UploadTimeout   time.Duration
}

// Client is the outbound HTTP transport shared by the platform adapters.
// Every call waits on the limiter and runs under its own timeout.
type Client struct {
	platform        model.Platform
	http            *http.Client
	limiter         *rate.Limiter
	metadataTimeout time.Duration
	uploadTimeout   time.Duration
}

func NewClient(platform model.Platform, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 5 * time.Minute
	}
	return &Client{
		platform:        platform,
		http:            hc,
		limiter:         rate.NewLimiter(limit, burst),
		metadataTimeout: opts.MetadataTimeout,
		uploadTimeout:   opts.UploadTimeout,
	}
}

// Request describes one outbound call.
type Request struct {
	Stage       apperror.Stage
	Method      string
	URL         string
	Header      http.Header
	Body        io.Reader
	ContentType string
	// Upload selects the longer upload timeout.
	Upload bool
}

// Do sends req and decodes a 2xx JSON body into out (when non-nil).
// It returns the response headers so callers can read ids carried there.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) (http.Header, error) {
	timeout := c.metadataTimeout
	if req.Upload {
		timeout = c.uploadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), req.Stage, 0, "rate limiter: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), req.Stage, 0, err.Error())
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), req.Stage, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		msg := upstreamMessage(body)
		logger.GetLogger().
			WithField("platform", c.platform).
			WithField("stage", req.Stage).
			WithField("status", resp.StatusCode).
			WithField("message", msg).
			Warn("platform call failed")
		return resp.Header, apperror.PlatformAPI(string(c.platform), req.Stage, resp.StatusCode, msg)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return resp.Header, apperror.PlatformAPI(string(c.platform), req.Stage, resp.StatusCode, "decode response: "+err.Error())
	}
	return resp.Header, nil
}

// PostForm encodes params (a struct with `url` tags) as a form body.
func (c *Client) PostForm(ctx context.Context, stage apperror.Stage, endpoint string, params interface{}, out interface{}) error {
	values, err := query.Values(params)
	if err != nil {
		return apperror.PlatformAPI(string(c.platform), stage, 0, "encode form: "+err.Error())
	}
	_, err = c.Do(ctx, Request{
		Stage:       stage,
		Method:      http.MethodPost,
		URL:         endpoint,
		Body:        strings.NewReader(values.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}, out)
	return err
}

// GetJSON appends params (a struct with `url` tags, may be nil) as the query string.
func (c *Client) GetJSON(ctx context.Context, stage apperror.Stage, endpoint string, params interface{}, header http.Header, out interface{}) error {
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return apperror.PlatformAPI(string(c.platform), stage, 0, "encode query: "+err.Error())
		}
		if enc := values.Encode(); enc != "" {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			endpoint += sep + enc
		}
	}
	_, err := c.Do(ctx, Request{Stage: stage, Method: http.MethodGet, URL: endpoint, Header: header}, out)
	return err
}

// PostJSON marshals body and returns response headers.
func (c *Client) PostJSON(ctx context.Context, stage apperror.Stage, endpoint string, header http.Header, body interface{}, out interface{}) (http.Header, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), stage, 0, "encode body: "+err.Error())
	}
	return c.Do(ctx, Request{
		Stage:       stage,
		Method:      http.MethodPost,
		URL:         endpoint,
		Header:      header,
		Body:        bytes.NewReader(raw),
		ContentType: "application/json",
	}, out)
}

// Staged is a remote media item copied to a local temp file.
type Staged struct {
	Path        string
	Size        int64
	ContentType string
}

// Remove deletes the temp file; safe to call more than once.
func (s *Staged) Remove() {
	if s == nil || s.Path == "" {
		return
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		logger.GetLogger().WithField("path", s.Path).WithField("error", err).Warn("failed removing staged media")
	}
	s.Path = ""
}

// Download copies src into a temp file under dir (os.TempDir when empty).
// The caller owns the file and must call Remove.
func (c *Client) Download(ctx context.Context, stage apperror.Stage, src, dir string) (*Staged, error) {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), stage, 0, "rate limiter: "+err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), stage, 0, "media url: "+err.Error())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), stage, 0, "media download: "+err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.PlatformAPI(string(c.platform), stage, resp.StatusCode, fmt.Sprintf("media download %s failed", redactURL(src)))
	}

	f, err := os.CreateTemp(dir, "sp-media-*")
	if err != nil {
		return nil, apperror.PlatformAPI(string(c.platform), stage, 0, "temp file: "+err.Error())
	}
	staged := &Staged{Path: f.Name(), ContentType: resp.Header.Get("Content-Type")}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		staged.Remove()
		if copyErr == nil {
			copyErr = closeErr
		}
		return nil, apperror.PlatformAPI(string(c.platform), stage, 0, "media download: "+copyErr.Error())
	}
	staged.Size = n
	if staged.ContentType == "" {
		staged.ContentType = "application/octet-stream"
	}
	return staged, nil
}

// UploadFile streams a staged file to endpoint with method (PUT or POST).
func (c *Client) UploadFile(ctx context.Context, stage apperror.Stage, method, endpoint string, header http.Header, staged *Staged) error {
	f, err := os.Open(staged.Path)
	if err != nil {
		return apperror.PlatformAPI(string(c.platform), stage, 0, "open staged media: "+err.Error())
	}
	defer f.Close()
	_, err = c.Do(ctx, Request{
		Stage:       stage,
		Method:      method,
		URL:         endpoint,
		Header:      header,
		Body:        f,
		ContentType: staged.ContentType,
		Upload:      true,
	}, nil)
	return err
}

// upstreamMessage extracts a readable message from Graph or LinkedIn error bodies.
func upstreamMessage(body []byte) string {
	var graph struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &graph) == nil {
		if graph.Error.Message != "" {
			if graph.Error.Type != "" {
				return fmt.Sprintf("%s (%s, code %d)", graph.Error.Message, graph.Error.Type, graph.Error.Code)
			}
			return graph.Error.Message
		}
		if graph.Message != "" {
			return graph.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
