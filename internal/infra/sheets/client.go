package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

var (
	ErrNotConfigured = errors.New("sheets: spreadsheet id or access token not configured")
	ErrUnauthorized  = errors.New("authentication failed, please reconnect your Google account")
	ErrForbidden     = errors.New("access denied, please check sheet permissions")
	ErrSheetNotFound = errors.New("sheet not found, please check the sheet id")
	ErrRateLimited   = errors.New("rate limit exceeded, please try again later")
)

// Sink 表格服务,只追加行与读取区域
type Sink interface {
	ReadRange(ctx context.Context, rng string) ([][]string, error)
	AppendRows(ctx context.Context, rows [][]string) error
	SheetName() string
}

// APIError 表格接口返回的非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets api error: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrSheetNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Spreadsheet 表格元数据中用到的字段
type Spreadsheet struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Properties    struct {
		Title string `json:"title"`
	} `json:"properties"`
}

type Client struct {
	baseURL       string
	spreadsheetID string
	sheetName     string
	token         string
	http          *http.Client
	logger        *zap.Logger
}

var _ Sink = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// NewClient 缺少表格 id 或访问令牌时返回 ErrNotConfigured
func NewClient(cfg config.SheetsConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.SpreadsheetID == "" || cfg.AccessToken == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:       strings.TrimRight(orDefault(cfg.BaseURL, DefaultBaseURL), "/"),
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     orDefault(cfg.SheetName, "Sheet1"),
		token:         cfg.AccessToken,
		http:          &http.Client{Timeout: timeout},
		logger:        logger.Named("sheets"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) SheetName() string {
	return c.sheetName
}

// Metadata 读取表格元数据,用于测试连接
func (c *Client) Metadata(ctx context.Context) (*Spreadsheet, error) {
	var out Spreadsheet
	if err := c.do(ctx, http.MethodGet, c.sheetURL(""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadRange 读取区域的值,空区域返回空切片
func (c *Client) ReadRange(ctx context.Context, rng string) ([][]string, error) {
	var out struct {
		Values [][]string `json:"values"`
	}
	if err := c.do(ctx, http.MethodGet, c.sheetURL("/values/"+url.PathEscape(rng)), nil, &out); err != nil {
		return nil, err
	}
	if out.Values == nil {
		return [][]string{}, nil
	}
	return out.Values, nil
}

// AppendRows 以原始值追加到工作表末尾
func (c *Client) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	u := c.sheetURL("/values/"+url.PathEscape(c.sheetName)+":append") + "?valueInputOption=RAW&insertDataOption=INSERT_ROWS"
	if err := c.do(ctx, http.MethodPost, u, map[string]any{"values": rows}, nil); err != nil {
		return fmt.Errorf("failed to append data: %w", err)
	}
	c.logger.Debug("追加行", zap.Int("rows", len(rows)))
	return nil
}

func (c *Client) sheetURL(suffix string) string {
	return c.baseURL + "/" + url.PathEscape(c.spreadsheetID) + suffix
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求表格接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析表格响应失败: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error.Message != "" {
		apiErr.Message = payload.Error.Message
	} else if len(data) > 0 {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
