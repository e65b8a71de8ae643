package aiscraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
)

var (
	ErrMissingFields = errors.New("invalid strategy format: missing required fields")

	fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseError 模型回复无法解析为策略
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse AI strategy: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseAIResponse 从模型回复中取出策略 json
// 优先取 ```json 代码块,其次取第一个 { 到最后一个 } 之间的内容
func ParseAIResponse(raw string) (*strategy.AIStrategy, error) {
	payload := raw
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		payload = m[1]
	} else if m := bareObject.FindString(raw); m != "" {
		payload = m
	}

	var shape struct {
		PageType        string          `json:"pageType"`
		DataAvailable   json.RawMessage `json:"dataAvailable"`
		ExtractionSteps json.RawMessage `json:"extractionSteps"`
	}
	if err := json.Unmarshal([]byte(payload), &shape); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if shape.PageType == "" || missing(shape.DataAvailable) || missing(shape.ExtractionSteps) {
		return nil, &ParseError{Raw: raw, Err: ErrMissingFields}
	}

	var s strategy.AIStrategy
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return &s, nil
}

func missing(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
