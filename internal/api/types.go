package api

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

type RecaseRequest struct {
	Model       string     `json:"model,omitempty"`
	Input       InputValue `json:"input"`
	BeamSize    *int       `json:"beam_size,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
}

type RecaseResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Output  []RecaseLine `json:"output"`
	Usage   RecaseUsage  `json:"usage"`
}

type RecaseLine struct {
	Index  int     `json:"index"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Cached bool    `json:"cached,omitempty"`
}

type RecaseUsage struct {
	Characters  int `json:"characters"`
	Unknown     int `json:"unknown"`
	Steps       int `json:"steps"`
	OracleCalls int `json:"oracle_calls"`
	Candidates  int `json:"candidates"`
}

type TokenizeRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type TokenizeResponse struct {
	Object  string   `json:"object"`
	Model   string   `json:"model"`
	Tokens  []string `json:"tokens"`
	IDs     []int    `json:"ids"`
	Unknown int      `json:"unknown"`
}

type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

// InputValue accepts either a single string or an array of strings.
type InputValue struct {
	String *string
	Items  []string
}

func (v *InputValue) UnmarshalJSON(b []byte) error {
	if v == nil {
		return fmt.Errorf("input value: nil receiver")
	}
	if len(b) == 0 || string(b) == "null" {
		*v = InputValue{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("input value: %w", err)
		}
		v.String = &s
		v.Items = nil
		return nil
	case '[':
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("input value: %w", err)
		}
		v.Items = items
		v.String = nil
		return nil
	default:
		return fmt.Errorf("input value: expected string or array of strings")
	}
}

func (v InputValue) MarshalJSON() ([]byte, error) {
	if v.String != nil {
		return json.Marshal(*v.String)
	}
	if v.Items != nil {
		return json.Marshal(v.Items)
	}
	return []byte("null"), nil
}

// Lines flattens the input into independent lines. A string is split on
// newlines; array items are split too so every line decodes on its own.
func (v InputValue) Lines() []string {
	var raw []string
	switch {
	case v.String != nil:
		raw = []string{*v.String}
	case v.Items != nil:
		raw = v.Items
	default:
		return nil
	}
	var lines []string
	for _, item := range raw {
		for _, line := range strings.Split(item, "\n") {
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
	}
	return lines
}
