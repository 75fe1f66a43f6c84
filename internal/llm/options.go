package llm

import (
	"fmt"
	"math"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

// Options tunes a single generation request. Nil fields are left to the provider.
type Options struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	TopK            *int     `json:"top_k,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty"`
	StopSequences   []string `json:"stop,omitempty"`
	ResponseLength  string   `json:"response_length,omitempty"`
}

var responseLengthTokens = map[string]int{
	"short":  256,
	"medium": 512,
	"long":   1024,
}

// Resolve applies ResponseLength when no explicit MaxOutputTokens was given.
func (o Options) Resolve() Options {
	if o.MaxOutputTokens == nil {
		if n, ok := responseLengthTokens[o.ResponseLength]; ok {
			o.MaxOutputTokens = &n
		}
	}
	return o
}

// ParseOptions reads request options, accepting snake_case and camelCase spellings.
// When both spellings are present the camelCase one wins.
func ParseOptions(raw map[string]any) (Options, error) {
	var o Options
	if len(raw) == 0 {
		return o, nil
	}
	var err error
	if o.Temperature, err = floatOpt(raw, "temperature"); err != nil {
		return Options{}, err
	}
	if o.TopP, err = floatOpt(raw, "top_p", "topP"); err != nil {
		return Options{}, err
	}
	if o.TopK, err = intOpt(raw, "top_k", "topK"); err != nil {
		return Options{}, err
	}
	if o.MaxOutputTokens, err = intOpt(raw, "max_output_tokens", "maxOutputTokens"); err != nil {
		return Options{}, err
	}
	for _, key := range []string{"stop", "stopSequences"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue // only lists are honoured
		}
		stops := make([]string, 0, len(list))
		for _, s := range list {
			str, ok := s.(string)
			if !ok {
				return Options{}, model.NewValidationError(key, "stop sequences must be strings")
			}
			stops = append(stops, str)
		}
		o.StopSequences = stops
	}
	if v, ok := raw["response_length"]; ok {
		s, ok := v.(string)
		if !ok {
			return Options{}, model.NewValidationError("response_length", "must be a string")
		}
		o.ResponseLength = s
	}
	return o, nil
}

func floatOpt(raw map[string]any, keys ...string) (*float64, error) {
	var out *float64
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			return nil, model.NewValidationError(k, fmt.Sprintf("must be a number, got %T", v))
		}
		out = &f
	}
	return out, nil
}

func intOpt(raw map[string]any, keys ...string) (*int, error) {
	var out *int
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		var n int
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) {
				return nil, model.NewValidationError(k, "must be an integer")
			}
			n = int(x)
		case int:
			n = x
		default:
			return nil, model.NewValidationError(k, fmt.Sprintf("must be an integer, got %T", v))
		}
		out = &n
	}
	return out, nil
}
