package decision

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"trendpilot/internal/pkg/jsonutil"
	textutil "trendpilot/internal/pkg/text"

	"github.com/tidwall/gjson"
)

var (
	ErrReasoningCall = errors.New("reasoning service call failed")
	ErrNoJSON        = errors.New("no JSON object in response")
	ErrMalformedJSON = errors.New("malformed JSON")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidField  = errors.New("invalid field value")
)

// ParseError 记录响应被拒的类别与细节；errors.Is 可匹配 Kind。
type ParseError struct {
	Kind   error
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RequiredFields 为信号 JSON 的五个必填字段。
var RequiredFields = []string{"signal", "reason", "stop_loss", "take_profit", "confidence"}

// SchemaValidator 用 JSON schema 校验归一化后的字段。
type SchemaValidator interface {
	ValidateSignal(v any) error
}

// Parser 把模型原始输出转换为 Signal。
type Parser struct {
	Schema SchemaValidator
}

func NewParser(schema SchemaValidator) *Parser {
	return &Parser{Schema: schema}
}

// Parse 抽取 JSON 对象、宽松修复、检查必填字段并校验 schema。
func (p *Parser) Parse(raw string) (Signal, error) {
	block, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return Signal{}, &ParseError{Kind: ErrNoJSON}
	}
	normalized, _, ok := jsonutil.Normalize(block)
	if !ok {
		return Signal{}, &ParseError{Kind: ErrMalformedJSON, Detail: textutil.Truncate(block, 200)}
	}
	doc := gjson.Parse(normalized)
	if !doc.IsObject() {
		return Signal{}, &ParseError{Kind: ErrMalformedJSON, Detail: "root is not an object"}
	}
	fields, err := normalizeFields(doc)
	if err != nil {
		return Signal{}, err
	}
	if p != nil && p.Schema != nil {
		if err := p.Schema.ValidateSignal(fields); err != nil {
			return Signal{}, &ParseError{Kind: ErrInvalidField, Err: err}
		}
	}
	sig, err := decodeFields(fields)
	if err != nil {
		return Signal{}, err
	}
	return sig, nil
}

// normalizeFields 归一化字段：action/confidence 去空白转大写，数字字符串转为数字。
// 接受 "action" 作为 "signal" 的别名。
func normalizeFields(doc gjson.Result) (map[string]any, error) {
	out := make(map[string]any, len(RequiredFields))
	for _, name := range RequiredFields {
		val := doc.Get(name)
		if name == "signal" && !present(val) {
			val = doc.Get("action")
		}
		if !present(val) {
			return nil, &ParseError{Kind: ErrMissingField, Detail: name}
		}
		switch name {
		case "signal", "confidence":
			out[name] = strings.ToUpper(strings.TrimSpace(val.String()))
		case "stop_loss", "take_profit":
			out[name] = numericValue(val)
		default:
			out[name] = val.Value()
		}
	}
	return out, nil
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

func numericValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return f
		}
		return v.Str
	default:
		return v.Value()
	}
}

func decodeFields(fields map[string]any) (Signal, error) {
	action := Action(fmt.Sprint(fields["signal"]))
	if !validAction(action) {
		return Signal{}, &ParseError{Kind: ErrInvalidField, Detail: "signal=" + string(action)}
	}
	confidence := Confidence(fmt.Sprint(fields["confidence"]))
	if !validConfidence(confidence) {
		return Signal{}, &ParseError{Kind: ErrInvalidField, Detail: "confidence=" + string(confidence)}
	}
	reason, ok := fields["reason"].(string)
	if !ok {
		return Signal{}, &ParseError{Kind: ErrInvalidField, Detail: "reason"}
	}
	stopLoss, ok := fields["stop_loss"].(float64)
	if !ok {
		return Signal{}, &ParseError{Kind: ErrInvalidField, Detail: "stop_loss"}
	}
	takeProfit, ok := fields["take_profit"].(float64)
	if !ok {
		return Signal{}, &ParseError{Kind: ErrInvalidField, Detail: "take_profit"}
	}
	return Signal{
		Action:     action,
		Reason:     strings.TrimSpace(reason),
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Confidence: confidence,
	}, nil
}
