package prompt

// DefaultSystem 为未配置模板文件时使用的系统提示词。
const DefaultSystem = `You are a professional cryptocurrency futures trader focused on {{.Timeframe}} trend trading.
Combine candlestick structure with the technical indicators provided and make a disciplined decision.
Respond with a single JSON object and nothing else.`

// DefaultUser 为默认的用户提示词模板。
const DefaultUser = `# Market: {{.Symbol}} ({{.Timeframe}})
- price: {{printf "%.5f" .Price}}
- time: {{.Time}}
- price change vs previous candle: {{printf "%+.5f" .PriceChangePct}}%
- order size: {{.Amount}} contracts, leverage {{.Leverage}}x

## Recent {{.KlineCount}} candles
{{.Klines}}
{{.Narrative}}
{{if .LastSignal}}
## Previous signal
{{.LastSignal}}
{{end}}
## Current position
{{.Position}}

## Output
Return JSON with exactly these fields:
{
  "signal": "BUY|SELL|HOLD",
  "reason": "short analysis",
  "stop_loss": <price>,
  "take_profit": <price>,
  "confidence": "HIGH|MEDIUM|LOW"
}`

// DefaultSignalSchema 约束模型输出的五个必填字段。
var DefaultSignalSchema = map[string]any{
	"type":     "object",
	"required": []any{"signal", "reason", "stop_loss", "take_profit", "confidence"},
	"properties": map[string]any{
		"signal":      map[string]any{"type": "string", "enum": []any{"BUY", "SELL", "HOLD"}},
		"reason":      map[string]any{"type": "string"},
		"stop_loss":   map[string]any{"type": "number"},
		"take_profit": map[string]any{"type": "number"},
		"confidence":  map[string]any{"type": "string", "enum": []any{"HIGH", "MEDIUM", "LOW"}},
	},
}
