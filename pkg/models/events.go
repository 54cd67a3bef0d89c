package models

// EventType имя канала публикуемого события
type EventType string

const (
	EventTradeUpdate     EventType = "trade_update"
	EventWhaleAlert      EventType = "whale_alert"
	EventAIPrediction    EventType = "ai_prediction"
	EventMetricsUpdate   EventType = "metrics_update"
	EventChartData       EventType = "chart_data"
	EventAssetInfo       EventType = "asset_info"
	EventAvailableAssets EventType = "available_assets"
	EventWhaleCategories EventType = "whale_categories"
)

// Event исходящее событие. Пустой Asset означает событие для всех подписчиков.
type Event struct {
	Type  EventType `json:"event"`
	Asset string    `json:"asset,omitempty"`
	Data  any       `json:"data"`
}

// AIPrediction полезная нагрузка канала ai_prediction
type AIPrediction struct {
	Symbol    string      `json:"symbol"`
	Timestamp int64       `json:"timestamp"`
	Analysis  *AIAnalysis `json:"analysis"`
}
