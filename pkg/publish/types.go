package publish

// PublishData message published for every poll
type PublishData struct {
	Payload Payload `json:"payload"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"` // UTC, 毫秒
	Values    []PointData `json:"values"`
	Errors    []string    `json:"errors,omitempty"` // 本次采集失败的变量
}

type PointData struct {
	DataPointId string      `json:"dataPointId"`       // 变量名称
	Address     string      `json:"address,omitempty"` // s7 地址
	Value       interface{} `json:"value"`
}
