package types

import "time"

// ErrorResponse is the body of every non-2xx API answer. It doubles as an
// error so handlers can return it and let apicommon.ErrorHandler render it.
//
//nolint:errname // it is a response body first
type ErrorResponse struct {
	StatusCode int               `json:"-"`
	RequestID  string            `json:"requestID"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

type PingStatus string

const (
	PingStatusOK    PingStatus = "OK"
	PingStatusError PingStatus = "ERROR"
)

// PingResponse answers GET /api/ping.
type PingResponse struct {
	Message string     `json:"message"`
	Status  PingStatus `json:"status"`
}

// HealthResponse reports the state of the collector's dependencies.
type HealthResponse struct {
	Database bool `json:"database"`
	MQTT     bool `json:"mqtt"`
}

// SensorResponse is a sensor attached to a device.
type SensorResponse struct {
	SensorAddress     string `json:"sensorAddress"`
	DeviceAddress     string `json:"deviceAddress"`
	SensorName        string `json:"sensorName"`
	SensorDescription string `json:"sensorDescription"`
	Unit              string `json:"unit"`
}

// DeviceResponse is a device known to the collector.
type DeviceResponse struct {
	DeviceAddress string           `json:"deviceAddress"`
	DeviceType    string           `json:"deviceType"`
	FirstSeenAt   time.Time        `json:"firstSeenAt"`
	LastSeenAt    time.Time        `json:"lastSeenAt"`
	Sensors       []SensorResponse `json:"sensors"`
}

// ReadingResponse is one stored sensor reading.
type ReadingResponse struct {
	ID         int64     `json:"id"`
	DataValue  float64   `json:"dataValue"`
	RecordedAt time.Time `json:"recordedAt"`
}

// ReadingsResponse lists the most recent readings of a sensor, newest first.
type ReadingsResponse struct {
	SensorAddress string            `json:"sensorAddress"`
	Unit          string            `json:"unit"`
	Readings      []ReadingResponse `json:"readings"`
}
