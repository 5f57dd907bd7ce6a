package api

import (
	"errors"
	"net/http"

	apicommon "walk-sensor/backend/internal/shared/api"
	"walk-sensor/backend/internal/shared/types"
	"walk-sensor/backend/internal/store"
	"walk-sensor/backend/pkg/device"
	"walk-sensor/backend/pkg/router"
)

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) error {
	devices, err := h.db.ListDevices(r.Context())
	if err != nil {
		return err
	}

	resp := make([]types.DeviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, toDeviceResponse(d))
	}

	apicommon.RespondJSON(w, r, http.StatusOK, resp)

	return nil
}

func (h *Handler) RegisterListDevices(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "listDevices",
		Summary:     "List devices",
		Description: "Lists every identified device with its sensors, ordered by address.",
		Group:       DevicesGroup,
		Handler:     apicommon.ErrorHandler(h.ListDevices),
	})
}

func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) error {
	raw, err := apicommon.PathParam(r, "deviceAddress")
	if err != nil {
		return err
	}

	addr, err := device.NormalizeDeviceAddress(raw)
	if err != nil {
		return apicommon.NewValidationError(map[string]string{"deviceAddress": "must look like AA:BB:CC:DD:EE:FF"})
	}

	d, err := h.db.GetDevice(r.Context(), addr)
	if errors.Is(err, store.ErrNotFound) {
		return apicommon.NewError(http.StatusNotFound, "Device not found")
	}

	if err != nil {
		return err
	}

	apicommon.RespondJSON(w, r, http.StatusOK, toDeviceResponse(d))

	return nil
}

func (h *Handler) RegisterGetDevice(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "getDevice",
		Summary:     "Get a device",
		Description: "Returns one device with its sensors.",
		Group:       DevicesGroup,
		Parameters: map[string]router.ParameterSpec{
			"deviceAddress": {In: router.ParameterInPath, Description: "Device MAC address", Required: true},
		},
		Handler: apicommon.ErrorHandler(h.GetDevice),
	})
}

func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) error {
	raw, err := apicommon.PathParam(r, "sensorAddress")
	if err != nil {
		return err
	}

	addr, err := device.NormalizeSensorAddress(raw)
	if err != nil {
		return apicommon.NewValidationError(map[string]string{"sensorAddress": "must look like AA:BB:CC:DD:EE:FF:00"})
	}

	limit, err := apicommon.QueryInt(r, "limit", defaultReadingsLimit, 1, maxReadingsLimit)
	if err != nil {
		return err
	}

	sensor, err := h.db.GetSensor(r.Context(), addr)
	if errors.Is(err, store.ErrNotFound) {
		return apicommon.NewError(http.StatusNotFound, "Sensor not found")
	}

	if err != nil {
		return err
	}

	readings, err := h.db.ListReadings(r.Context(), addr, limit)
	if err != nil {
		return err
	}

	resp := types.ReadingsResponse{
		SensorAddress: sensor.Address,
		Unit:          sensor.Unit,
		Readings:      make([]types.ReadingResponse, 0, len(readings)),
	}

	for _, rd := range readings {
		resp.Readings = append(resp.Readings, types.ReadingResponse{
			ID:         rd.ID,
			DataValue:  rd.Value,
			RecordedAt: rd.RecordedAt,
		})
	}

	apicommon.RespondJSON(w, r, http.StatusOK, resp)

	return nil
}

func (h *Handler) RegisterListReadings(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "listReadings",
		Summary:     "List sensor readings",
		Description: "Returns the most recent readings of a sensor, newest first.",
		Group:       DevicesGroup,
		Parameters: map[string]router.ParameterSpec{
			"sensorAddress": {In: router.ParameterInPath, Description: "Sensor address", Required: true},
			"limit":         {In: router.ParameterInQuery, Description: "Maximum number of readings (1-1000, default 100)"},
		},
		Handler: apicommon.ErrorHandler(h.ListReadings),
	})
}

func toDeviceResponse(d store.Device) types.DeviceResponse {
	resp := types.DeviceResponse{
		DeviceAddress: d.Address,
		DeviceType:    d.Type,
		FirstSeenAt:   d.FirstSeenAt,
		LastSeenAt:    d.LastSeenAt,
		Sensors:       make([]types.SensorResponse, 0, len(d.Sensors)),
	}

	for _, s := range d.Sensors {
		resp.Sensors = append(resp.Sensors, types.SensorResponse{
			SensorAddress:     s.Address,
			DeviceAddress:     s.DeviceAddress,
			SensorName:        s.Name,
			SensorDescription: s.Description,
			Unit:              s.Unit,
		})
	}

	return resp
}
