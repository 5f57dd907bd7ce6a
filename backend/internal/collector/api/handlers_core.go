package api

import (
	"net/http"

	apicommon "walk-sensor/backend/internal/shared/api"
	"walk-sensor/backend/internal/shared/types"
	"walk-sensor/backend/pkg/router"
	"walk-sensor/backend/pkg/utils"
)

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, types.PingResponse{
		Message: "Pong", Status: types.PingStatusOK,
	})

	return nil
}

func (h *Handler) RegisterPing(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "ping",
		Summary:     "Ping the server",
		Description: "Check if the server is alive",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.Ping),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) error {
	resp := types.HealthResponse{Database: true, MQTT: h.conn.IsConnected()}

	if err := h.db.Ping(r.Context()); err != nil {
		apicommon.GetLogger(r.Context()).Warn("database ping failed", utils.ErrAttr(err))

		resp.Database = false
	}

	code := http.StatusOK
	if !resp.Database || !resp.MQTT {
		code = http.StatusServiceUnavailable
	}

	apicommon.RespondJSON(w, r, code, resp)

	return nil
}

func (h *Handler) RegisterHealth(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "health",
		Summary:     "Check server health",
		Description: "Reports database and MQTT connectivity. Responds 503 when either is down.",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.Health),
	})
}

func (h *Handler) Version(w http.ResponseWriter, r *http.Request) error {
	apicommon.RespondJSON(w, r, http.StatusOK, utils.GetBuildInfo())

	return nil
}

func (h *Handler) RegisterVersion(path string, rb *router.RouteBuilder) {
	rb.MustGet(path, router.RouteSpec{
		OperationID: "version",
		Summary:     "Get build information",
		Description: "Returns the version, commit and build time of the running collector",
		Group:       CoreGroup,
		Handler:     apicommon.ErrorHandler(h.Version),
	})
}
