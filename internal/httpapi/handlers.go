package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/modelroom/modelroom/internal/runner"
)

type statusResponse struct {
	Status      string         `json:"status"`
	Version     string         `json:"version"`
	Models      int            `json:"models"`
	ByStatus    map[string]int `json:"by_status"`
	Engines     int            `json:"engines"`
	JobsRunning int            `json:"jobs_running"`
	CPUPercent  float64        `json:"cpu_percent"`
	Memory      memoryStatus   `json:"memory"`
}

type memoryStatus struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// getStatus handles GET /api/v1/status
// @Summary      Host status
// @Description  Model counts by status, running jobs, and host CPU/memory usage
// @Tags         system
// @Produce      json
// @Success      200  {object}  statusResponse
// @Router       /status [get]
func (a *API) getStatus(c *gin.Context) {
	stats, err := a.runner.Stats()
	if err != nil {
		writeError(c, err)
		return
	}

	resp := statusResponse{
		Status:      "ok",
		Version:     a.version,
		Models:      stats.Models,
		ByStatus:    stats.ByStatus,
		Engines:     stats.Engines,
		JobsRunning: stats.JobsRunning,
	}
	// Interval 0 reports usage since the previous call instead of
	// blocking the request to sample.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.Memory = memoryStatus{
			TotalBytes:  vm.Total,
			UsedBytes:   vm.Used,
			UsedPercent: vm.UsedPercent,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// listEngines handles GET /api/v1/engines
// @Summary      List engines
// @Description  Metadata of every registered engine
// @Tags         engines
// @Produce      json
// @Success      200  {array}  engineResponse
// @Router       /engines [get]
func (a *API) listEngines(c *gin.Context) {
	metas := a.runner.Engines()
	resp := make([]engineResponse, 0, len(metas))
	for _, meta := range metas {
		resp = append(resp, toEngineResponse(meta))
	}
	c.JSON(http.StatusOK, resp)
}

// connectEngine handles POST /api/v1/engines/:name/connect
// @Summary      Check engine connectivity
// @Description  Ask an engine to verify its backing service with the given arguments
// @Tags         engines
// @Accept       json
// @Produce      json
// @Param        name  path      string          true   "Engine name"
// @Param        body  body      connectRequest  false  "Connection arguments"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      501   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /engines/{name}/connect [post]
func (a *API) connectEngine(c *gin.Context) {
	var req connectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, err)
			return
		}
	}

	if err := a.runner.Connect(c.Request.Context(), c.Param("name"), req.Args); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

// listModels handles GET /api/v1/models
// @Summary      List models
// @Description  Every model record, ordered by creation time
// @Tags         models
// @Produce      json
// @Success      200  {array}  registry.Record
// @Router       /models [get]
func (a *API) listModels(c *gin.Context) {
	records, err := a.runner.Models()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// createModel handles POST /api/v1/models
// @Summary      Create a model
// @Description  Register a model and start its training job; poll the record status for completion
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      createModelRequest  true  "Model definition with optional inline training rows"
// @Success      202   {object}  registry.Record
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /models [post]
func (a *API) createModel(c *gin.Context) {
	var req createModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	frame, err := frameFromWire(req.Data, req.Columns)
	if err != nil {
		writeBadRequest(c, err)
		return
	}

	rec, err := a.runner.CreateModel(c.Request.Context(), runner.CreateModelRequest{
		Name:   req.Name,
		Engine: req.Engine,
		Target: req.Target,
		Data:   frame,
		Args:   req.Args,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, rec)
}

// getModel handles GET /api/v1/models/:name
// @Summary      Get a model
// @Description  The model record plus cached metrics from its last training run
// @Tags         models
// @Produce      json
// @Param        name  path      string  true  "Model name"
// @Success      200   {object}  modelResponse
// @Failure      404   {object}  errorResponse
// @Router       /models/{name} [get]
func (a *API) getModel(c *gin.Context) {
	rec, err := a.runner.Model(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := modelResponse{Record: rec}
	if metrics, ok := a.runner.ModelMetrics(rec.ID); ok {
		resp.Metrics = &metrics
	}
	c.JSON(http.StatusOK, resp)
}

// deleteModel handles DELETE /api/v1/models/:name
// @Summary      Delete a model
// @Description  Remove the record and drop the model's stored artifacts
// @Tags         models
// @Produce      json
// @Param        name  path      string  true  "Model name"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  errorResponse
// @Router       /models/{name} [delete]
func (a *API) deleteModel(c *gin.Context) {
	if err := a.runner.DeleteModel(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// predict handles POST /api/v1/models/:name/predict
// @Summary      Predict
// @Description  Run the model over the given rows; the response preserves column order
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        name  path      string          true  "Model name"
// @Param        body  body      predictRequest  true  "Input rows"
// @Success      200   {object}  predictResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /models/{name}/predict [post]
func (a *API) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	frame, err := frameFromWire(req.Data, req.Columns)
	if err != nil {
		writeBadRequest(c, err)
		return
	}

	name := c.Param("name")
	out, err := a.runner.Predict(c.Request.Context(), name, runner.PredictRequest{
		Data: frame,
		Args: req.Args,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, predictResponse{
		Model:   name,
		Columns: out.Columns(),
		Rows:    out.Records(),
	})
}

// updateModel handles POST /api/v1/models/:name/update
// @Summary      Update a model
// @Description  Retrain with new rows or arguments; poll the record status for completion
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        name  path      string              true   "Model name"
// @Param        body  body      updateModelRequest  false  "New rows and argument overrides"
// @Success      202   {object}  registry.Record
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      501   {object}  errorResponse
// @Router       /models/{name}/update [post]
func (a *API) updateModel(c *gin.Context) {
	var req updateModelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, err)
			return
		}
	}

	frame, err := frameFromWire(req.Data, req.Columns)
	if err != nil {
		writeBadRequest(c, err)
		return
	}

	rec, err := a.runner.UpdateModel(c.Request.Context(), c.Param("name"), runner.UpdateModelRequest{
		Data: frame,
		Args: req.Args,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, rec)
}

// describeModel handles GET /api/v1/models/:name/describe
// @Summary      Describe a model
// @Description  The engine's view of the model; attribute selects a facet, defaulting to info
// @Tags         models
// @Produce      json
// @Param        name       path      string  true   "Model name"
// @Param        attribute  query     string  false  "Description facet"
// @Success      200        {object}  frameResponse
// @Failure      404        {object}  errorResponse
// @Failure      501        {object}  errorResponse
// @Router       /models/{name}/describe [get]
func (a *API) describeModel(c *gin.Context) {
	out, err := a.runner.Describe(c.Request.Context(), c.Param("name"), c.Query("attribute"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFrameResponse(out))
}
