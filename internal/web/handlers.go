package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type jobReq struct {
	Name string `json:"name"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", dashboardHTML)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

// bindJob parses and validates the {"name": ...} body shared by the job
// control endpoints. A nil return means the response was already written.
func (s *Server) bindJob(c *gin.Context) *jobReq {
	var req jobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return nil
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "name required"})
		return nil
	}
	if s.store.Job(req.Name) == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "unknown job: " + req.Name})
		return nil
	}
	return &req
}

func (s *Server) handleStop(c *gin.Context) {
	req := s.bindJob(c)
	if req == nil {
		return
	}
	if err := s.ctrl.StopJob(c.Request.Context(), req.Name); err != nil {
		s.log.Warn("stop %s: %v", req.Name, err)
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (s *Server) handleRestart(c *gin.Context) {
	req := s.bindJob(c)
	if req == nil {
		return
	}
	if err := s.ctrl.RestartJob(c.Request.Context(), req.Name); err != nil {
		s.log.Warn("restart %s: %v", req.Name, err)
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

// handleRefresh triggers a poll cycle and returns only after its results
// land, so a status read right after a refresh is never staler than the
// refresh itself.
func (s *Server) handleRefresh(c *gin.Context) {
	if err := s.ctrl.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (s *Server) handleQuit(c *gin.Context) {
	c.JSON(http.StatusOK, okResp{OK: true})
	// After the response is written so the client isn't cut off.
	go s.ctrl.Quit()
}
