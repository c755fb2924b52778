package api

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/raymondhs/char-rnn/internal/version"
	"github.com/raymondhs/char-rnn/internal/webui"
)

type Server struct {
	service *RecaseService
}

func NewServer(service *RecaseService) *Server {
	return &Server{service: service}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleIndex)
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/models", s.handleListModels)
	e.POST("/v1/recase", s.handleRecase)
	e.POST("/v1/tokenize", s.handleTokenize)
}

func (s *Server) handleIndex(c *echo.Context) error {
	page, err := webui.Index()
	if err != nil {
		return writeNotFound(c, "web ui not available")
	}
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, page)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleListModels(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "recase service not configured", "", "")
	}
	ids, err := s.service.ListModels()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	data := make([]ModelInfo, 0, len(ids))
	for _, id := range ids {
		data = append(data, ModelInfo{ID: id, Object: "model", OwnedBy: "local"})
	}
	return c.JSON(http.StatusOK, ModelList{Object: "list", Data: data})
}

func (s *Server) handleRecase(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "recase service not configured", "", "")
	}
	req, err := decodeJSON[RecaseRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	resp, err := s.service.Recase(c.Request().Context(), &req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTokenize(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "recase service not configured", "", "")
	}
	req, err := decodeJSON[TokenizeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	resp, err := s.service.Tokenize(c.Request().Context(), &req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
