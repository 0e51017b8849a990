package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/payflow/pkg/response"
)

// @Summary      Liveness
// @Tags         System
// @Produce      plain
// @Success      200  {string}  string "Server is live!"
// @Router       / [get]
func Root(c *gin.Context) {
	c.String(http.StatusOK, "Server is live!")
}

// @Summary      Health check
// @Description  Returns service status
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/", Root)
	r.GET("/healthz", Healthz)
}
