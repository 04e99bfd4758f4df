package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

func bindJSON(body []byte, v interface{}) error {
	return json.Unmarshal(body, v)
}

// handleGetOpportunity serves GET /opportunities/:id.
func (s *Server) handleGetOpportunity(c *gin.Context) {
	id := c.Param("id")
	opp, err := s.coord.GetOpportunity(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, opp)
}
