package api

import (
	"net/http"

	"graphguard/internal/dsl"

	"github.com/gin-gonic/gin"
)

// GET /api/admin/schema_lint: проблемы текущей схемы; пустой список означает, что схема чистая
func (s *Server) SchemaLintHandler(c *gin.Context) {
	eng := s.current()
	issues := eng.Registry.Lint(eng.Enums.Has)
	if issues == nil {
		issues = []dsl.SchemaIssue{}
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues, "count": len(issues)})
}
