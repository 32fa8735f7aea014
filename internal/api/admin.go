package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"graphguard/internal/dsl"
	"graphguard/internal/reference"

	"github.com/gin-gonic/gin"
)

type reloadReq struct {
	DSLRoot   string `json:"dsl_root"`   // директория с *.dsl
	EnumsRoot string `json:"enums_root"` // директория со справочниками enum
}

func (s *Server) AdminReloadHandler(c *gin.Context) {
	if s.build == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reload is not configured"})
		return
	}
	var req reloadReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	dslRoot := strings.TrimSpace(req.DSLRoot)
	if dslRoot == "" {
		dslRoot = s.dslRoot
	}
	enumsRoot := strings.TrimSpace(req.EnumsRoot)
	if enumsRoot == "" {
		enumsRoot = s.enumsRoot
	}

	// 1) читаем новые схемы и справочники
	newSchemas, err := dsl.LoadAllEntities(dslRoot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "DSL load error", "details": err.Error()})
		return
	}
	newEnums, err := reference.LoadEnumCatalog(enumsRoot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Enum load error", "details": err.Error()})
		return
	}
	reg := dsl.NewRegistry(newSchemas)

	// 2) линтер до замены: с блокирующими проблемами старая схема остаётся
	if issues := reg.Lint(newEnums.Has); len(issues) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "schema has blocking issues",
			"issues":  issues,
			"hint":    "fix DSL and retry",
			"dslRoot": dslRoot, "enumsRoot": enumsRoot,
		})
		return
	}

	// 3) новый Engine собирается целиком и подменяется атомарно
	eng, err := s.build(c.Request.Context(), reg, newEnums)
	if err != nil {
		s.log.Error("reload failed", "dsl", dslRoot, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload failed", "details": err.Error()})
		return
	}
	s.swap(eng)
	s.log.Info("schema reloaded", "dsl", dslRoot, "enums", enumsRoot, "entities", reg.Len(), "catalogs", len(newEnums))

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"dslRoot":    dslRoot,
		"enumsRoot":  enumsRoot,
		"entities":   reg.Len(),
		"enumGroups": len(newEnums),
	})
}
