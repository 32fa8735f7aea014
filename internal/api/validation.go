package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"graphguard/internal/validation"
	"graphguard/internal/vo"

	"github.com/gin-gonic/gin"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Entity  string `json:"entity,omitempty"`
	Args    []any  `json:"args,omitempty"`
}

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

func fromFailures(fs validation.Failures) []FieldError {
	out := make([]FieldError, 0, len(fs))
	for _, f := range fs {
		out = append(out, FieldError{Code: f.Code, Field: f.Field, Message: f.Message, Entity: f.Entity, Args: f.Args})
	}
	return out
}

// 409, если есть конфликт с уже сохранёнными данными; иначе 422
func statusForErrors(errs []FieldError) int {
	for _, e := range errs {
		switch e.Code {
		case validation.ErrUniqueViolation, validation.ErrRefNotFound, validation.ErrUsedBy:
			return http.StatusConflict
		}
	}
	return http.StatusUnprocessableEntity
}

// forcedPaths: ?force=a,b&force=c
func forcedPaths(c *gin.Context) []string {
	var out []string
	for _, v := range c.QueryArray("force") {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// POST /api/:module/:entity/_validate?mode=insert|update&force=...
func (s *Server) ValidateHandler(c *gin.Context) {
	eng := s.current()
	schema, ok := eng.resolve(c.Param("module"), c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}

	mode := strings.ToLower(c.DefaultQuery("mode", string(validation.OpInsert)))
	if mode != string(validation.OpInsert) && mode != string(validation.OpUpdate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be insert or update"})
		return
	}

	var doc map[string]any
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	e, err := vo.Decode(eng.Registry, schema.FQN(), doc)
	if err != nil {
		var de vo.DecodeErrors
		if errors.As(err, &de) {
			errs := make([]FieldError, 0, len(de))
			for _, d := range de {
				errs = append(errs, ferr(validation.ErrTypeMismatch, d.Path, d.Message))
			}
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var fs validation.Failures
	if mode == string(validation.OpUpdate) {
		fs, err = eng.Validator.ValidateForUpdate(c.Request.Context(), e, forcedPaths(c)...)
	} else {
		fs, err = eng.Validator.ValidateForInsert(c.Request.Context(), e)
	}
	s.respond(c, fs, err)
}

// POST /api/:module/:entity/:id/_validate_delete
func (s *Server) ValidateDeleteHandler(c *gin.Context) {
	eng := s.current()
	schema, ok := eng.resolve(c.Param("module"), c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}
	fs, err := eng.Validator.ValidateForDelete(c.Request.Context(), schema.FQN(), c.Param("id"))
	s.respond(c, fs, err)
}

func (s *Server) respond(c *gin.Context, fs validation.Failures, err error) {
	switch {
	case err != nil:
		var ce *validation.CriticalError
		if errors.As(err, &ce) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  "critical validation error",
				"entity": ce.Entity,
				"field":  ce.Field,
				"reason": err.Error(),
			})
			return
		}
		// отмена клиентом или таймаут
		s.log.Warn("validation interrupted", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case len(fs) > 0:
		errs := fromFailures(fs)
		c.JSON(statusForErrors(errs), gin.H{"errors": errs})
	default:
		c.JSON(http.StatusOK, gin.H{"valid": true})
	}
}
