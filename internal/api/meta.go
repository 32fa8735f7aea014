package api

import (
	"net/http"

	"graphguard/internal/dsl"

	"github.com/gin-gonic/gin"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Module  string `json:"module"`
	Entity  string `json:"entity"`
	Caption string `json:"caption,omitempty"`
}

func (s *Server) MetaListHandler(c *gin.Context) {
	reg := s.current().Registry
	out := make([]metaEntityListItem, 0, reg.Len())
	for _, fqn := range reg.FQNs() {
		e, _ := reg.Lookup(fqn)
		out = append(out, metaEntityListItem{Module: e.Module, Entity: e.Name, Caption: e.Caption})
	}
	c.JSON(http.StatusOK, out)
}

type metaField struct {
	Name      string            `json:"name"`
	Caption   string            `json:"caption,omitempty"`
	Type      string            `json:"type"`
	Kind      dsl.Kind          `json:"kind"`
	ElemKind  dsl.Kind          `json:"elemKind,omitempty"`
	Container dsl.Container     `json:"container"`
	Variant   dsl.Variant       `json:"variant,omitempty"`
	Ref       string            `json:"ref,omitempty"`
	RefFQN    string            `json:"refFQN,omitempty"`
	Enum      []string          `json:"enum,omitempty"`
	Catalog   string            `json:"catalog,omitempty"`
	Required  bool              `json:"required,omitempty"`
	Unique    bool              `json:"unique,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

type metaRelation struct {
	Left  string         `json:"left"`
	Op    dsl.RelationOp `json:"op"`
	Right string         `json:"right"`
}

type metaUsedBy struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
}

type metaConstraints struct {
	Unique    [][]string     `json:"unique,omitempty"`
	Relations []metaRelation `json:"relations,omitempty"`
	UsedBy    []metaUsedBy   `json:"usedBy,omitempty"`
}

type metaEntity struct {
	Module      string           `json:"module"`
	Entity      string           `json:"entity"`
	Caption     string           `json:"caption,omitempty"`
	Fields      []metaField      `json:"fields"`
	Constraints *metaConstraints `json:"constraints,omitempty"`
}

func (s *Server) MetaEntityHandler(c *gin.Context) {
	schema, ok := s.current().resolve(c.Param("module"), c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}
	c.JSON(http.StatusOK, describe(schema))
}

func describe(schema *dsl.Entity) metaEntity {
	fields := make([]metaField, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		opts := make(map[string]string, len(f.Options))
		for k, v := range f.Options {
			opts[k] = v
		}
		fields = append(fields, metaField{
			Name:      f.Name,
			Caption:   f.Caption,
			Type:      f.Type,
			Kind:      f.Kind,
			ElemKind:  f.ElemKind,
			Container: f.Container,
			Variant:   f.Variant,
			Ref:       f.RefTarget,
			RefFQN:    f.Target,
			Enum:      append([]string(nil), f.Enum...),
			Catalog:   f.EnumCatalog,
			Required:  f.Required,
			Unique:    f.Unique,
			Options:   opts,
		})
	}

	var cons *metaConstraints
	sc := schema.Constraints
	if len(sc.Unique) > 0 || len(sc.Relations) > 0 || len(sc.UsedBy) > 0 {
		cons = &metaConstraints{}
		for _, set := range sc.Unique {
			cons.Unique = append(cons.Unique, append([]string(nil), set...))
		}
		for _, r := range sc.Relations {
			cons.Relations = append(cons.Relations, metaRelation{Left: r.Left, Op: r.Op, Right: r.Right})
		}
		for _, ub := range sc.UsedBy {
			name := ub.Target
			if name == "" {
				name = ub.Entity
			}
			cons.UsedBy = append(cons.UsedBy, metaUsedBy{Entity: name, Field: ub.Field})
		}
	}

	return metaEntity{
		Module:      schema.Module,
		Entity:      schema.Name,
		Caption:     schema.Caption,
		Fields:      fields,
		Constraints: cons,
	}
}

func (s *Server) MetaCatalogHandler(c *gin.Context) {
	name := c.Param("name")
	dir, ok := s.current().Enums[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":  name,
		"items": dir.Items,
	})
}
