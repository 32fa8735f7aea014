package api

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"graphguard/internal/dsl"
	"graphguard/internal/mo"
	"graphguard/internal/storage"
	"graphguard/internal/vo"

	"github.com/gin-gonic/gin"
)

// ==== Параметры поиска ====

type ListParams struct {
	Limit  int
	Offset int
	Sort   []mo.Order
	Filter *mo.MO
}

// операторы в ключе запроса: price__gte=10, status__in=a,b, note__null=true
var suffixOps = map[string]mo.Op{
	"eq":   mo.OpEqual,
	"ne":   mo.OpNotEqual,
	"gt":   mo.OpGreater,
	"gte":  mo.OpGreaterEqual,
	"lt":   mo.OpLess,
	"lte":  mo.OpLessEqual,
	"like": mo.OpLike,
	"in":   mo.OpIn,
	"nin":  mo.OpNotIn,
	"null": mo.OpIsNull,
}

// ==== Парсинг query-параметров ====

func parseListParams(reg *dsl.Registry, schema *dsl.Entity, q url.Values) ListParams {
	// limit
	limit := 50
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	// offset
	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	// sort
	var order []mo.Order
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	for _, p := range strings.Split(sv, ",") {
		p = strings.TrimSpace(p)
		desc := false
		if strings.HasPrefix(p, "-") {
			desc = true
			p = strings.TrimPrefix(p, "-")
		} else {
			p = strings.TrimPrefix(p, "+")
		}
		if p != "" {
			order = append(order, mo.Order{Attr: p, Desc: desc})
		}
	}

	// фильтры (исключаем служебные ключи); ключи сортируем, чтобы дерево было детерминированным
	filter := mo.New()
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch key {
		case "offset", "limit", "sort", "_offset", "_limit", "_sort":
			continue
		}
		attr, op := key, mo.OpEqual
		if i := strings.LastIndex(key, "__"); i > 0 {
			if o, ok := suffixOps[key[i+2:]]; ok {
				attr, op = key[:i], o
			}
		}
		for _, raw := range q[key] {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			addCondition(filter, reg, schema, attr, op, raw)
		}
	}

	return ListParams{Limit: limit, Offset: offset, Sort: order, Filter: filter}
}

func addCondition(filter *mo.MO, reg *dsl.Registry, schema *dsl.Entity, attr string, op mo.Op, raw string) {
	switch op {
	case mo.OpIsNull:
		if b, err := strconv.ParseBool(raw); err == nil && !b {
			filter.IsNotNull(attr)
			return
		}
		filter.IsNull(attr)
	case mo.OpIn, mo.OpNotIn:
		parts := strings.Split(raw, ",")
		vals := make([]any, 0, len(parts))
		for _, p := range parts {
			vals = append(vals, typed(reg, schema, attr, strings.TrimSpace(p)))
		}
		if op == mo.OpIn {
			filter.In(attr, vals...)
		} else {
			filter.NotIn(attr, vals...)
		}
	case mo.OpLike:
		filter.Like(attr, raw)
	case mo.OpNotEqual:
		filter.NotEqual(attr, typed(reg, schema, attr, raw))
	case mo.OpGreater:
		filter.GreaterThan(attr, typed(reg, schema, attr, raw))
	case mo.OpGreaterEqual:
		filter.GreaterOrEqual(attr, typed(reg, schema, attr, raw))
	case mo.OpLess:
		filter.LessThan(attr, typed(reg, schema, attr, raw))
	case mo.OpLessEqual:
		filter.LessOrEqual(attr, typed(reg, schema, attr, raw))
	default:
		filter.Equal(attr, typed(reg, schema, attr, raw))
	}
}

// typed приводит строку из URL к виду атрибута верхнего уровня (числа, даты, decimal, ссылки).
// Вложенные пути и неприводимые значения остаются строками.
func typed(reg *dsl.Registry, schema *dsl.Entity, attr, raw string) any {
	if attr == vo.KeyID || strings.Contains(attr, ".") {
		return raw
	}
	f, ok := schema.Field(attr)
	if !ok || f.Kind == dsl.KindCollection || f.Container != dsl.Single {
		return raw
	}
	e, err := vo.Decode(reg, schema.FQN(), map[string]any{attr: raw})
	if err != nil {
		return raw
	}
	v, _ := e.Get(attr)
	if ref, ok := v.(*vo.Entity); ok {
		return ref.ID
	}
	return v
}

// GET /api/:module/:entity/_find, что видит валидатор в хранилище
func (s *Server) FindHandler(c *gin.Context) {
	eng := s.current()
	schema, ok := eng.resolve(c.Param("module"), c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}
	if eng.Finder == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no storage configured"})
		return
	}

	lp := parseListParams(eng.Registry, schema, c.Request.URL.Query())
	if err := lp.Filter.Err(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := eng.Finder.FindList(c.Request.Context(), schema.FQN(), lp.Filter, lp.Sort, nil, lp.Offset, lp.Limit)
	if err != nil {
		s.storageError(c, err)
		return
	}
	items := make([]map[string]any, 0, len(list))
	for _, e := range list {
		items = append(items, vo.Encode(eng.Registry, e))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"limit":  lp.Limit,
		"offset": lp.Offset,
		"filter": lp.Filter.String(),
	})
}

// GET /api/:module/:entity/:id
func (s *Server) GetOneHandler(c *gin.Context) {
	eng := s.current()
	schema, ok := eng.resolve(c.Param("module"), c.Param("entity"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
		return
	}
	if eng.Finder == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "no storage configured"})
		return
	}
	e, err := eng.Finder.FindByID(c.Request.Context(), schema.FQN(), c.Param("id"), nil)
	if err != nil {
		s.storageError(c, err)
		return
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, vo.Encode(eng.Registry, e))
}

func (s *Server) storageError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrUnknownType) || errors.Is(err, mo.ErrIncomparable) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.log.Error("storage lookup failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
}
