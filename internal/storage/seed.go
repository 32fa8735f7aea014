package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"graphguard/internal/dsl"
	"graphguard/internal/vo"
)

// LoadSeed читает каталог сидов: файлы <module>.<Entity>.json с массивом документов.
// Документы декодируются по схеме и пишутся в p как есть, без валидации.
// Отсутствующий каталог: не ошибка. Возвращает число записанных сущностей.
func LoadSeed(ctx context.Context, reg *dsl.Registry, dir string, p Putter) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".json") {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		typ := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := reg.Lookup(typ); !ok {
			return total, fmt.Errorf("seed %s: %w: %s", name, ErrUnknownType, typ)
		}
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return total, err
		}
		var docs []map[string]any
		if err := json.Unmarshal(b, &docs); err != nil {
			return total, fmt.Errorf("seed %s: %w", name, err)
		}
		for i, doc := range docs {
			e, err := vo.Decode(reg, typ, doc)
			if err != nil {
				return total, fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
			if _, err := p.Put(ctx, e); err != nil {
				return total, fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
			total++
		}
	}
	return total, nil
}
