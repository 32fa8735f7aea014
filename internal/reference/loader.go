package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadEnumCatalog читает все enum-справочники из папки reference/enums/.
// Отсутствующая папка: пустой каталог, а не ошибка.
func LoadEnumCatalog(dir string) (Catalog, error) {
	result := make(Catalog)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() || !(strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var enumDir EnumDirectory
		if err := yaml.Unmarshal(data, &enumDir); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// Имя справочника: из enumDir.Name или из имени файла
		enumName := enumDir.Name
		if enumName == "" {
			enumName = strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
			enumDir.Name = enumName
		}
		sort.SliceStable(enumDir.Items, func(i, j int) bool { return enumDir.Items[i].Order < enumDir.Items[j].Order })
		result[enumName] = enumDir
	}
	return result, nil
}
