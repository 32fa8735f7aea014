package reference

import "time"

// EnumDirectory описывает один справочник типа enum
type EnumDirectory struct {
	Name  string     `yaml:"name" json:"name"`
	Items []EnumItem `yaml:"items" json:"items"`
}

type EnumItem struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
	// Дополнительные поля: Order, ValidFrom, ValidTo
	Order     int    `yaml:"order,omitempty" json:"order,omitempty"`
	ValidFrom string `yaml:"valid_from,omitempty" json:"valid_from,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty" json:"valid_to,omitempty"`
}

// Catalog: все справочники по имени
type Catalog map[string]EnumDirectory

// Has: есть ли справочник с таким именем
func (c Catalog) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Allows проверяет, что код есть в справочнике и действует на момент at.
// Пустые valid_from/valid_to: без ограничения; непарсящиеся даты игнорируются.
func (d EnumDirectory) Allows(code string, at time.Time) bool {
	for _, it := range d.Items {
		if it.Code != code {
			continue
		}
		if from, ok := parseDay(it.ValidFrom); ok && at.Before(from) {
			return false
		}
		if to, ok := parseDay(it.ValidTo); ok && at.After(to.Add(24*time.Hour-time.Nanosecond)) {
			return false
		}
		return true
	}
	return false
}

// Codes: коды в порядке order
func (d EnumDirectory) Codes() []string {
	out := make([]string, 0, len(d.Items))
	for _, it := range d.Items {
		out = append(out, it.Code)
	}
	return out
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
