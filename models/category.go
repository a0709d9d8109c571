package models

import (
	"encoding/json"
	"errors"
	"strings"
)

type Category string

const (
	CategoryCemento      Category = "CEMENTO"
	CategoryAgregados    Category = "AGREGADOS"
	CategoryAcero        Category = "ACERO"
	CategoryBloques      Category = "BLOQUES"
	CategoryPlomeria     Category = "PLOMERIA"
	CategoryElectrico    Category = "ELECTRICO"
	CategoryMadera       Category = "MADERA"
	CategoryPintura      Category = "PINTURA"
	CategoryHerramientas Category = "HERRAMIENTAS"
	CategoryOtros        Category = "OTROS"
)

var AllCategories = []Category{
	CategoryCemento,
	CategoryAgregados,
	CategoryAcero,
	CategoryBloques,
	CategoryPlomeria,
	CategoryElectrico,
	CategoryMadera,
	CategoryPintura,
	CategoryHerramientas,
	CategoryOtros,
}

func (c Category) IsValid() bool {
	for _, v := range AllCategories {
		if c == v {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory accepts any letter case and surrounding spaces.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", errors.New("invalid category")
	}
	return c, nil
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("category must be string")
	}
	parsed, err := ParseCategory(str)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type MovementKind string

const (
	MovementKindDispatch MovementKind = "DISPATCH"
	MovementKindReturn   MovementKind = "RETURN"
)

type ProjectStatus string

const (
	ProjectStatusActive ProjectStatus = "ACTIVE"
	ProjectStatusClosed ProjectStatus = "CLOSED"
)
