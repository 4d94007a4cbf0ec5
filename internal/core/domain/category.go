package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type CategoryType int

const (
	CategoryTypeGeneral     CategoryType = 1
	CategoryTypeGrocery     CategoryType = 2
	CategoryTypeElectronics CategoryType = 3
	CategoryTypeClothing    CategoryType = 4
)

// CategoryTypeCodes maps each CategoryType to the code stored in the lookup table.
var CategoryTypeCodes = map[CategoryType]string{
	CategoryTypeGeneral:     "GENERAL",
	CategoryTypeGrocery:     "GROCERY",
	CategoryTypeElectronics: "ELECTRONICS",
	CategoryTypeClothing:    "CLOTHING",
}

func (t CategoryType) String() string {
	if code, ok := CategoryTypeCodes[t]; ok {
		return code
	}
	return fmt.Sprintf("CategoryType(%d)", int(t))
}

func (t CategoryType) Valid() bool {
	_, ok := CategoryTypeCodes[t]
	return ok
}

// ParseCategoryType accepts a lookup code, case-insensitively.
func ParseCategoryType(s string) (CategoryType, error) {
	for t, code := range CategoryTypeCodes {
		if strings.EqualFold(code, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown category type %q", s)
}

// Category groups products.
type Category struct {
	ID        uuid.UUID
	Name      string
	Type      CategoryType
	CreatedAt int64 // unix seconds
	UpdatedAt int64 // unix seconds, 0 until the first update
}
