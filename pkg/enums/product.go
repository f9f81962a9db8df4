package enums

import "fmt"

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// ProductCondition describes the physical condition of a listed item.
type ProductCondition string

const (
	ProductConditionNew         ProductCondition = "new"
	ProductConditionUsed        ProductCondition = "used"
	ProductConditionRefurbished ProductCondition = "refurbished"
)

var validProductConditions = []ProductCondition{
	ProductConditionNew,
	ProductConditionUsed,
	ProductConditionRefurbished,
}

func (c ProductCondition) IsValid() bool {
	for _, candidate := range validProductConditions {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseProductCondition(value string) (ProductCondition, error) {
	for _, candidate := range validProductConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product condition %q", value)
}

// ProductAvailability is the storefront availability badge.
type ProductAvailability string

const (
	AvailabilityInStock    ProductAvailability = "in_stock"
	AvailabilityLowStock   ProductAvailability = "low_stock"
	AvailabilityPreOrder   ProductAvailability = "pre_order"
	AvailabilityOutOfStock ProductAvailability = "out_of_stock"
)

var validProductAvailabilities = []ProductAvailability{
	AvailabilityInStock,
	AvailabilityLowStock,
	AvailabilityPreOrder,
	AvailabilityOutOfStock,
}

func (a ProductAvailability) IsValid() bool {
	for _, candidate := range validProductAvailabilities {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseProductAvailability(value string) (ProductAvailability, error) {
	for _, candidate := range validProductAvailabilities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product availability %q", value)
}
