package model

// CanvasRole is a permission level on a canvas.
type CanvasRole string

// Canvas role constants, from most to least privileged.
const (
	RoleOwner     CanvasRole = "owner"
	RoleEditor    CanvasRole = "editor"
	RoleCommenter CanvasRole = "commenter"
	RoleViewer    CanvasRole = "viewer"
)

func (r CanvasRole) level() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleEditor:
		return 3
	case RoleCommenter:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// IsValid checks if the role is one of the known values.
func (r CanvasRole) IsValid() bool {
	return r.level() > 0
}

// Allows reports whether r grants at least the required role.
func (r CanvasRole) Allows(required CanvasRole) bool {
	return r.IsValid() && r.level() >= required.level()
}

// ParseCanvasRole validates a raw role.
func ParseCanvasRole(s string) (CanvasRole, error) {
	v := CanvasRole(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "canvas role", Value: s}
	}
	return v, nil
}

// Category is one of the five fixed cost categories.
type Category string

// Cost category constants in display order.
const (
	CategoryImplementation Category = "implementation"
	CategoryLicensing      Category = "licensing"
	CategoryInfrastructure Category = "infrastructure"
	CategoryTraining       Category = "training"
	CategorySupport        Category = "support"
)

// Categories lists the cost categories in display order.
var Categories = []Category{
	CategoryImplementation,
	CategoryLicensing,
	CategoryInfrastructure,
	CategoryTraining,
	CategorySupport,
}

// IsValid checks if the category is one of the five fixed values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryImplementation, CategoryLicensing, CategoryInfrastructure, CategoryTraining, CategorySupport:
		return true
	}
	return false
}

// ParseCategory validates a raw category.
func ParseCategory(s string) (Category, error) {
	v := Category(s)
	if !v.IsValid() {
		return "", &EnumError{Type: "cost category", Value: s}
	}
	return v, nil
}
