package domain

// TokenClass selects which slice of the upstream listing a cycle ingests.
type TokenClass string

const (
	ClassAll    TokenClass = "all"
	ClassBonded TokenClass = "bonded"
	ClassRecent TokenClass = "recent"
)

// String returns the string representation of TokenClass.
func (c TokenClass) String() string {
	return string(c)
}

// IsValid checks if the class is one of the known values.
func (c TokenClass) IsValid() bool {
	return c == ClassAll || c == ClassBonded || c == ClassRecent
}

// AllClasses lists valid classes in display order.
func AllClasses() []TokenClass {
	return []TokenClass{ClassAll, ClassBonded, ClassRecent}
}
