package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Tenant identifies the owner of a family of indexes.
// The alias is the path segment used on disk.
type Tenant struct {
	ID    uuid.UUID
	Alias string
}

// Environment is the deployment environment an index belongs to.
type Environment int

// Deployment environments.
const (
	EnvironmentNone Environment = iota
	Development
	Staging
	Production
)

var environmentNames = map[Environment]string{
	Development: "Development",
	Staging:     "Staging",
	Production:  "Production",
}

// String returns the capitalised name, which is also the directory name.
func (e Environment) String() string {
	if name, ok := environmentNames[e]; ok {
		return name
	}
	return "None"
}

// Valid reports whether e is one of the known deployment environments.
func (e Environment) Valid() bool {
	_, ok := environmentNames[e]
	return ok
}

// ParseEnvironment parses an environment name case-insensitively.
func ParseEnvironment(s string) (Environment, error) {
	for env, name := range environmentNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return env, nil
		}
	}
	return EnvironmentNone, &InvalidEnvironmentError{Value: s}
}

// Environments returns all known deployment environments in declaration order.
func Environments() []Environment {
	return []Environment{Development, Staging, Production}
}

// EntityType names the kind of entity an index holds.
type EntityType string

// Indexable entity types. The values are directory names.
const (
	EntityTypeQuote  EntityType = "Quote"
	EntityTypePolicy EntityType = "Policy"
)

// ParseEntityType parses an entity type name case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quote", "quotes":
		return EntityTypeQuote, nil
	case "policy", "policies":
		return EntityTypePolicy, nil
	default:
		return "", &UnknownEntityTypeError{Value: s}
	}
}
