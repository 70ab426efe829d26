// Package uid supplies the two identifier shapes the service needs: numeric
// snowflake IDs for database rows and UUID strings for correlation IDs and
// token jti values.
package uid

// NumberID generates unique numeric identifiers, suitable for primary keys.
type NumberID interface {
	Generate() uint64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
