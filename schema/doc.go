// Package schema describes the shape of the host data layer to the fixture
// engine.
//
// The engine itself never inspects databases or entity structs. Everything it
// needs to know about a Kind (a logical entity type) is declared here:
//
//   - which attributes are relations, and the Kind each relation points at
//   - the primary identifier attribute and how it is generated
//   - an optional partition-key attribute used for multi-tenant segregation
//   - timestamp attributes that are stamped automatically on creation
//   - the logical group a Kind belongs to, used for lazy sibling discovery
//
// # Declaring Kinds
//
// Kinds are built with functional options:
//
//	blog := schema.New("Blog",
//	    schema.WithGroup("blog"),
//	    schema.WithID("id", schema.IntID),
//	    schema.WithAttrs("name"),
//	)
//	post := schema.New("Post",
//	    schema.WithGroup("blog"),
//	    schema.WithID("id", schema.IntID),
//	    schema.WithAttrs("title", "content"),
//	    schema.WithRelation("blog_id", "Blog"),
//	)
//
// # Providers
//
// A Provider answers Kind lookups and group membership queries for the
// engine. MapProvider is the in-memory implementation used in tests and by
// hosts with a static schema; hosts with richer introspection can implement
// Provider themselves.
package schema
