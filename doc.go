// Package forge builds ordered, dependency-resolved graphs of named data
// templates and executes their creation, persisted or in-memory, with
// override composition and transactional rollback.
//
// A template is a reusable attribute blueprint for one entity of a Kind. A
// template can reference another template symbolically; running one template
// creates everything it transitively requires, in dependency order, exactly
// once, while callers override individual attributes per call or through
// named scenarios with inheritance.
//
// # Templates and Stores
//
// Templates live in an explicit Store, never in package-level state, so test
// runs can isolate their registries completely:
//
//	provider := schema.NewMapProvider(
//	    schema.New("Blog", schema.WithID("id", schema.IntID), schema.WithAttrs("name")),
//	    schema.New("Post",
//	        schema.WithID("id", schema.IntID),
//	        schema.WithAttrs("title", "content"),
//	        schema.WithRelation("blog_id", "Blog"),
//	    ),
//	)
//	store := forge.NewStore(provider)
//	err := store.Register(
//	    &forge.Template{Kind: "Blog", Name: "example_blog", Attrs: forge.Attrs("name", "Example name")},
//	    &forge.Template{Kind: "Post", Name: "example_post", Attrs: forge.Attrs(
//	        "title", "A post title",
//	        "blog_id", "example_blog",
//	    )},
//	)
//
// Registration derives dependency edges from relation attributes and rejects
// the whole batch if the updated graph would contain a cycle.
//
// # Running
//
//	engine := forge.New(store)
//	entities, err := engine.Run(ctx, []forge.Target{forge.T("Post", "example_post")})
//
// The run creates example_blog first, then example_post with blog_id
// substituted by the created blog's resolution handle. Requesting a template
// twice, directly or through a diamond of references, still creates it once.
//
// # Overrides and Scenarios
//
// Override sources compose with fixed precedence: scenario overrides, then
// the run-level override map, then inline target overrides, later sources
// winning key by key. A scenario may extend parent scenarios; resolution
// flattens the chain depth-first with the child winning.
//
// # Strategies
//
// The Strategy interface decides how resolved attributes become entities.
// Persist creates rows through a dialect.Driver and wraps the whole run in
// one transaction; Memory builds plain attribute maps with generated
// identifiers and stamped timestamps, and has nothing to roll back. Custom
// creation functions replace the step entirely, per template or per kind.
package forge
