package forge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/forge"
)

func blogStore(t *testing.T) *forge.Store {
	t.Helper()
	s := forge.NewStore(testProvider())
	require.NoError(t, s.Register(
		&forge.Template{Kind: "Blog", Name: "main", Attrs: forge.Attrs("name", "Main Blog")},
		&forge.Template{Kind: "Post", Name: "example_post", Attrs: forge.Attrs(
			"title", "Hello",
			"status", "draft",
			"blog_id", forge.NewRef("Blog", "main"),
		)},
	))
	return s
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("ReferenceSubstitution", func(t *testing.T) {
		s := blogStore(t)
		e := forge.New(s)

		entities, err := e.Run(ctx, []forge.Target{forge.T("Post", "example_post")})
		require.NoError(t, err)
		require.Len(t, entities, 2)

		blog, ok := entities[forge.NewRef("Blog", "main")].(map[string]any)
		require.True(t, ok)
		post, ok := entities[forge.NewRef("Post", "example_post")].(map[string]any)
		require.True(t, ok)

		// Under the in-memory strategy a relation attribute resolves to the
		// created entity value itself.
		assert.Equal(t, blog["id"], post["blog_id"].(map[string]any)["id"])
		assert.Equal(t, "Hello", post["title"])
	})

	t.Run("NonRelationAttributeNeverSubstituted", func(t *testing.T) {
		// "status" is not a relation: a value that collides with a template
		// name stays a literal.
		s := forge.NewStore(testProvider())
		require.NoError(t, s.Register(
			&forge.Template{Kind: "Blog", Name: "draft"},
			&forge.Template{Kind: "Post", Name: "p", Attrs: forge.Attrs("status", "draft")},
		))
		e := forge.New(s)

		entities, err := e.Run(ctx, []forge.Target{forge.T("Post", "p")})
		require.NoError(t, err)
		post := entities[forge.NewRef("Post", "p")].(map[string]any)
		assert.Equal(t, "draft", post["status"])
	})

	t.Run("OverridePrecedence", func(t *testing.T) {
		s := blogStore(t)
		s.RegisterScenarios(&forge.Scenario{
			Name: "base",
			Overrides: []forge.ScenarioOverride{
				{Ref: forge.NewRef("Post", "example_post"), Attrs: map[string]any{
					"title":  "scenario",
					"status": "scenario",
				}},
			},
		})
		e := forge.New(s)

		entities, err := e.RunScenario(ctx, "base",
			forge.WithOverride("Post", "example_post", map[string]any{"status": "run-level"}),
		)
		require.NoError(t, err)
		post := entities[forge.NewRef("Post", "example_post")].(map[string]any)
		// Run-level overrides win over scenario overrides key by key;
		// untouched scenario keys survive.
		assert.Equal(t, "run-level", post["status"])
		assert.Equal(t, "scenario", post["title"])
	})

	t.Run("InlineOverridesWin", func(t *testing.T) {
		s := blogStore(t)
		e := forge.New(s)

		entities, err := e.Run(ctx,
			[]forge.Target{forge.T("Post", "example_post", map[string]any{"title": "inline"})},
			forge.WithOverride("Post", "example_post", map[string]any{"title": "run-level", "status": "run-level"}),
		)
		require.NoError(t, err)
		post := entities[forge.NewRef("Post", "example_post")].(map[string]any)
		assert.Equal(t, "inline", post["title"])
		assert.Equal(t, "run-level", post["status"])
	})

	t.Run("ExplicitNil", func(t *testing.T) {
		s := blogStore(t)
		e := forge.New(s)

		entities, err := e.Run(ctx, []forge.Target{
			forge.T("Post", "example_post", map[string]any{"title": nil}),
		})
		require.NoError(t, err)
		post := entities[forge.NewRef("Post", "example_post")].(map[string]any)
		// Overriding to nil removes the attribute; it is not a nil value.
		_, present := post["title"]
		assert.False(t, present)
		assert.Equal(t, "draft", post["status"])
	})

	t.Run("Sequences", func(t *testing.T) {
		s := forge.NewStore(testProvider())
		require.NoError(t, s.Register(&forge.Template{
			Kind:  "User",
			Name:  "seq_user",
			Attrs: forge.Attrs("email", forge.Sequence("user%d@example.com")),
		}))
		e := forge.New(s)

		for i, want := range []string{"user0@example.com", "user1@example.com", "user2@example.com"} {
			entities, err := e.Run(ctx, []forge.Target{forge.T("User", "seq_user")})
			require.NoError(t, err, "run %d", i)
			u := entities[forge.NewRef("User", "seq_user")].(map[string]any)
			assert.Equal(t, want, u["email"])
		}

		e.ResetSequences()
		entities, err := e.Run(ctx, []forge.Target{forge.T("User", "seq_user")})
		require.NoError(t, err)
		u := entities[forge.NewRef("User", "seq_user")].(map[string]any)
		assert.Equal(t, "user0@example.com", u["email"])
	})

	t.Run("GeneratorCallContext", func(t *testing.T) {
		var got forge.Call
		s := forge.NewStore(testProvider())
		require.NoError(t, s.Register(&forge.Template{
			Kind: "User",
			Name: "probe",
			Attrs: forge.Attrs("email", forge.Generate(func(c forge.Call) any {
				got = c
				return "probe@example.com"
			}, "extra")),
		}))
		e := forge.New(s)

		_, err := e.Run(ctx, []forge.Target{forge.T("User", "probe")})
		require.NoError(t, err)
		assert.Equal(t, "User", got.Kind)
		assert.Equal(t, "probe", got.Name)
		assert.Equal(t, "email", got.Attr)
		assert.Equal(t, 0, got.Seq)
		assert.Equal(t, []any{"extra"}, got.Args)
	})

	t.Run("CreationError", func(t *testing.T) {
		s := blogStore(t)
		mem := forge.NewMemory(s.Provider())
		cause := errors.New("boom")
		mem.RegisterKindFunc("Blog", func(ctx context.Context, attrs *forge.Resolved, opts *forge.CreateOptions) (any, error) {
			return nil, cause
		})
		e := forge.New(s, forge.WithStrategy(mem))

		_, err := e.Run(ctx, []forge.Target{forge.T("Post", "example_post")})
		require.Error(t, err)
		assert.True(t, forge.IsCreationFailed(err))
		assert.True(t, errors.Is(err, cause))

		var ce *forge.CreationError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "Blog", ce.Kind())
		assert.Equal(t, "main", ce.Name())
	})

	t.Run("PanicRecovered", func(t *testing.T) {
		s := blogStore(t)
		mem := forge.NewMemory(s.Provider())
		mem.RegisterKindFunc("Blog", func(ctx context.Context, attrs *forge.Resolved, opts *forge.CreateOptions) (any, error) {
			panic("bad override")
		})
		e := forge.New(s, forge.WithStrategy(mem))

		_, err := e.Run(ctx, []forge.Target{forge.T("Blog", "main")})
		require.Error(t, err)
		assert.True(t, forge.IsCreationFailed(err))
		assert.Contains(t, err.Error(), "bad override")
	})

	t.Run("UnregisteredCreateOp", func(t *testing.T) {
		s := forge.NewStore(testProvider())
		require.NoError(t, s.Register(&forge.Template{
			Kind:     "Blog",
			Name:     "special",
			CreateOp: "make_special",
		}))
		e := forge.New(s)

		_, err := e.Run(ctx, []forge.Target{forge.T("Blog", "special")})
		require.Error(t, err)
		assert.True(t, forge.IsInvalidCreateFunc(err))
	})

	t.Run("TemplateCreateFunc", func(t *testing.T) {
		s := forge.NewStore(testProvider())
		require.NoError(t, s.Register(&forge.Template{
			Kind: "Blog",
			Name: "custom",
			CreateFunc: func(ctx context.Context, attrs *forge.Resolved, opts *forge.CreateOptions) (any, error) {
				return map[string]any{"id": int64(99), "custom": true}, nil
			},
		}))
		e := forge.New(s)

		entities, err := e.Run(ctx, []forge.Target{forge.T("Blog", "custom")})
		require.NoError(t, err)
		blog := entities[forge.NewRef("Blog", "custom")].(map[string]any)
		assert.Equal(t, true, blog["custom"])
	})
}

// orgEntity reports a concrete kind different from the template's.
type orgEntity struct{ name string }

func (orgEntity) Kind() string { return "Organization" }

func TestEngineActualKindAliasing(t *testing.T) {
	provider := testProvider()
	s := forge.NewStore(provider)
	require.NoError(t, s.Register(&forge.Template{
		Kind: "Blog",
		Name: "umbrella",
		CreateFunc: func(ctx context.Context, attrs *forge.Resolved, opts *forge.CreateOptions) (any, error) {
			return orgEntity{name: "umbrella corp"}, nil
		},
	}))
	e := forge.New(s)

	entities, err := e.Run(context.Background(), []forge.Target{forge.T("Blog", "umbrella")})
	require.NoError(t, err)

	// The entity is addressable under the requested reference and under its
	// actual kind.
	requested := entities[forge.NewRef("Blog", "umbrella")]
	actual := entities[forge.NewRef("Organization", "umbrella")]
	assert.Equal(t, requested, actual)
	assert.Equal(t, orgEntity{name: "umbrella corp"}, actual)
}

func TestEngineRunOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("PartitionKey", func(t *testing.T) {
		s := blogStore(t)
		mem := forge.NewMemory(s.Provider())
		var keys []any
		mem.RegisterKindFunc("Blog", func(ctx context.Context, attrs *forge.Resolved, opts *forge.CreateOptions) (any, error) {
			keys = append(keys, opts.PartitionKey)
			return map[string]any{"id": int64(1)}, nil
		})
		e := forge.New(s, forge.WithStrategy(mem))

		_, err := e.Run(ctx, []forge.Target{forge.T("Blog", "main")}, forge.WithPartitionKey("tenant-7"))
		require.NoError(t, err)
		assert.Equal(t, []any{"tenant-7"}, keys)
	})

	t.Run("ActorValue", func(t *testing.T) {
		s := blogStore(t)
		mem := forge.NewMemory(s.Provider())
		var actors []any
		mem.RegisterKindFunc("Blog", func(ctx context.Context, attrs *forge.Resolved, opts *forge.CreateOptions) (any, error) {
			actors = append(actors, opts.Actor)
			return map[string]any{"id": int64(1)}, nil
		})
		e := forge.New(s, forge.WithStrategy(mem))

		_, err := e.Run(ctx, []forge.Target{forge.T("Blog", "main")}, forge.WithActor("admin"))
		require.NoError(t, err)
		assert.Equal(t, []any{"admin"}, actors)
	})

	t.Run("ActorReference", func(t *testing.T) {
		s := blogStore(t)
		require.NoError(t, s.Register(&forge.Template{
			Kind:  "User",
			Name:  "admin",
			Attrs: forge.Attrs("email", "admin@example.com"),
		}))
		mem := forge.NewMemory(s.Provider())
		var blogActor any
		mem.RegisterKindFunc("Blog", func(ctx context.Context, attrs *forge.Resolved, opts *forge.CreateOptions) (any, error) {
			blogActor = opts.Actor
			return map[string]any{"id": int64(1)}, nil
		})
		e := forge.New(s, forge.WithStrategy(mem))

		entities, err := e.Run(ctx,
			[]forge.Target{forge.T("Blog", "main")},
			forge.WithActor(forge.NewRef("User", "admin")),
		)
		require.NoError(t, err)

		// The actor template was pulled into the run and created first; the
		// creation step observed its resolution handle.
		admin, ok := entities[forge.NewRef("User", "admin")].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "admin@example.com", admin["email"])
		require.NotNil(t, blogActor)
		assert.Equal(t, admin["id"], blogActor.(map[string]any)["id"])
	})
}

func TestEngineRunScenarios(t *testing.T) {
	s := blogStore(t)
	s.RegisterScenarios(
		&forge.Scenario{Name: "one", Overrides: []forge.ScenarioOverride{
			{Ref: forge.NewRef("Blog", "main"), Attrs: map[string]any{"name": "one"}},
		}},
		&forge.Scenario{Name: "two", Overrides: []forge.ScenarioOverride{
			{Ref: forge.NewRef("Blog", "main"), Attrs: map[string]any{"name": "two"}},
		}},
	)
	e := forge.New(s)

	t.Run("Concurrent", func(t *testing.T) {
		results, err := e.RunScenarios(context.Background(), []string{"one", "two"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		for name, entities := range results {
			blog := entities[forge.NewRef("Blog", "main")].(map[string]any)
			assert.Equal(t, name, blog["name"])
		}
	})

	t.Run("FirstErrorWins", func(t *testing.T) {
		_, err := e.RunScenarios(context.Background(), []string{"one", "missing"})
		require.Error(t, err)
		assert.True(t, forge.IsUnknownScenario(err))
	})
}

func TestEngineScenarioExtension(t *testing.T) {
	s := blogStore(t)
	s.RegisterScenarios(
		&forge.Scenario{
			Name: "base",
			Overrides: []forge.ScenarioOverride{
				{Ref: forge.NewRef("Post", "example_post"), Attrs: map[string]any{"title": "Base", "status": "published"}},
			},
		},
		&forge.Scenario{
			Name:    "extended",
			Extends: []string{"base"},
			Overrides: []forge.ScenarioOverride{
				{Ref: forge.NewRef("Post", "example_post"), Attrs: map[string]any{"title": "Extended"}},
			},
		},
	)
	e := forge.New(s)

	entities, err := e.RunScenario(context.Background(), "extended")
	require.NoError(t, err)

	post := entities[forge.NewRef("Post", "example_post")].(map[string]any)
	assert.Equal(t, "Extended", post["title"])
	assert.Equal(t, "published", post["status"])
	// The transitive blog dependency was created too.
	_, ok := entities[forge.NewRef("Blog", "main")]
	assert.True(t, ok)
}
