package forge_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/forge"
)

func TestTemplateNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := forge.NewTemplateNotFoundError("Post", "draft", nil)
		assert.Equal(t, "forge: template Post.draft not found (no templates registered)", err.Error())

		known := []forge.Ref{forge.NewRef("Blog", "main"), forge.NewRef("Post", "example_post")}
		err = forge.NewTemplateNotFoundError("Post", "draft", known)
		assert.Equal(t, "forge: template Post.draft not found (known: Blog.main, Post.example_post)", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := forge.NewTemplateNotFoundError("Post", "draft", nil)
		assert.True(t, errors.Is(err, forge.ErrTemplateNotFound))
	})

	t.Run("IsTemplateNotFound", func(t *testing.T) {
		err := forge.NewTemplateNotFoundError("Post", "draft", nil)
		assert.True(t, forge.IsTemplateNotFound(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, forge.IsTemplateNotFound(wrapped))

		// Sentinel error
		assert.True(t, forge.IsTemplateNotFound(forge.ErrTemplateNotFound))

		// Non-matching error
		assert.False(t, forge.IsTemplateNotFound(errors.New("other error")))
		assert.False(t, forge.IsTemplateNotFound(nil))
	})

	t.Run("Accessors", func(t *testing.T) {
		known := []forge.Ref{forge.NewRef("Blog", "main")}
		err := forge.NewTemplateNotFoundError("Post", "draft", known)
		assert.Equal(t, "Post", err.Kind())
		assert.Equal(t, "draft", err.Name())
		assert.Equal(t, known, err.Known())
	})
}

func TestUnknownScenarioError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := forge.NewUnknownScenarioError("staging")
		assert.Equal(t, `forge: unknown scenario "staging"`, err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := forge.NewUnknownScenarioError("staging")
		assert.True(t, errors.Is(err, forge.ErrUnknownScenario))
	})

	t.Run("IsUnknownScenario", func(t *testing.T) {
		err := forge.NewUnknownScenarioError("staging")
		assert.True(t, forge.IsUnknownScenario(err))
		assert.True(t, forge.IsUnknownScenario(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, forge.IsUnknownScenario(errors.New("other error")))
		assert.False(t, forge.IsUnknownScenario(nil))
	})
}

func TestUnknownScenarioReferenceError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := forge.NewUnknownScenarioReferenceError("base", "Post", "missing")
		assert.Equal(t, `forge: scenario "base" references unknown template Post.missing`, err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		// A dangling scenario reference is a template-not-found condition.
		err := forge.NewUnknownScenarioReferenceError("base", "Post", "missing")
		assert.True(t, errors.Is(err, forge.ErrTemplateNotFound))
	})

	t.Run("Accessors", func(t *testing.T) {
		err := forge.NewUnknownScenarioReferenceError("base", "Post", "missing")
		assert.Equal(t, "base", err.Scenario())
		assert.Equal(t, "Post", err.Kind())
		assert.Equal(t, "missing", err.Name())
		assert.True(t, forge.IsUnknownScenarioReference(err))
		assert.False(t, forge.IsUnknownScenarioReference(nil))
	})
}

func TestCircularDependencyError(t *testing.T) {
	path := []forge.Ref{
		forge.NewRef("Post", "a"),
		forge.NewRef("Blog", "b"),
		forge.NewRef("Post", "a"),
	}

	t.Run("Error", func(t *testing.T) {
		err := forge.NewCircularDependencyError(path)
		assert.Equal(t, "forge: circular dependency: Post.a -> Blog.b -> Post.a", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := forge.NewCircularDependencyError(path)
		assert.True(t, errors.Is(err, forge.ErrCircularDependency))
	})

	t.Run("IsCircularDependency", func(t *testing.T) {
		err := forge.NewCircularDependencyError(path)
		assert.True(t, forge.IsCircularDependency(err))
		assert.True(t, forge.IsCircularDependency(fmt.Errorf("wrapper: %w", err)))
		assert.False(t, forge.IsCircularDependency(errors.New("other error")))
		assert.False(t, forge.IsCircularDependency(nil))
		assert.Equal(t, path, err.Path())
	})
}

func TestCircularExtensionError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := forge.NewCircularExtensionError([]string{"a", "b", "a"})
		assert.Equal(t, "forge: circular scenario extension: a -> b -> a", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := forge.NewCircularExtensionError([]string{"a", "a"})
		assert.True(t, errors.Is(err, forge.ErrCircularExtension))
	})

	t.Run("IsCircularExtension", func(t *testing.T) {
		err := forge.NewCircularExtensionError([]string{"a", "b", "a"})
		assert.True(t, forge.IsCircularExtension(err))
		assert.Equal(t, []string{"a", "b", "a"}, err.Path())
		assert.False(t, forge.IsCircularExtension(errors.New("other error")))
		assert.False(t, forge.IsCircularExtension(nil))
	})
}

func TestCreationError(t *testing.T) {
	cause := errors.New("constraint violation")

	t.Run("Error", func(t *testing.T) {
		err := forge.NewCreationError("Post", "draft", cause)
		assert.Equal(t, "forge: creating Post.draft: constraint violation", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		err := forge.NewCreationError("Post", "draft", cause)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, errors.Is(err, forge.ErrCreationFailed))
	})

	t.Run("IsCreationFailed", func(t *testing.T) {
		err := forge.NewCreationError("Post", "draft", cause)
		assert.True(t, forge.IsCreationFailed(err))
		assert.Equal(t, "Post", err.Kind())
		assert.Equal(t, "draft", err.Name())
		assert.False(t, forge.IsCreationFailed(cause))
		assert.False(t, forge.IsCreationFailed(nil))
	})
}

func TestInvalidCreateFuncError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := forge.NewInvalidCreateFuncError(`operation "make_admin" not registered`)
		assert.Equal(t, `forge: invalid create function: operation "make_admin" not registered`, err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := forge.NewInvalidCreateFuncError("nil function")
		assert.True(t, errors.Is(err, forge.ErrInvalidCreateFunc))
		assert.True(t, forge.IsInvalidCreateFunc(err))
		assert.Equal(t, "nil function", err.Signature())
		assert.False(t, forge.IsInvalidCreateFunc(nil))
	})
}
