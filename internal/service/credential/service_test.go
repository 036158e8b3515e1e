package credential

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/db/dbtest"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store := dbtest.NewStore(t)
	return New(store, repository.NewCredentialsRepository(store.DB, db.IsDuplicateKey))
}

func TestIssueYieldsDistinctNamespaces(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	const n = 200
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		c, err := svc.Issue(ctx)
		require.NoError(t, err)
		assert.True(t, CanonicalKey(c.APIKey))
		assert.True(t, util.ValidNamespace(c.Namespace), c.Namespace)

		_, dup := seen[c.Namespace]
		require.False(t, dup, "namespace issued twice: %s", c.Namespace)
		seen[c.Namespace] = struct{}{}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	c, err := svc.Issue(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ns, err := svc.Resolve(ctx, c.APIKey)
		require.NoError(t, err)
		assert.Equal(t, c.Namespace, ns)
	}
}

func TestResolveRejects(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	cases := map[string]string{
		"empty":      "",
		"unissued":   uuid.NewString(),
		"upper case": "0F8FAD5B-D9CB-469F-A165-70867728950E",
		"braced":     "{0f8fad5b-d9cb-469f-a165-70867728950e}",
		"injection":  "x'; DROP TABLE credentials; --",
		"no hyphens": "0f8fad5bd9cb469fa16570867728950e",
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Resolve(ctx, key)
			require.Error(t, err)
			assert.Equal(t, apperr.EUnauthorized, apperr.ErrorCode(err))
		})
	}
}

func TestResolveRejectsTamperedNamespace(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	repo := repository.NewCredentialsRepository(store.DB, db.IsDuplicateKey)
	svc := New(store, repo)

	key := uuid.NewString()
	require.NoError(t, repo.Insert(ctx, model.Credential{APIKey: key, Namespace: "ks_x; DROP TABLE t"}))

	_, err := svc.Resolve(ctx, key)
	assert.Equal(t, apperr.EInvalidCredential, apperr.ErrorCode(err))
}

func TestIssueRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	first, err := svc.Issue(ctx)
	require.NoError(t, err)

	fixed := uuid.MustParse(first.APIKey)
	calls := 0
	svc.newKey = func() (uuid.UUID, error) {
		calls++
		if calls == 1 {
			return fixed, nil
		}
		return uuid.NewRandom()
	}

	second, err := svc.Issue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NotEqual(t, first.APIKey, second.APIKey)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	c, err := svc.Issue(ctx)
	require.NoError(t, err)

	ok, err := svc.Revoke(ctx, c.APIKey)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Resolve(ctx, c.APIKey)
	assert.Equal(t, apperr.EUnauthorized, apperr.ErrorCode(err))

	ok, err = svc.Revoke(ctx, c.APIKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNamespaceFor(t *testing.T) {
	ns, err := NamespaceFor("0f8fad5b-d9cb-469f-a165-70867728950e")
	require.NoError(t, err)
	assert.Equal(t, "ks_0f8fad5bd9cb469fa16570867728950e", ns)
	assert.Len(t, ns, util.NamespaceLen)

	_, err = NamespaceFor("not-a-key")
	assert.Equal(t, apperr.EUnauthorized, apperr.ErrorCode(err))
}
