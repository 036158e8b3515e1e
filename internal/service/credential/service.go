// Package credential issues tenant credentials and resolves them to namespaces.
package credential

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmehdipour/linkdb/internal/apperr"
	"github.com/jmehdipour/linkdb/internal/db"
	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/jmehdipour/linkdb/internal/repository"
	"github.com/jmehdipour/linkdb/internal/util"
)

// issueAttempts bounds retries on the (astronomically unlikely) key collision.
const issueAttempts = 3

// Service owns the credential to namespace mapping.
type Service struct {
	store *db.Store
	creds repository.CredentialsRepository

	newKey func() (uuid.UUID, error)
	now    func() time.Time
}

// New constructs the credential service.
func New(store *db.Store, creds repository.CredentialsRepository) *Service {
	return &Service{
		store:  store,
		creds:  creds,
		newKey: uuid.NewRandom,
		now:    time.Now,
	}
}

// CanonicalKey reports whether key is a credential in canonical form:
// a lower-case 8-4-4-4-12 UUID.
func CanonicalKey(key string) bool {
	if len(key) != 36 {
		return false
	}
	u, err := uuid.Parse(key)
	if err != nil {
		return false
	}
	return u.String() == key
}

// NamespaceFor derives the namespace of a canonical credential. Dropping the
// hyphens of a fixed-layout UUID is injective, and the result contains only
// lower-case hex digits after the prefix.
func NamespaceFor(key string) (string, error) {
	if !CanonicalKey(key) {
		return "", apperr.New(apperr.EUnauthorized, "malformed api key")
	}
	return util.NamespacePrefix + strings.ReplaceAll(key, "-", ""), nil
}

// Issue generates a random credential, persists its record and returns it.
func (s *Service) Issue(ctx context.Context) (model.Credential, error) {
	const op = "credential.Issue"

	for attempt := 0; attempt < issueAttempts; attempt++ {
		u, err := s.newKey()
		if err != nil {
			return model.Credential{}, apperr.Wrap(err, apperr.EInternal, op, "")
		}
		key := u.String()
		ns, err := NamespaceFor(key)
		if err != nil {
			return model.Credential{}, apperr.WithOp(err, op)
		}

		c := model.Credential{APIKey: key, Namespace: ns, CreatedAt: s.now().UTC()}

		qctx, cancel := s.store.Bounded(ctx)
		err = s.creds.Insert(qctx, c)
		cancel()
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return model.Credential{}, db.Translate(err, op)
		}
		return c, nil
	}
	return model.Credential{}, apperr.New(apperr.EInternal, "could not generate a unique api key")
}

// Resolve looks up the namespace of a presented credential. Empty, malformed
// and unissued credentials are rejected with EUnauthorized; a stored namespace
// that is not the derived, identifier-safe one fails with EInvalidCredential.
func (s *Service) Resolve(ctx context.Context, key string) (string, error) {
	const op = "credential.Resolve"

	if key == "" {
		return "", apperr.Wrap(nil, apperr.EUnauthorized, op, "missing api key")
	}
	want, err := NamespaceFor(key)
	if err != nil {
		return "", apperr.WithOp(err, op)
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	c, err := s.creds.GetByAPIKey(qctx, key)
	if err != nil {
		return "", db.Translate(err, op)
	}
	if c == nil {
		return "", apperr.Wrap(nil, apperr.EUnauthorized, op, "invalid api key")
	}
	if c.Namespace != want || !util.ValidNamespace(c.Namespace) {
		return "", apperr.Wrap(nil, apperr.EInvalidCredential, op, "credential maps to an invalid namespace")
	}
	return c.Namespace, nil
}

// Revoke deletes a credential record so later resolution fails. Tables owned
// by the namespace are left in place. It reports whether the key existed.
func (s *Service) Revoke(ctx context.Context, key string) (bool, error) {
	const op = "credential.Revoke"

	if !CanonicalKey(key) {
		return false, apperr.Wrap(nil, apperr.EUnauthorized, op, "malformed api key")
	}

	qctx, cancel := s.store.Bounded(ctx)
	defer cancel()

	ok, err := s.creds.Delete(qctx, key)
	if err != nil {
		return false, db.Translate(err, op)
	}
	return ok, nil
}
