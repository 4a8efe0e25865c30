package warden

import "context"

// Gate is the per-request capability check every protected operation passes
// through. It is a pure predicate: no persistence side effects, and the
// permission set is resolved fresh on every call so role edits take effect
// immediately.
type Gate struct {
	resolver *Resolver
	logger   Logger
}

// NewGate returns a Gate over the given resolver.
func NewGate(resolver *Resolver) *Gate {
	return &Gate{resolver: resolver, logger: defLogger{}}
}

// WithLogger overrides the gate logger.
func (g *Gate) WithLogger(logger Logger) *Gate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Require passes superusers unconditionally; everyone else needs the named
// permission in their freshly resolved set. Denials come back as ErrForbidden
// with the missing permission in the metadata.
func (g *Gate) Require(ctx context.Context, account *Account, permission string) error {
	if account.IsSuperuser {
		return nil
	}

	names, err := g.resolver.Resolve(ctx, account)
	if err != nil {
		return err
	}

	for _, name := range names {
		if name == permission {
			return nil
		}
	}

	g.logger.Debug("gate denied account=%s permission=%s", account.ID, permission)
	return NewForbiddenError(permission)
}
