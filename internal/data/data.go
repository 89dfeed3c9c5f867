// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package data is the routing-layer collaborator of the gate: the generic
CRUD API over gated models.

For every request it builds a [principal.Principal] from the verified token
claims, resolves the endpoint descriptor for (role, path), constructs the
matching operation chain, performs it, and hands the resulting operation
descriptor to the record [Repository].

The package deliberately knows nothing about individual models: every model
the endpoint registry declares is served by the same four handlers.
*/
package data

import "time"

// Record is one stored document with its assigned identity.
type Record struct {
	ID    string         `json:"id"`
	Model string         `json:"model"`
	Doc   map[string]any `json:"doc"`

	CreatedAt time.Time `json:"-"`
}
