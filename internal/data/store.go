// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package data

import (
	"context"

	"github.com/taibuivan/torii/internal/gate"
)

// Repository executes normalized operation descriptors against the record
// store. The gate has already validated everything that arrives here.
type Repository interface {
	Create(context context.Context, descriptor *gate.Descriptor) (*Record, error)
	Read(context context.Context, descriptor *gate.Descriptor) ([]*Record, error)
	Update(context context.Context, descriptor *gate.Descriptor) (int64, error)
	Delete(context context.Context, descriptor *gate.Descriptor) (int64, error)
}
