// Package sources lists the data-source plugins compiled into bio2bel.
package sources

import (
	"github.com/danmuck/bio2bel/internal/plugins"
	"github.com/danmuck/bio2bel/internal/sources/circrnadisease"
	"github.com/danmuck/bio2bel/internal/sources/hmdd"
)

// Builtin returns the catalog in registration order.
func Builtin() plugins.Catalog {
	return plugins.Catalog{
		{ID: hmdd.Name, Factory: hmdd.Plugin},
		{ID: circrnadisease.Name, Factory: circrnadisease.Plugin},
	}
}
