// Package repository selects the JobRepository backend named by repository.type.
package repository

import (
	"go.uber.org/fx"

	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/repository/inmemory"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/repository/sql"
)

// Module returns the Fx module of the backend repoType.
// Unknown types fall back to the in-memory repository; config validation rejects them first.
func Module(repoType string) fx.Option {
	if repoType == config.RepositoryTypeSQL {
		return sql.Module
	}
	return inmemory.Module
}
