package database

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-sim/backend/internal/authz"
)

func TestMigrationNamesOrdered(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_schema.sql", "002_seed_roles.sql"}, names)
}

func TestSchemaDeclaresFeedUniqueness(t *testing.T) {
	b, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	schema := string(b)
	for _, want := range []string{
		"UNIQUE (exhibit_id, user_id, article_id)",
		"UNIQUE (team_id, card_id)",
		"UNIQUE (user_id, team_id)",
	} {
		assert.True(t, strings.Contains(schema, want), "missing %s", want)
	}
}

func TestSeedMatchesWellKnownRoles(t *testing.T) {
	b, err := migrationsFS.ReadFile("migrations/002_seed_roles.sql")
	require.NoError(t, err)
	seed := string(b)
	for _, id := range []uuid.UUID{
		authz.SystemRoleAdministrator, authz.SystemRoleContentDeveloper,
		authz.CollectionRoleManager, authz.CollectionRoleMember, authz.CollectionRoleObserver,
		authz.ExhibitRoleManager, authz.ExhibitRoleMember, authz.ExhibitRoleObserver,
		authz.GroupRoleManager, authz.GroupRoleMember,
	} {
		assert.Contains(t, seed, id.String())
	}
}
