// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squadz Contributors

package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadz/squadz/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	steps          int
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	forced         int
	closeSourceErr error
	closeDbErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(n int) error            { m.steps = n; return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(v int) error            { m.forced = v; return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/squadz")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgres://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("pgx5://u@h/db"))
}

func TestMigrator_Up(t *testing.T) {
	t.Run("no change is success", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{upErr: migrate.ErrNoChange}}
		require.NoError(t, m.Up())
	})

	t.Run("failure carries code", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{upErr: errors.New("syntax error")}}
		err := m.Up()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	})
}

func TestMigrator_Down(t *testing.T) {
	m := &Migrator{m: &mockMigrate{downErr: migrate.ErrNoChange}}
	require.NoError(t, m.Down())

	m = &Migrator{m: &mockMigrate{downErr: errors.New("locked")}}
	errutil.AssertErrorCode(t, m.Down(), "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Steps(t *testing.T) {
	mm := &mockMigrate{}
	m := &Migrator{m: mm}
	require.NoError(t, m.Steps(-1))
	assert.Equal(t, -1, mm.steps)

	mm.stepsErr = errors.New("file does not exist")
	errutil.AssertErrorCode(t, m.Steps(3), "MIGRATION_STEPS_FAILED")
}

func TestMigrator_Version(t *testing.T) {
	t.Run("nil version is zero", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), v)
		assert.False(t, dirty)
	})

	t.Run("reports dirty", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 2, dirty: true}}
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("conn reset")}}
		_, _, err := m.Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	mm := &mockMigrate{}
	m := &Migrator{m: mm}

	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")
	require.NoError(t, m.Force(1))
	assert.Equal(t, 1, mm.forced)

	mm.forceErr = errors.New("boom")
	errutil.AssertErrorCode(t, m.Force(1), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Status(t *testing.T) {
	m := &Migrator{m: &mockMigrate{versionVal: 1}}
	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), st.Version)
	assert.Equal(t, []uint{1}, st.Applied)
	assert.Equal(t, []uint{2}, st.Pending)

	m = &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
	st, err = m.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Applied)
	assert.Equal(t, []uint{1, 2}, st.Pending)
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		srcErr    error
		dbErr     error
		wantErr   bool
		component string
	}{
		{name: "clean"},
		{name: "source", srcErr: errors.New("src"), wantErr: true, component: "source"},
		{name: "database", dbErr: errors.New("db"), wantErr: true, component: "database"},
		{name: "both", srcErr: errors.New("src"), dbErr: errors.New("db"), wantErr: true, component: "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &mockMigrate{closeSourceErr: tt.srcErr, closeDbErr: tt.dbErr}}
			err := m.Close()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		assert.Regexp(t, pattern, entry.Name())
	}

	versions, err := MigrationVersions()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, versions)

	name, err := MigrationName(2)
	require.NoError(t, err)
	assert.Equal(t, "000002_create_refresh_sessions", name)

	name, err = MigrationName(99)
	require.NoError(t, err)
	assert.Empty(t, name)
}
