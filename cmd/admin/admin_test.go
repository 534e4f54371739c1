package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/auth"
	"github.com/tendant/simple-storefront/pkg/storefront/config"
)

func runAdmin(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupStores(t *testing.T) string {
	t.Helper()
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "admin.db")
	t.Setenv("DATABASE_URL", dbURL)
	t.Setenv("STORAGE_URL", "memory://")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ENVIRONMENT", "development")
	return dbURL
}

func TestUsersCommands(t *testing.T) {
	dbURL := setupStores(t)

	cfg, err := config.Load(config.WithDatabase(dbURL), config.WithMetrics(false))
	require.NoError(t, err)
	rt, err := cfg.Build(context.Background(), nil)
	require.NoError(t, err)
	_, err = rt.Service.EnsureUser(context.Background(), storefront.Identity{Subject: "siti", Email: "siti@example.com"})
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	out, err := runAdmin(t, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "siti@example.com")
	assert.Contains(t, out, "user")

	out, err = runAdmin(t, "users", "set-role", "siti", "karyawan")
	require.NoError(t, err)
	assert.Equal(t, "siti is now employee\n", out)

	_, err = runAdmin(t, "users", "set-role", "siti", "wizard")
	assert.Error(t, err)

	_, err = runAdmin(t, "users", "set-role", "nobody", "admin")
	assert.ErrorIs(t, err, storefront.ErrNotFound)
}

func TestListCommandsOnEmptyStores(t *testing.T) {
	setupStores(t)

	out, err := runAdmin(t, "assets", "list", "--latest")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ID"))

	out, err = runAdmin(t, "--json", "products", "list")
	require.NoError(t, err)
	var items []*storefront.CatalogItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Empty(t, items)

	out, err = runAdmin(t, "cart", "show", "siti")
	require.NoError(t, err)
	assert.Contains(t, out, "TOTAL")

	out, err = runAdmin(t, "ping")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestTokenCommand(t *testing.T) {
	setupStores(t)

	out, err := runAdmin(t, "token", "alice", "--role", "admin", "--email", "alice@example.com")
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier([]byte(config.DevelopmentSecret), nil)
	require.NoError(t, err)
	id, err := verifier.Verify(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Subject)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, storefront.RoleAdmin, id.Role)

	_, err = runAdmin(t, "token", "alice", "--role", "wizard")
	assert.Error(t, err)
}
