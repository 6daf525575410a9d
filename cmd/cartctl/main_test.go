package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fjod/marketcart/internal/checkout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t       *testing.T
	db      string
	catalog string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	return &cli{
		t:       t,
		db:      filepath.Join(dir, "state.db"),
		catalog: filepath.Join(dir, "catalog.db"),
	}
}

func (c *cli) run(profile string, args ...string) (string, string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--db", c.db, "--catalog", c.catalog, "--profile", profile}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestCLI_CartPersistsAcrossRuns(t *testing.T) {
	c := newCLI(t)

	_, stderr, err := c.run("alice", "add", "prod-1002")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Added to cart: Handmade Ceramic Mug has been added to your cart")

	_, _, err = c.run("alice", "qty", "prod-1002", "2")
	require.NoError(t, err)

	stdout, _, err := c.run("alice", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "prod-1002")
	assert.Contains(t, stdout, "29.00")

	stdout, _, err = c.run("bob", "list")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", stdout)
}

func TestCLI_RemoveAndClear(t *testing.T) {
	c := newCLI(t)
	_, _, err := c.run("p", "add", "prod-1001")
	require.NoError(t, err)
	_, _, err = c.run("p", "add", "prod-1003")
	require.NoError(t, err)

	_, stderr, err := c.run("p", "remove", "prod-1001")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Removed from cart")

	_, _, err = c.run("p", "clear")
	require.NoError(t, err)

	stdout, _, err := c.run("p", "list")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", stdout)
}

func TestCLI_Wishlist(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("p", "wish", "add", "prod-1004")
	require.NoError(t, err)

	stdout, _, err := c.run("p", "wish", "has", "prod-1004")
	require.NoError(t, err)
	assert.Equal(t, "true\n", stdout)

	stdout, _, err = c.run("p", "wish", "list")
	require.NoError(t, err)
	assert.Equal(t, "prod-1004\n", stdout)

	_, _, err = c.run("p", "wish", "remove", "prod-1004")
	require.NoError(t, err)

	stdout, _, err = c.run("p", "wish", "has", "prod-1004")
	require.NoError(t, err)
	assert.Equal(t, "false\n", stdout)
}

func TestCLI_Checkout(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("p", "checkout", "summary")
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, _, err = c.run("p", "add", "prod-1003")
	require.NoError(t, err)

	stdout, _, err := c.run("p", "checkout", "share", "TX7")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Order Total: $35.00")
	assert.Contains(t, stdout, "https://wa.me/?text=")

	_, stderr, err := c.run("p", "checkout", "complete")
	assert.ErrorIs(t, err, checkout.ErrTransactionIDRequired)
	assert.Contains(t, stderr, "! Transaction ID required")

	stdout, _, err = c.run("p", "checkout", "complete", "TX7")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(stdout))

	stdout, _, err = c.run("p", "list")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", stdout)
}

func TestCLI_Errors(t *testing.T) {
	c := newCLI(t)

	_, _, err := c.run("p", "add")
	assert.ErrorIs(t, err, errUsage)

	_, _, err = c.run("p", "bogus")
	assert.ErrorIs(t, err, errUsage)

	_, _, err = c.run("p", "qty", "prod-1001", "many")
	assert.ErrorContains(t, err, "invalid quantity")

	_, _, err = c.run("p", "add", "prod-1006")
	assert.ErrorContains(t, err, "inactive")
}

func TestCLI_Reset(t *testing.T) {
	c := newCLI(t)
	_, _, err := c.run("p", "add", "prod-1001")
	require.NoError(t, err)
	_, _, err = c.run("p", "wish", "add", "prod-1002")
	require.NoError(t, err)

	_, _, err = c.run("p", "reset")
	require.NoError(t, err)

	stdout, _, err := c.run("p", "list")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", stdout)

	stdout, _, err = c.run("p", "wish", "list")
	require.NoError(t, err)
	assert.Empty(t, stdout)
}
