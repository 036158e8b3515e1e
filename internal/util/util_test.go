package util

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	valid := []string{"users", "_tmp", "Order_Items2", "a"}
	for _, s := range valid {
		assert.True(t, ValidIdentifier(s, MaxColumnNameLen), s)
	}

	invalid := []string{
		"",
		"1users",
		"users; DROP TABLE credentials",
		"users--",
		"name`",
		`name"`,
		"na me",
		"naïve",
		"users.id",
		strings.Repeat("a", MaxColumnNameLen+1),
	}
	for _, s := range invalid {
		assert.False(t, ValidIdentifier(s, MaxColumnNameLen), s)
	}
}

func TestMaxTableNameLenFitsMySQL(t *testing.T) {
	ns := NamespacePrefix + strings.Repeat("a", 32)
	require.True(t, ValidNamespace(ns))
	assert.Len(t, QualifiedTable(ns, strings.Repeat("t", MaxTableNameLen)), 64)
}

func TestValidNamespace(t *testing.T) {
	assert.True(t, ValidNamespace("ks_0123456789abcdef0123456789abcdef"))
	assert.False(t, ValidNamespace("ks_0123456789ABCDEF0123456789abcdef"))
	assert.False(t, ValidNamespace("ks_0123"))
	assert.False(t, ValidNamespace("ks_0123456789abcdef0123456789abcdef; --"))
	assert.False(t, ValidNamespace("xx_0123456789abcdef0123456789abcdef"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "ks!_ab!%c!!d", EscapeLike("ks_ab%c!d"))
	assert.Equal(t, "ks!_1234!_!_%", PrefixPattern("ks_1234__"))
}

func TestNewIDMonotonic(t *testing.T) {
	now := time.Now()
	a := NewID(now)
	b := NewID(now)
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}
