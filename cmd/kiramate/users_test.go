package main

import (
	"bytes"
	"strings"
	"testing"

	"kiramate-backend/internal/database/dbtest"
	"kiramate-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateUser(t *testing.T) {
	db := dbtest.Open(t)

	u, err := createUser(db, newUser{Username: " owner ", Email: "Owner@Example.com", Password: "secret123", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "owner", u.Username)
	assert.Equal(t, "owner@example.com", u.Email)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.True(t, u.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")))

	_, err = createUser(db, newUser{Username: "owner", Email: "other@example.com", Password: "secret123", Role: "admin"})
	assert.ErrorContains(t, err, "already exists")

	_, err = createUser(db, newUser{Username: "clerk", Email: "clerk@example.com", Password: "short", Role: "user"})
	assert.Error(t, err)

	_, err = createUser(db, newUser{Username: "clerk", Email: "clerk@example.com", Password: "secret123", Role: "root"})
	assert.Error(t, err)
}

func TestSetPassword(t *testing.T) {
	db := dbtest.Open(t)
	_, err := createUser(db, newUser{Username: "owner", Email: "owner@example.com", Password: "secret123", Role: "admin"})
	require.NoError(t, err)

	require.NoError(t, setPassword(db, "owner", "another123"))
	var u models.User
	require.NoError(t, db.Where("username = ?", "owner").First(&u).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("another123")))

	assert.ErrorContains(t, setPassword(db, "ghost", "another123"), "not found")
	assert.Error(t, setPassword(db, "owner", "short"))
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword("", strings.NewReader("from-stdin\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", pw)

	pw, err = readPassword("flagged", strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "flagged", pw)
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := hashPasswordCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"secret123"})
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret123")))

	cmd = hashPasswordCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"short"})
	assert.Error(t, cmd.Execute())
}
