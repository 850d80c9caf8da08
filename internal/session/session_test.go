package session

import (
	"testing"

	"fieldreport/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSession_Lifecycle(t *testing.T) {
	s := New()
	assert.False(t, s.IsAuthenticated())
	assert.Zero(t, s.UserID())
	assert.Nil(t, s.User())
	assert.Equal(t, "User", s.FullName())

	name := "Alice A"
	s.SignIn(&models.User{ID: 3, Username: "alice", FullName: &name})
	assert.True(t, s.IsAuthenticated())
	assert.EqualValues(t, 3, s.UserID())
	assert.Equal(t, "Alice A", s.FullName())
	assert.Equal(t, "alice", s.User().Username)

	prev, ok := s.SignOut()
	assert.True(t, ok)
	assert.Equal(t, "alice", prev.Username)
	assert.False(t, s.IsAuthenticated())

	_, ok = s.SignOut()
	assert.False(t, ok)
}

func TestSession_UserReturnsCopy(t *testing.T) {
	s := New()
	s.SignIn(&models.User{ID: 1, Username: "alice"})

	u := s.User()
	u.Username = "mallory"

	assert.Equal(t, "alice", s.User().Username)
}
