package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-events/attendance-cli/internal/model"
)

func TestTokenValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"logan", "logan"},
		{" Logan ", "logan"},
		{"https://lu.ma/e/abc?tk=Logan", "abc"},
		{"lu.ma/event/Logan", "logan"},
		{"insta?utm_source=bio", "insta"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TokenValue(tt.in), "TokenValue(%q)", tt.in)
	}

	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, TokenValue(string(long)), 100)
}

func TestTokenCategory(t *testing.T) {
	for _, generic := range []string{
		"default", "emailreferral", "email_first_button", "email_second_button",
		"email", "txt", "insta", "maillist", "lastname", "[name]",
	} {
		assert.Equal(t, model.TokenMailingList, TokenCategory(generic), "TokenCategory(%q)", generic)
	}
	assert.Equal(t, model.TokenPersonalOutreach, TokenCategory("logan"))
	assert.Equal(t, model.TokenPersonalOutreach, TokenCategory("jane doe"))
}

func TestResolveToken(t *testing.T) {
	roster := []model.Person{
		{ID: 1, FirstName: "Logan", LastName: "Goodman"},
		{ID: 2, FirstName: "Jane", LastName: "Doe"},
		{ID: 3, FirstName: "Jane", LastName: "Smith"},
	}
	m := New(newTestStore(t), 0.80)

	t.Run("single word exact", func(t *testing.T) {
		p := m.ResolveToken("logan", roster)
		require.NotNil(t, p)
		assert.Equal(t, int64(1), p.ID)
	})

	t.Run("full name disambiguates", func(t *testing.T) {
		p := m.ResolveToken("jane smith", roster)
		require.NotNil(t, p)
		assert.Equal(t, int64(3), p.ID)
	})

	t.Run("ambiguous first name unresolved", func(t *testing.T) {
		assert.Nil(t, m.ResolveToken("jane", roster))
	})

	t.Run("fuzzy first name", func(t *testing.T) {
		p := m.ResolveToken("loagan", roster)
		require.NotNil(t, p)
		assert.Equal(t, int64(1), p.ID)
	})

	t.Run("separator-joined full name", func(t *testing.T) {
		p := m.ResolveToken("jane_smith", roster)
		require.NotNil(t, p)
		assert.Equal(t, int64(3), p.ID)

		p = m.ResolveToken("jane-smith", roster)
		require.NotNil(t, p)
		assert.Equal(t, int64(3), p.ID)
	})

	t.Run("generic codes never resolve", func(t *testing.T) {
		assert.Nil(t, m.ResolveToken("default", roster))
		assert.Nil(t, m.ResolveToken("maillist", roster))
		assert.Nil(t, m.ResolveToken("email_first_button", roster))
	})

	t.Run("unknown name unresolved", func(t *testing.T) {
		assert.Nil(t, m.ResolveToken("zzyzx", roster))
	})
}
