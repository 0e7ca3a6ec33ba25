// ABOUTME: Tests for the consistency policy defaults and overrides
// ABOUTME: Covers level parsing, per-operation defaults, and override validation

package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "one", want: One},
		{in: "QUORUM", want: Quorum},
		{in: " all ", want: All},
		{in: "local_quorum", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := Default()

	assert.Equal(t, All, p.Level(AccountReserveUsername))
	assert.Equal(t, All, p.Level(AccountConfirmID))
	assert.Equal(t, All, p.Level(AccountRepairID))
	assert.Equal(t, Quorum, p.Level(ChannelCreate))
	assert.Equal(t, Quorum, p.Level(MessageCreate))
	assert.Equal(t, One, p.Level(MessageAppendHistory))
	assert.Equal(t, One, p.Level(MessageHistory))
	assert.Equal(t, One, p.Level(AccountLookup))
	assert.Equal(t, One, p.Level(Operation("nope")))
}

func TestNewPolicy_Overrides(t *testing.T) {
	p, err := NewPolicy(map[string]string{
		"account.login":  "quorum",
		"message.create": "all",
	})
	require.NoError(t, err)

	assert.Equal(t, Quorum, p.Level(AccountLogin))
	assert.Equal(t, All, p.Level(MessageCreate))
	// untouched operations keep their defaults
	assert.Equal(t, All, p.Level(AccountReserveUsername))
}

func TestNewPolicy_RejectsUnknown(t *testing.T) {
	_, err := NewPolicy(map[string]string{"account.delete": "one"})
	assert.ErrorContains(t, err, "unknown operation")

	_, err = NewPolicy(map[string]string{"account.login": "most"})
	assert.ErrorContains(t, err, "unknown consistency level")
}

func TestOperationsSorted(t *testing.T) {
	ops := Operations()
	require.NotEmpty(t, ops)
	for i := 1; i < len(ops); i++ {
		assert.Less(t, string(ops[i-1]), string(ops[i]))
	}
}
