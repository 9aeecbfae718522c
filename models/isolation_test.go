package models

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestIsolationLevelString(t *testing.T) {
	assert.Equal(t, "read committed", ReadCommitted.String())
	assert.Equal(t, "serializable", Serializable.String())
	assert.Equal(t, "IsolationLevel(7)", IsolationLevel(7).String())
}
