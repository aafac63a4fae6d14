package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsID(t *testing.T) {
	assert.True(t, IsID("3f6c1e2a-9b4d-4c7e-8a15-2d9e0f4b7c31"))
	assert.True(t, IsID("3F6C1E2A-9B4D-4C7E-8A15-2D9E0F4B7C31"))
	assert.False(t, IsID("not-a-uuid"))
	assert.False(t, IsID("3f6c1e2a9b4d4c7e8a152d9e0f4b7c31"))
	assert.False(t, IsID("{3f6c1e2a-9b4d-4c7e-8a15-2d9e0f4b7c31}"))
	assert.False(t, IsID(""))
}
