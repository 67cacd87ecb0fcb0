package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoCIsGenerated(t *testing.T) {
	assert.True(t, (&PoC{Status: PoCStatusGenerated}).IsGenerated())
	assert.False(t, (&PoC{Status: PoCStatusFallback}).IsGenerated())
}

func TestPoCSetDuration(t *testing.T) {
	p := &PoC{}
	p.SetDuration(1500*time.Millisecond + 300*time.Microsecond)
	assert.Equal(t, "1.5s", p.Duration)
}
