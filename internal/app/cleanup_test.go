package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanupStack_RunsInReverseOrder(t *testing.T) {
	var order []string
	var cleanup cleanupStack

	cleanup.push(func() { order = append(order, "db") })
	cleanup.push(func() { order = append(order, "redis") })

	cleanup.run()

	assert.Equal(t, []string{"redis", "db"}, order)
}

func TestCleanupStack_EmptyIsNoOp(t *testing.T) {
	var cleanup cleanupStack
	cleanup.run()
}
