package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReminderContent(t *testing.T) {
	title, body := reminderContent("The Go Programming Language", 0)
	assert.Equal(t, "Book due today!", title)
	assert.Contains(t, body, "The Go Programming Language")
	assert.Contains(t, body, "today")

	title, body = reminderContent("Dune", 1)
	assert.Equal(t, "Return reminder", title)
	assert.Contains(t, body, "tomorrow")

	title, body = reminderContent("Dune", 3)
	assert.Equal(t, "Return reminder", title)
	assert.Contains(t, body, "3 days")

	// Unexpected marks still produce a usable reminder.
	title, body = reminderContent("Dune", 2)
	assert.Equal(t, "Return reminder", title)
	assert.Contains(t, body, "Dune")
}
