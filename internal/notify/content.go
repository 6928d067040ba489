// internal/notify/content.go
package notify

import "fmt"

// reminderContent builds the notification title and body for a borrow
// due in daysUntilDue days (0, 1 or 3).
func reminderContent(bookTitle string, daysUntilDue int) (string, string) {
	switch daysUntilDue {
	case 0:
		return "Book due today!",
			fmt.Sprintf("%q is due back today. Please return it on time!", bookTitle)
	case 1:
		return "Return reminder",
			fmt.Sprintf("%q is due back tomorrow. Time to wrap up!", bookTitle)
	case 3:
		return "Return reminder",
			fmt.Sprintf("%q is due back in 3 days.", bookTitle)
	}
	return "Return reminder",
		fmt.Sprintf("%q is due back soon. Please return it on time!", bookTitle)
}
