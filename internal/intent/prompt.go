package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/edgard/expensebot/internal/category"
	"github.com/edgard/expensebot/internal/localtime"
)

const promptTemplate = `You are an expense tracking assistant. Classify the user's message and extract structured data.

Today is %[1]s (%[2]s).

Message: %[3]q

Categories (use the exact spelling): %[4]s

Category hints:
%[5]s
Respond ONLY with a single JSON object in one of these shapes:

1. Recording an expense:
{"type": "expense", "amount": number, "category": "exact category name", "date": "YYYY-MM-DD" or null, "description": "brief description"}

2. Asking how much was spent over a period:
{"type": "spending_summary", "start": "YYYY-MM-DD", "end": "YYYY-MM-DD", "description": "human readable period", "showCategoryBreakdown": true, "category": "optional exact category name"}

3. Asking to see individual transactions:
{"type": "transaction_list", "start": "YYYY-MM-DD", "end": "YYYY-MM-DD", "description": "human readable period"}

4. Anything else (greetings, questions about the bot, unclear messages):
{"type": "conversation", "message": "short friendly reply"}

Rules:
- amount is a plain number without currency symbols or quotes.
- date is null when the message does not mention when the expense happened.
- Resolve relative dates ("yesterday", "last week", "this month") against today's date.
- Weeks start on Monday.

Examples:
- "spent 30 bucks on coffee this morning" → {"type": "expense", "amount": 30, "category": "Food & Drinks", "date": null, "description": "coffee"}
- "1500 flight ticket yesterday" → {"type": "expense", "amount": 1500, "category": "Travel", "date": "%[6]s", "description": "flight ticket"}
- "how much did I spend this month?" → {"type": "spending_summary", "start": "%[7]s", "end": "%[1]s", "description": "this month", "showCategoryBreakdown": true}
- "how much on food today" → {"type": "spending_summary", "start": "%[1]s", "end": "%[1]s", "description": "today", "showCategoryBreakdown": false, "category": "Food & Drinks"}
- "show my transactions from yesterday" → {"type": "transaction_list", "start": "%[6]s", "end": "%[6]s", "description": "yesterday"}
- "hi there" → {"type": "conversation", "message": "Hi! Tell me what you spent or ask how much you've spent."}`

// BuildPrompt renders the classification prompt for text as seen at now.
func BuildPrompt(text string, now time.Time, zone *localtime.Zone) string {
	local := zone.In(now)
	today := local.Format(localtime.DayLayout)
	yesterday := local.AddDate(0, 0, -1).Format(localtime.DayLayout)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location()).Format(localtime.DayLayout)

	return fmt.Sprintf(promptTemplate,
		today,
		local.Weekday().String(),
		text,
		strings.Join(category.Names(), ", "),
		category.Hints(),
		yesterday,
		monthStart,
	)
}
