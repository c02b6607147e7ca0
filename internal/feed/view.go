package feed

import "github.com/vedran77/pulsefeed/internal/domain"

// Item is a message annotated for grouping consecutive messages of one author.
type Item struct {
	Message domain.Message
	// FollowUp is set when the previous message has the same author.
	FollowUp bool
	// Followed is set when the next message has the same author.
	Followed bool
}

func BuildView(messages []domain.Message) []Item {
	items := make([]Item, len(messages))
	for i := range messages {
		key := messages[i].AuthorKey()
		items[i].Message = messages[i]
		if i > 0 && messages[i-1].AuthorKey() == key {
			items[i].FollowUp = true
		}
		if i+1 < len(messages) && messages[i+1].AuthorKey() == key {
			items[i].Followed = true
		}
	}
	return items
}
