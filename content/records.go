package content

import "time"

// Tip is one daily-health tip.
type Tip struct {
	ID       Number `json:"id"`
	Title    Text   `json:"titulo"`
	Body     Text   `json:"texto"`
	Category Text   `json:"categoria"`
	Order    Number `json:"ordem"`
	Active   Text   `json:"ativo"`
}

// Video is one entry of the video library.
type Video struct {
	ID          Number `json:"id"`
	Title       Text   `json:"titulo"`
	Description Text   `json:"descricao"`
	URL         Text   `json:"url"`
	Thumbnail   Text   `json:"thumbnail"`
	Date        Text   `json:"data"`
	Active      Text   `json:"ativo"`
}

// Rating holds store-rating prompt metadata for one platform.
type Rating struct {
	ID       Number `json:"id"`
	Platform Text   `json:"plataforma"`
	StoreURL Text   `json:"url"`
	Title    Text   `json:"titulo"`
	Message  Text   `json:"mensagem"`
	Active   Text   `json:"ativo"`
}

// ShareLink is the text and link offered when sharing the app.
type ShareLink struct {
	ID       Number `json:"id"`
	Channel  Text   `json:"canal"`
	URL      Text   `json:"url"`
	Message  Text   `json:"mensagem"`
	Active   Text   `json:"ativo"`
	Priority Number `json:"prioridade"`
}

// dateLayouts are tried in order when sorting by date.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ParseDate accepts the date formats the sheets have been seen to emit.
func ParseDate(s Text) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, string(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
