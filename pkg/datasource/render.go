package datasource

import (
	"strings"
	"time"

	"github.com/Sternrassler/tweet-datasource/pkg/collector"
)

// TimestampLayout renders item creation times.
const TimestampLayout = time.RubyDate

// Render formats items one per line as "<timestamp> : <author> : <text>".
// Every line, including the last, ends with a newline. Items whose timestamp
// could not be parsed show the provider's raw value instead.
func Render(items []collector.Item) string {
	var b strings.Builder
	for _, item := range items {
		if item.CreatedAt.IsZero() && item.RawCreatedAt != "" {
			b.WriteString(item.RawCreatedAt)
		} else {
			b.WriteString(item.CreatedAt.Format(TimestampLayout))
		}
		b.WriteString(" : ")
		b.WriteString(item.Author)
		b.WriteString(" : ")
		b.WriteString(item.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
