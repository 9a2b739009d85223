package browser

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestIsXPath(t *testing.T) {
	testCases := []struct {
		selector string
		expected bool
	}{
		{`//*[@id="surveys"]/div[3]/h2`, true},
		{`./div[1]/a`, true},
		{`(//table//tr)[2]`, true},
		{`td:nth-child(1)`, false},
		{`#primary ul > li`, false},
	}

	for _, tc := range testCases {
		t.Run(tc.selector, func(t *testing.T) {
			assert.Equal(t, tc.expected, isXPath(tc.selector))
		})
	}
}

func TestHasVerb(t *testing.T) {
	assert.True(t, hasVerb("https://databank.worldbank.org/databases/page/%d"))
	assert.False(t, hasVerb("https://open.africa/dataset/?sort=score+desc%%2C+metadata_modified"))
	assert.True(t, hasVerb("https://open.africa/dataset/?sort=score%%2C&page=%d"))
	assert.False(t, hasVerb("https://data.unwomen.org/countries"))
}

func TestNextButton(t *testing.T) {
	next := NextButton("button.next")
	assert.Equal(t, "button.next", next(1))
	assert.Equal(t, "button.next", next(40))
}

func TestSettleLogsUnstablePage(t *testing.T) {
	var buf bytes.Buffer
	s := &Session{log: zerolog.New(&buf).Level(zerolog.DebugLevel)}

	s.settle("a.next", func() error { return nil })
	assert.Empty(t, buf.String())

	s.settle("a.next", func() error { return context.DeadlineExceeded })
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"selector":"a.next"`)
	assert.Contains(t, buf.String(), "page did not settle after click")
}
