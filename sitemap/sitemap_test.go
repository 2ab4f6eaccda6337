package sitemap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/will-x86/sitemapper"
)

func TestSitemapRecordsAreACopy(t *testing.T) {
	s := New()
	s.Add(sitemapper.Tag{Name: "a", URL: "https://example.com"})

	records := s.Records()
	records[0].URL = "https://mutated.example"

	if got := s.Records()[0].URL; got != "https://example.com" {
		t.Errorf("internal record URL = %s, want unchanged https://example.com", got)
	}
}

func TestSitemapConcurrentAdd(t *testing.T) {
	const (
		writers       = 8
		tagsPerWriter = 100
	)

	s := New()
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < tagsPerWriter; i++ {
				s.Add(sitemapper.Tag{
					Name: "a",
					URL:  fmt.Sprintf("https://example.com/w%d/p%d", w, i),
				})
			}
		}()
	}
	wg.Wait()

	if got := s.Len(); got != writers*tagsPerWriter {
		t.Errorf("Len() = %d, want %d", got, writers*tagsPerWriter)
	}
}

func TestWriteYAML(t *testing.T) {
	s := New()
	s.Add(sitemapper.Tag{
		Name:  "a",
		URL:   "https://www.iana.org/domains/example",
		Attrs: map[string]string{"href": "https://www.iana.org/domains/example"},
	})

	var buf bytes.Buffer
	if err := s.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML() error: %v", err)
	}

	want := `- !Tag
  name: a
  url: https://www.iana.org/domains/example
  attrs:
    href: https://www.iana.org/domains/example
`
	if buf.String() != want {
		t.Errorf("WriteYAML() =\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteYAMLMultipleRecords(t *testing.T) {
	s := New()
	s.Add(
		sitemapper.Tag{
			Name:  "img",
			URL:   "https://this.example/image-123.jpeg",
			Attrs: map[string]string{"src": "image-123.jpeg"},
		},
		sitemapper.Tag{
			Name:  "a",
			URL:   "https://this.example/page2",
			Attrs: map[string]string{"href": "https://this.example/page2"},
		},
	)

	var buf bytes.Buffer
	if err := s.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML() error: %v", err)
	}

	want := `- !Tag
  name: img
  url: https://this.example/image-123.jpeg
  attrs:
    src: image-123.jpeg
- !Tag
  name: a
  url: https://this.example/page2
  attrs:
    href: https://this.example/page2
`
	if buf.String() != want {
		t.Errorf("WriteYAML() =\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteYAMLEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := New().WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML() error: %v", err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("WriteYAML() = %q, want an empty list", buf.String())
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	s := New()
	want := []sitemapper.Tag{
		{
			Name:  "a",
			URL:   "https://example.com/about",
			Attrs: map[string]string{"href": "/about", "class": "nav"},
		},
	}
	s.Add(want...)

	var buf bytes.Buffer
	if err := s.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}

	var got []sitemapper.Tag
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
