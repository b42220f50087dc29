package message

import (
	"strings"
	"testing"
	"time"

	"github.com/broadsend/groupcast/internal/domain"
)

func TestRenderGroupBindings(t *testing.T) {
	r := NewRenderer()
	tmpl := domain.Template{ID: "t1", Title: "Promo", Text: "Hello {{ group.name }}!"}
	job := domain.Job{GroupID: "g1", GroupName: "Morning Deals"}

	got := r.Render(tmpl, job)
	if got != "Hello Morning Deals!" {
		t.Errorf("got %q", got)
	}
}

func TestRenderDefaultFilter(t *testing.T) {
	r := NewRenderer()
	tmpl := domain.Template{ID: "t1", Text: `Hi {{ group.name | default: "there" }}`}

	got := r.Render(tmpl, domain.Job{GroupName: ""})
	if got != "Hi there" {
		t.Errorf("got %q", got)
	}
}

func TestRenderToday(t *testing.T) {
	r := NewRenderer()
	tmpl := domain.Template{ID: "t1", Text: "Offer valid {{ today }}"}

	got := r.Render(tmpl, domain.Job{})
	want := "Offer valid " + time.Now().Format("2006-01-02")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderFallsBackOnParseError(t *testing.T) {
	r := NewRenderer()
	raw := "Broken {{ group.name"
	tmpl := domain.Template{ID: "t1", Text: raw}

	if got := r.Render(tmpl, domain.Job{GroupName: "X"}); got != raw {
		t.Errorf("got %q, want raw text fallback", got)
	}
}

func TestRenderCachesCompiledTemplates(t *testing.T) {
	r := NewRenderer()
	tmpl := domain.Template{ID: "t1", Text: "Hello {{ group.name | upcase }}"}

	first := r.Render(tmpl, domain.Job{GroupName: "alpha"})
	second := r.Render(tmpl, domain.Job{GroupName: "beta"})
	if !strings.Contains(first, "ALPHA") || !strings.Contains(second, "BETA") {
		t.Errorf("renders = %q, %q", first, second)
	}
}
