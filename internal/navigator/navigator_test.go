package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taxlien-works/harvest/internal/config"
	"github.com/taxlien-works/harvest/internal/errs"
	"github.com/taxlien-works/harvest/internal/retry"
)

func testNav() *Navigator {
	return &Navigator{
		cfg:  &config.Config{BaseURL: "https://search.gsccca.org", NavTimeout: time.Second},
		seen: make(map[string]bool),
	}
}

func TestDetailURLs_ResolvesAndUnescapes(t *testing.T) {
	page := `<html><body>
<a href="javascript:fnSubmitThisForm('liendetails.asp?id=1&amp;key=2');">row 1</a>
<a href="javascript:fnSubmitThisForm('liendetails.asp?id=3&amp;key=4');">row 2</a>
<a href="javascript:fnSubmitThisForm('liendetails.asp?id=1&amp;key=2');">row 1 again</a>
</body></html>`

	urls := testNav().detailURLs(page)
	if len(urls) != 2 {
		t.Fatalf("got %d urls, want 2 after dedupe", len(urls))
	}
	want := "https://search.gsccca.org/Lien/liendetails.asp?id=1&key=2"
	if urls[0] != want {
		t.Errorf("urls[0] = %q, want %q", urls[0], want)
	}
}

func TestDetailURLs_NoLinks(t *testing.T) {
	if urls := testNav().detailURLs("<html><body>nothing here</body></html>"); urls != nil {
		t.Errorf("got %v, want nil", urls)
	}
}

// A browser tab that cannot be evaluated against must surface as a
// navigation failure, never as end-of-results: mistaking a stalled tab for
// exhausted pagination would flush a truncated export marked completed.
func TestNextPage_LinkCheckFailureIsNotEndOfResults(t *testing.T) {
	n := testNav()
	n.browser = &Browser{ctx: context.Background()}
	n.retry = retry.Config{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
	// Exhausted cursor forces the next-page advance path.
	n.rowIndex, n.rowCount = 1, 1

	_, err := n.NextPage(context.Background())
	if err == nil {
		t.Fatal("NextPage returned nil error on an unusable tab")
	}
	if errors.Is(err, ErrEndOfResults) {
		t.Fatal("link check failure reported as end of results")
	}
	if kind := errs.KindOf(err); kind != errs.KindNavigationFailed {
		t.Errorf("error kind = %v, want %v", kind, errs.KindNavigationFailed)
	}
}

func TestMarkSeen_RepeatedPageStopsPagination(t *testing.T) {
	n := testNav()
	first := signature([]string{"u1", "u2"})
	if !n.markSeen(first) {
		t.Fatal("first page rejected")
	}
	// Same link set in a different order is the same page re-served.
	if n.markSeen(signature([]string{"u2", "u1"})) {
		t.Error("re-served page accepted")
	}
	if !n.markSeen(signature([]string{"u3"})) {
		t.Error("new page rejected")
	}
}

func TestSignature_OrderIndependent(t *testing.T) {
	a := signature([]string{"u1", "u2"})
	b := signature([]string{"u2", "u1"})
	if a != b {
		t.Error("signature depends on link order")
	}
	if a == signature([]string{"u1", "u3"}) {
		t.Error("different link sets share a signature")
	}
}
