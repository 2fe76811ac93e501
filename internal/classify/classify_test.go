package classify

import (
	"testing"

	"github.com/kmayer/taskflow/internal/model"
	"github.com/kmayer/taskflow/internal/rules"
)

func TestIsMarketing(t *testing.T) {
	filters := rules.DefaultMarketingFilters()

	phrase, ok := IsMarketing(filters, "50% off!", "unsubscribe now", "deals@shop.com")
	if !ok {
		t.Fatal("expected marketing match")
	}
	if phrase != "unsubscribe" {
		t.Errorf("phrase = %q, want %q", phrase, "unsubscribe")
	}

	if _, ok := IsMarketing(filters, "Quote request", "please send pricing", "jane@acme.com"); ok {
		t.Error("expected no marketing match")
	}
}

func TestIsMarketingSubstringQuirk(t *testing.T) {
	// Filters match inside unrelated words: "discount" inside
	// "discounted" still counts.
	phrase, ok := IsMarketing([]string{"discount"}, "Deeply discounted parts", "", "jane@acme.com")
	if !ok || phrase != "discount" {
		t.Errorf("got (%q, %v), want (%q, true)", phrase, ok, "discount")
	}
}

func TestIsMarketingMatchesSenderHeader(t *testing.T) {
	phrase, ok := IsMarketing(rules.DefaultMarketingFilters(),
		"Your order", "details attached", "Shop <noreply@shop.com>")
	if !ok || phrase != "noreply" {
		t.Errorf("got (%q, %v), want (%q, true)", phrase, ok, "noreply")
	}
}

func TestClassifyTrigger(t *testing.T) {
	triggers := rules.DefaultTriggers()

	category, word, ok := ClassifyTrigger(triggers, "Need a quote for parts", "please send pricing")
	if !ok {
		t.Fatal("expected trigger match")
	}
	if category != "quotes" || word != "quote" {
		t.Errorf("got (%q, %q), want (quotes, quote)", category, word)
	}
}

func TestClassifyTriggerCategoryOrder(t *testing.T) {
	triggers := []rules.Category{
		{Name: "second", Words: []string{"beta"}},
		{Name: "first", Words: []string{"alpha"}},
	}

	// Both words appear; the configured category order decides.
	category, word, ok := ClassifyTrigger(triggers, "alpha beta", "")
	if !ok || category != "second" || word != "beta" {
		t.Errorf("got (%q, %q, %v), want (second, beta, true)", category, word, ok)
	}
}

func TestClassifyTriggerNoMatch(t *testing.T) {
	if _, _, ok := ClassifyTrigger(rules.DefaultTriggers(), "Hello", "just saying hi"); ok {
		t.Error("expected no trigger match")
	}
}

func TestExtractReferenceNumbers(t *testing.T) {
	refs := ExtractReferenceNumbers("RE: PO#12345 confirmation", "")
	if refs.PONumber != "12345" {
		t.Errorf("PONumber = %q, want %q", refs.PONumber, "12345")
	}
	if refs.SONumber != "" {
		t.Errorf("SONumber = %q, want empty", refs.SONumber)
	}
	if refs.QuoteNumber != "" {
		t.Errorf("QuoteNumber = %q, want empty", refs.QuoteNumber)
	}
}

func TestExtractReferenceNumbersAllFields(t *testing.T) {
	refs := ExtractReferenceNumbers(
		"Order update",
		"Your PO 9912-A maps to SO: 4433 under Quote#77",
	)
	if refs.PONumber != "9912-A" {
		t.Errorf("PONumber = %q, want %q", refs.PONumber, "9912-A")
	}
	if refs.SONumber != "4433" {
		t.Errorf("SONumber = %q, want %q", refs.SONumber, "4433")
	}
	if refs.QuoteNumber != "77" {
		t.Errorf("QuoteNumber = %q, want %q", refs.QuoteNumber, "77")
	}
}

func TestDeterminePriority(t *testing.T) {
	cases := []struct {
		subject, body, want string
	}{
		{"Urgent: need this today", "", model.PriorityHigh},
		{"Quote request", "please rush the order", model.PriorityHigh},
		{"Quote request", "no hurry at all", model.PriorityMedium},
		{"", "", model.PriorityMedium},
	}

	for _, tc := range cases {
		if got := DeterminePriority(tc.subject, tc.body); got != tc.want {
			t.Errorf("DeterminePriority(%q, %q) = %q, want %q",
				tc.subject, tc.body, got, tc.want)
		}
	}
}

func TestExtractCustomerInfo(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   CustomerInfo
	}{
		{
			name:   "display name and company domain",
			header: "Jane Doe <jane@acme.com>",
			want:   CustomerInfo{Name: "Jane Doe", Email: "jane@acme.com", Company: "Acme"},
		},
		{
			name:   "generic provider leaves company blank",
			header: "Bob <bob@gmail.com>",
			want:   CustomerInfo{Name: "Bob", Email: "bob@gmail.com", Company: ""},
		},
		{
			name:   "bare address uses local part as name",
			header: "sales@widget-works.io",
			want:   CustomerInfo{Name: "sales", Email: "sales@widget-works.io", Company: "Widget-Works"},
		},
		{
			name:   "empty header is unknown",
			header: "",
			want:   CustomerInfo{Name: "Unknown"},
		},
		{
			name:   "unparsable header is unknown",
			header: "not an address at all",
			want:   CustomerInfo{Name: "Unknown"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractCustomerInfo(tc.header)
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNormalizeSubject(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Re: Re: FW: Quote request", "Quote request"},
		{"FWD: Urgent order", "Urgent order"},
		{"re:fw: nested", "nested"},
		{"Regular subject", "Regular subject"},
		{"Reply to this", "Reply to this"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeSubject(tc.in); got != tc.want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeSubjectIdempotent(t *testing.T) {
	subjects := []string{
		"Re: Re: FW: Quote request",
		"Fwd: ship date",
		"plain",
		"",
	}

	for _, s := range subjects {
		once := NormalizeSubject(s)
		twice := NormalizeSubject(once)
		if once != twice {
			t.Errorf("NormalizeSubject not idempotent for %q: %q != %q", s, once, twice)
		}
	}
}
