package template

import (
	"strings"
	"testing"
)

func supportTicketTpl() Template {
	return Template{
		Slug:     "support_ticket",
		Subject:  "Re: ticket {{TICKET_ID}}",
		HTMLBody: `<p>Hola {{CUSTOMER_NAME}},</p><p>{{ADMIN_REPLY}}</p>`,
	}
}

func TestRender_RawHTMLPolicyPassesMarkupThrough(t *testing.T) {
	tpl := Template{
		Slug:     "order_confirmation",
		Subject:  "Order {{ORDER_ID}}",
		HTMLBody: `<table>{{ITEMS_LIST}}</table>`,
	}
	res := Render(tpl, ModeSend,
		map[string]string{"ORDER_ID": "42", "ITEMS_LIST": "<tr><td>X</td></tr>"},
		map[string]RenderPolicy{"ITEMS_LIST": PolicyRawHTML}, nil)

	if res.Blocked {
		t.Fatalf("unexpected block: %+v", res)
	}
	if !strings.Contains(res.HTML, "<tr><td>X</td></tr>") {
		t.Fatalf("raw_html markup was escaped: %s", res.HTML)
	}
}

func TestRender_URLPolicySanitizesJavascript(t *testing.T) {
	tpl := Template{
		Slug:     "confirm_signup",
		Subject:  "Confirm",
		HTMLBody: `<a href="{{CONFIRMATION_URL}}">go</a>`,
	}
	res := Render(tpl, ModeSend,
		map[string]string{"CONFIRMATION_URL": "javascript:alert(1)"}, nil, nil)

	if !strings.Contains(res.HTML, `href="#"`) {
		t.Fatalf("javascript: URL not neutralized: %s", res.HTML)
	}
	if strings.Contains(res.HTML, "javascript") {
		t.Fatalf("javascript: survived sanitization: %s", res.HTML)
	}
}

func TestRender_URLPolicyAllowsHTTPSAndPaths(t *testing.T) {
	tpl := Template{HTMLBody: `<a href="{{CONFIRMATION_URL}}">x</a> <a href="{{BROWSER_LINK}}">y</a>`}
	res := Render(tpl, ModeTest, map[string]string{
		"CONFIRMATION_URL": "https://shop.example/confirm?t=1&u=2",
		"BROWSER_LINK":     "/orders/view",
	}, nil, nil)

	if !strings.Contains(res.HTML, "https://shop.example/confirm?t=1&amp;u=2") {
		t.Fatalf("https URL mangled: %s", res.HTML)
	}
	if !strings.Contains(res.HTML, `href="/orders/view"`) {
		t.Fatalf("path URL mangled: %s", res.HTML)
	}
}

func TestRender_SendModeBlocksOnUnresolved(t *testing.T) {
	res := Render(supportTicketTpl(), ModeSend,
		map[string]string{"TICKET_ID": "77", "CUSTOMER_NAME": "Ana"}, nil, nil)

	if !res.Blocked {
		t.Fatal("expected blocked=true")
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0] != "ADMIN_REPLY" {
		t.Fatalf("unresolved = %v, want [ADMIN_REPLY]", res.Unresolved)
	}
	// El placeholder queda visible, nunca se elimina en silencio.
	if !strings.Contains(res.HTML, "{{ADMIN_REPLY}}") {
		t.Fatalf("unresolved token removed from output: %s", res.HTML)
	}
}

func TestRender_TestModeNeverBlocks(t *testing.T) {
	res := Render(supportTicketTpl(), ModeTest,
		map[string]string{"TICKET_ID": "77", "CUSTOMER_NAME": "Ana"}, nil, nil)

	if res.Blocked {
		t.Fatal("test mode must never block")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected at least one warning for unresolved tokens")
	}
}

func TestRender_AuthCriticalAllowlistFallback(t *testing.T) {
	tpl := Template{
		Slug:                  "confirm_signup",
		Subject:               "Confirm your account",
		HTMLBody:              `<a href="{{CONFIRMATION_URL}}">Confirm</a>`,
		IsAuthCritical:        true,
		UnresolvedPolicy:      UnresolvedAllowlistFallback,
		AllowlistFallbackKeys: []string{"CONFIRMATION_URL"},
	}
	res := Render(tpl, ModeSend, nil, nil,
		map[string]string{"CONFIRMATION_URL": "https://shop.example/confirm/fallback"})

	if res.Blocked {
		t.Fatalf("expected degradation, got block: %+v", res)
	}
	if !res.Degradation.Active || res.Degradation.Reason != DegradationReasonAllowlistFallback {
		t.Fatalf("degradation = %+v", res.Degradation)
	}
	if !strings.Contains(res.HTML, "https://shop.example/confirm/fallback") {
		t.Fatalf("fallback URL missing from HTML: %s", res.HTML)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("degradation must produce a warning")
	}
}

func TestRender_AllowlistFallbackBuiltinDefault(t *testing.T) {
	tpl := Template{
		IsAuthCritical:        true,
		UnresolvedPolicy:      UnresolvedAllowlistFallback,
		AllowlistFallbackKeys: []string{"CONFIRMATION_URL"},
		HTMLBody:              `<a href="{{CONFIRMATION_URL}}">Confirm</a> {{EXTRA}}`,
	}
	res := Render(tpl, ModeSend, nil, nil, nil)

	// CONFIRMATION_URL degrada al default "#", EXTRA no está allowlisted.
	if !strings.Contains(res.HTML, `href="#"`) {
		t.Fatalf("builtin fallback not applied: %s", res.HTML)
	}
	if !res.Blocked {
		t.Fatal("non-allowlisted unresolved token must still block send")
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0] != "EXTRA" {
		t.Fatalf("unresolved = %v, want [EXTRA]", res.Unresolved)
	}
}

func TestRender_SubjectAndTextAlwaysEscape(t *testing.T) {
	tpl := Template{
		Subject:  "Hi {{NAME}}",
		HTMLBody: "<p>{{NAME}}</p>",
		TextBody: "Hi {{NAME}}",
	}
	res := Render(tpl, ModeTest, map[string]string{"NAME": `<b>&"x"</b>`},
		map[string]RenderPolicy{"NAME": PolicyRawHTML}, nil)

	// raw_html solo aplica al canal HTML.
	if strings.Contains(res.Subject, "<b>") || strings.Contains(res.Text, "<b>") {
		t.Fatalf("subject/text not escaped: %q / %q", res.Subject, res.Text)
	}
	if !strings.Contains(res.HTML, `<b>&"x"</b>`) {
		t.Fatalf("html channel should honor raw_html: %s", res.HTML)
	}
}

func TestRender_DerivedTextFromHTML(t *testing.T) {
	tpl := Template{
		HTMLBody: `<style>p{color:red}</style><p>Hola {{NAME}}</p><script>x()</script><p>Chau</p>`,
	}
	res := Render(tpl, ModeTest, map[string]string{"NAME": "Ana"}, nil, nil)

	if strings.Contains(res.Text, "color:red") || strings.Contains(res.Text, "x()") {
		t.Fatalf("style/script leaked into text: %q", res.Text)
	}
	if !strings.Contains(res.Text, "Hola Ana") || !strings.Contains(res.Text, "Chau") {
		t.Fatalf("derived text lost content: %q", res.Text)
	}
}

func TestRender_NormalizesRawPlaceholderSpellings(t *testing.T) {
	tpl := Template{HTMLBody: `{{ .ConfirmationURL }} {{ confirmation-url }}`}
	res := Render(tpl, ModeTest, map[string]string{"confirmationUrl": "https://a.example/x"}, nil, nil)

	if len(res.UsedVariables) != 1 || res.UsedVariables[0] != "CONFIRMATION_URL" {
		t.Fatalf("used = %v", res.UsedVariables)
	}
	if len(res.Unresolved) != 0 {
		t.Fatalf("unresolved = %v", res.Unresolved)
	}
}
